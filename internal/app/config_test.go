package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHECKOUT_DATABASE_URL", "postgres://localhost/checkout")
	t.Setenv("CHECKOUT_PAYMENT_SANDBOX", "true")
	t.Setenv("CHECKOUT_NOTIFICATIONS_WORKERS", "4")

	cfg, err := loadConfig(aconfig.Config{SkipFlags: true})
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/checkout", cfg.DatabaseURL)
	assert.True(t, cfg.Payment.Sandbox)
	assert.Equal(t, 4, cfg.Notifications.Workers)
	assert.Equal(t, "order-confirmation", cfg.Mail.Template)
	assert.True(t, cfg.Mail.UseDraftTemplate)
	assert.Equal(t, uint64(5), cfg.Orders.PersistAttempts)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.RateLimit.TrustProxy)
	assert.Equal(t, "sandbox", cfg.Payment.Environment)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")
	t.Setenv("CHECKOUT_PAYMENT_SANDBOX", "true")

	cfg, err := loadConfig(aconfig.Config{SkipFlags: true})
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{
			DatabaseURL: "postgres://localhost/checkout",
			Payment:     PaymentConfig{Sandbox: true},
			Orders:      OrdersConfig{PersistAttempts: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "Valid", mutate: func(*Config) {}},
		{name: "NoDatabase", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL"},
		{name: "NoPaymentCredentials", mutate: func(c *Config) { c.Payment.Sandbox = false }, wantErr: "payment processor"},
		{
			name: "UnknownPaymentEnvironment",
			mutate: func(c *Config) {
				c.Payment = PaymentConfig{Environment: "qa", MerchantID: "m", PublicKey: "pub", PrivateKey: "priv"}
			},
			wantErr: "payment environment",
		},
		{
			name: "PaymentCredentials",
			mutate: func(c *Config) {
				c.Payment = PaymentConfig{Environment: "production", MerchantID: "m", PublicKey: "pub", PrivateKey: "priv"}
			},
		},
		{name: "MailWithoutKey", mutate: func(c *Config) { c.Mail.Enabled = true }, wantErr: "mail API key"},
		{name: "ZeroPersistAttempts", mutate: func(c *Config) { c.Orders.PersistAttempts = 0 }, wantErr: "persist attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Payment       PaymentConfig
	Mail          MailConfig
	Notifications NotificationsConfig
	Orders        OrdersConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// PaymentConfig selects and configures the payment processor.
type PaymentConfig struct {
	// Sandbox swaps the processor for the in-process test gateway.
	Sandbox     bool          `default:"false" usage:"Use the in-process sandbox gateway" flag:"payment-sandbox"`
	Environment string        `default:"sandbox" usage:"Braintree environment: sandbox or production" flag:"payment-environment"`
	BaseURL     string        `usage:"Override the Braintree API base URL" flag:"payment-base-url"`
	MerchantID  string        `usage:"Braintree merchant id" flag:"payment-merchant-id"`
	PublicKey   string        `usage:"Braintree public key" flag:"payment-public-key"`
	PrivateKey  string        `usage:"Braintree private key (CHECKOUT_PAYMENT_PRIVATE_KEY)" flag:"payment-private-key"`
	Timeout     time.Duration `default:"30s" usage:"Payment processor request timeout"`
}

// MailConfig configures confirmation email delivery.
type MailConfig struct {
	// Enabled false logs transmissions instead of sending them.
	Enabled          bool          `default:"false" usage:"Send confirmation emails through SparkPost" flag:"mail-enabled"`
	BaseURL          string        `default:"https://api.sparkpost.com" usage:"SparkPost API base URL" flag:"mail-base-url"`
	APIKey           string        `usage:"SparkPost API key (CHECKOUT_MAIL_API_KEY)" flag:"mail-api-key"`
	Template         string        `default:"order-confirmation" usage:"Confirmation template id"`
	UseDraftTemplate bool          `default:"true" usage:"Render the draft version of the template" flag:"mail-use-draft"`
	Timeout          time.Duration `default:"10s" usage:"SparkPost request timeout"`
}

// NotificationsConfig sizes the asynchronous confirmation dispatcher.
type NotificationsConfig struct {
	Workers         int           `default:"2" usage:"Confirmation delivery workers"`
	QueueSize       int           `default:"256" usage:"Pending confirmation queue size"`
	MaxRetries      uint64        `default:"5" usage:"Delivery retries before a confirmation is abandoned"`
	InitialInterval time.Duration `default:"500ms" usage:"First delivery retry delay"`
}

// OrdersConfig controls recording of charged orders.
type OrdersConfig struct {
	PersistAttempts        uint64        `default:"5" usage:"Attempts to record a charged order" flag:"orders-persist-attempts"`
	PersistInitialInterval time.Duration `default:"100ms" usage:"First order write retry delay"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// TrustProxy keys clients on X-Forwarded-For. Enable only behind a proxy
	// that overwrites the header.
	TrustProxy bool `default:"false" usage:"Trust X-Forwarded-For for client identity" flag:"rate-limit-trust-proxy"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	base.EnvPrefix = "CHECKOUT"
	base.Files = []string{"config.yaml", "/etc/checkout/config.yaml"}
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, base)
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}
	if !c.Payment.Sandbox && (c.Payment.MerchantID == "" || c.Payment.PublicKey == "" || c.Payment.PrivateKey == "") {
		return errors.New("payment processor credentials are required unless CHECKOUT_PAYMENT_SANDBOX is set")
	}
	if e := c.Payment.Environment; !c.Payment.Sandbox && e != "" && e != "sandbox" && e != "production" {
		return errors.Errorf("unknown payment environment %q", e)
	}
	if c.Mail.Enabled && c.Mail.APIKey == "" {
		return errors.New("mail API key is required when mail is enabled")
	}
	if c.Orders.PersistAttempts == 0 {
		return errors.New("orders persist attempts must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

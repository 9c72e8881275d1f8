// Package sparkpost delivers templated email through SparkPost.
package sparkpost

import (
	"context"
	"net/http"
	"time"

	sp "github.com/SparkPost/gosparkpost"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/offer-checkout/internal/domain/notification"
)

var _ notification.Mailer = (*Client)(nil)

// DefaultBaseURL is the public SparkPost API endpoint.
const DefaultBaseURL = "https://api.sparkpost.com"

// Config holds SparkPost credentials and transport settings.
type Config struct {
	// BaseURL must be https.
	BaseURL string
	APIKey  string
	Timeout time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Transport      http.RoundTripper
}

// Client is a notification.Mailer backed by SparkPost.
type Client struct {
	sp *sp.Client
}

// NewClient creates a SparkPost Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sparkpost api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &sp.Client{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(transport, opts...),
			Timeout:   timeout,
		},
	}
	if err := client.Init(&sp.Config{
		BaseUrl:    base,
		ApiKey:     cfg.APIKey,
		ApiVersion: 1,
	}); err != nil {
		return nil, errors.Wrap(err, "init sparkpost client")
	}
	return &Client{sp: client}, nil
}

// Send submits one transmission. Rejections and non-2xx responses are errors.
func (c *Client) Send(ctx context.Context, msg notification.Message) error {
	id, _, err := c.sp.SendContext(ctx, transmission(msg))
	if err != nil {
		return errors.Wrap(err, "send transmission")
	}
	zctx.From(ctx).Debug("Transmission accepted", zap.String("transmission_id", id))
	return nil
}

func transmission(msg notification.Message) *sp.Transmission {
	d := msg.SubstitutionData
	codes := d.CouponCodes
	if codes == nil {
		codes = []string{}
	}
	return &sp.Transmission{
		Recipients: msg.Recipients,
		Content: map[string]any{
			"template_id":        msg.Template,
			"use_draft_template": msg.UseDraftTemplate,
		},
		SubstitutionData: map[string]any{
			"card_type":              d.CardType,
			"cardholder_name":        d.CardholderName,
			"card_number":            d.CardNumber,
			"offer_title":            d.OfferTitle,
			"offer_value":            d.OfferValue,
			"offer_discounted_value": d.OfferDiscountedValue,
			"organization_name":      d.OrganizationName,
			"coupon_codes":           codes,
		},
	}
}

// LogMailer is a notification.Mailer that only logs transmissions. It is used
// when outbound mail is disabled.
type LogMailer struct{}

var _ notification.Mailer = LogMailer{}

// Send implements notification.Mailer.
func (LogMailer) Send(ctx context.Context, msg notification.Message) error {
	zctx.From(ctx).Info("Mail disabled, skipping transmission",
		zap.Strings("recipients", msg.Recipients),
		zap.String("template", msg.Template),
		zap.Strings("coupon_codes", msg.SubstitutionData.CouponCodes),
	)
	return nil
}

// Package paygate talks to the card payment processor.
//
// Client wraps the Braintree SDK; Sandbox emulates it in-process for local
// runs using the processor's published test nonces.
package paygate

import (
	"context"
	"net/http"
	"time"

	"github.com/braintree-go/braintree-go"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/offer-checkout/internal/domain/payment"
)

var _ payment.Gateway = (*Client)(nil)

// Config holds processor credentials and transport settings.
type Config struct {
	// Environment is "sandbox" or "production".
	Environment string
	// BaseURL overrides the environment's API root.
	BaseURL    string
	MerchantID string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Transport overrides the underlying round tripper. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
}

func (c Config) environment() (braintree.Environment, error) {
	if c.BaseURL != "" {
		return braintree.NewEnvironment(c.BaseURL), nil
	}
	switch c.Environment {
	case "", "sandbox":
		return braintree.Sandbox, nil
	case "production":
		return braintree.Production, nil
	default:
		return braintree.Environment{}, errors.Errorf("unknown environment %q", c.Environment)
	}
}

// Client is a payment.Gateway backed by Braintree.
type Client struct {
	bt *braintree.Braintree
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.MerchantID == "" || cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, errors.New("merchant id, public key and private key are required")
	}
	env, err := cfg.environment()
	if err != nil {
		return nil, err
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
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(transport, opts...),
		Timeout:   timeout,
	}

	return &Client{
		bt: braintree.NewWithHttpClient(env, cfg.MerchantID, cfg.PublicKey, cfg.PrivateKey, httpClient),
	}, nil
}

// Sale charges the payment method. A processor refusal is returned as a
// Result with OutcomeDeclined; err is reserved for transport and protocol
// failures.
func (c *Client) Sale(ctx context.Context, req payment.SaleRequest) (*payment.Result, error) {
	tx, err := c.bt.Transaction().Create(ctx, &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             toBraintreeDecimal(req.Amount),
		PaymentMethodNonce: req.PaymentMethodNonce,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: req.SubmitForSettlement,
		},
	})
	var apiErr *braintree.BraintreeError
	switch {
	case errors.As(err, &apiErr):
		return &payment.Result{Outcome: payment.OutcomeDeclined, Message: apiErr.ErrorMessage}, nil
	case err != nil:
		return nil, errors.Wrap(err, "sale")
	}

	txn, err := fromBraintreeTransaction(tx)
	if err != nil {
		return nil, errors.Wrap(err, "decode sale response")
	}
	return &payment.Result{Outcome: payment.OutcomeSuccess, Transaction: txn}, nil
}

// ClientToken returns a token the browser payment form uses to tokenize cards.
func (c *Client) ClientToken(ctx context.Context) (string, error) {
	token, err := c.bt.ClientToken().Generate(ctx)
	if err != nil {
		return "", errors.Wrap(err, "client token")
	}
	if token == "" {
		return "", errors.New("client token: empty token")
	}
	return token, nil
}

func toBraintreeDecimal(d decimal.Decimal) *braintree.Decimal {
	return braintree.NewDecimal(d.Round(2).Shift(2).IntPart(), 2)
}

func fromBraintreeTransaction(tx *braintree.Transaction) (*payment.Transaction, error) {
	if tx == nil {
		return &payment.Transaction{}, nil
	}
	txn := &payment.Transaction{
		ID:     tx.Id,
		Status: string(tx.Status),
	}
	if tx.Amount != nil {
		amount, err := decimal.NewFromString(tx.Amount.String())
		if err != nil {
			return nil, errors.Wrap(err, "amount")
		}
		txn.Amount = amount
	}
	if cc := tx.CreditCard; cc != nil {
		txn.CreditCard = payment.CreditCard{
			CardType:       cc.CardType,
			CardholderName: cc.CardholderName,
			Last4:          cc.Last4,
		}
	}
	return txn, nil
}

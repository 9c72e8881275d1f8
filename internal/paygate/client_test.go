package paygate

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/offer-checkout/internal/domain/payment"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:    srv.URL,
		MerchantID: "m1",
		PublicKey:  "pub",
		PrivateKey: "priv",
		Timeout:    time.Second,
	})
	require.NoError(t, err)
	return c
}

// writeXML answers the way the processor does: gzip-encoded XML.
func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Encoding", "gzip")
	w.WriteHeader(status)
	gz := gzip.NewWriter(w)
	_, _ = io.WriteString(gz, `<?xml version="1.0" encoding="UTF-8"?>`+body)
	_ = gz.Close()
}

func TestClient_SaleSuccess(t *testing.T) {
	var body string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/merchants/m1/transactions", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "pub", user)
		assert.Equal(t, "priv", pass)

		b, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		body = string(b)

		writeXML(w, http.StatusCreated, `<transaction>
			<id>abc123</id>
			<status>submitted_for_settlement</status>
			<type>sale</type>
			<amount>15.00</amount>
			<credit-card>
				<card-type>Visa</card-type>
				<cardholder-name>Ada</cardholder-name>
				<last-4>1881</last-4>
			</credit-card>
		</transaction>`)
	})

	res, err := c.Sale(context.Background(), payment.SaleRequest{
		Amount:              decimal.RequireFromString("15"),
		PaymentMethodNonce:  NonceValid,
		SubmitForSettlement: true,
	})
	require.NoError(t, err)

	assert.Contains(t, body, "<type>sale</type>")
	assert.Contains(t, body, "<amount>15.00</amount>")
	assert.Contains(t, body, "<payment-method-nonce>fake-valid-nonce</payment-method-nonce>")
	assert.Contains(t, body, "<submit-for-settlement>true</submit-for-settlement>")

	require.True(t, res.Succeeded())
	require.NotNil(t, res.Transaction)
	assert.Equal(t, "abc123", res.Transaction.ID)
	assert.Equal(t, "submitted_for_settlement", res.Transaction.Status)
	assert.True(t, decimal.RequireFromString("15.00").Equal(res.Transaction.Amount))
	assert.Equal(t, payment.CreditCard{CardType: "Visa", CardholderName: "Ada", Last4: "1881"}, res.Transaction.CreditCard)
}

func TestClient_SaleDeclined(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeXML(w, http.StatusUnprocessableEntity, `<api-error-response>
			<errors><errors type="array"/></errors>
			<message>Do Not Honor</message>
			<transaction>
				<id>dec1</id>
				<status>processor_declined</status>
				<processor-response-text>Do Not Honor</processor-response-text>
			</transaction>
		</api-error-response>`)
	})

	res, err := c.Sale(context.Background(), payment.SaleRequest{
		Amount:             decimal.RequireFromString("15"),
		PaymentMethodNonce: "fake-processor-declined-visa-nonce",
	})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeDeclined, res.Outcome)
	assert.Equal(t, "Do Not Honor", res.Message)
	assert.Nil(t, res.Transaction)
}

func TestClient_SaleServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Sale(context.Background(), payment.SaleRequest{
		Amount:             decimal.RequireFromString("15"),
		PaymentMethodNonce: NonceValid,
	})
	require.Error(t, err)
}

func TestClient_SaleTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewClient(Config{
		BaseURL:    srv.URL,
		MerchantID: "m1",
		PublicKey:  "pub",
		PrivateKey: "priv",
		Timeout:    50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.Sale(context.Background(), payment.SaleRequest{
		Amount:             decimal.RequireFromString("15"),
		PaymentMethodNonce: NonceValid,
	})
	require.Error(t, err)
}

func TestClient_ClientToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/client_token"), r.URL.Path)
		writeXML(w, http.StatusCreated, `<client-token><value>tok_123</value></client-token>`)
	})

	token, err := c.ClientToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok_123", token)
}

func TestNewClient_Config(t *testing.T) {
	_, err := NewClient(Config{MerchantID: "m1", PublicKey: "pub"})
	assert.Error(t, err, "private key required")

	_, err = NewClient(Config{Environment: "staging", MerchantID: "m1", PublicKey: "pub", PrivateKey: "priv"})
	assert.Error(t, err)

	_, err = NewClient(Config{Environment: "production", MerchantID: "m1", PublicKey: "pub", PrivateKey: "priv"})
	assert.NoError(t, err)
}

func TestToBraintreeDecimal(t *testing.T) {
	d := toBraintreeDecimal(decimal.RequireFromString("45.005"))
	assert.Equal(t, int64(4501), d.Unscaled)
	assert.Equal(t, 2, d.Scale)
}

package paygate

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/offer-checkout/internal/domain/payment"
)

// Test nonces understood by the processor sandbox.
const (
	NonceValid             = "fake-valid-nonce"
	NonceDeclinedPrefix    = "fake-processor-declined"
	sandboxDeclinedMessage = "Do Not Honor"
	sandboxUnknownMessage  = "Unknown or expired payment_method_nonce."
)

var _ payment.Gateway = Sandbox{}

// Sandbox is an in-process payment.Gateway. NonceValid settles, nonces
// starting with NonceDeclinedPrefix are declined, anything else is rejected
// as an unknown nonce.
type Sandbox struct{}

// Sale implements payment.Gateway.
func (Sandbox) Sale(ctx context.Context, req payment.SaleRequest) (*payment.Result, error) {
	lg := zctx.From(ctx).With(zap.String("amount", req.Amount.StringFixed(2)))

	switch {
	case req.PaymentMethodNonce == NonceValid:
		id := uuid.New()
		status := "authorized"
		if req.SubmitForSettlement {
			status = "submitted_for_settlement"
		}
		txn := &payment.Transaction{
			ID:     hex.EncodeToString(id[:4]),
			Status: status,
			Amount: req.Amount,
			CreditCard: payment.CreditCard{
				CardType:       "Visa",
				CardholderName: "Sandbox Cardholder",
				Last4:          "1881",
			},
		}
		lg.Debug("Sandbox sale settled", zap.String("transaction_id", txn.ID))
		return &payment.Result{Outcome: payment.OutcomeSuccess, Transaction: txn}, nil
	case strings.HasPrefix(req.PaymentMethodNonce, NonceDeclinedPrefix):
		lg.Debug("Sandbox sale declined")
		return &payment.Result{Outcome: payment.OutcomeDeclined, Message: sandboxDeclinedMessage}, nil
	default:
		return &payment.Result{Outcome: payment.OutcomeDeclined, Message: sandboxUnknownMessage}, nil
	}
}

// ClientToken implements payment.Gateway.
func (Sandbox) ClientToken(context.Context) (string, error) {
	return "sandbox_" + uuid.NewString(), nil
}

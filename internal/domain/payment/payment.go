// Package payment defines the contract with the external charge-authorization
// service. Declines are ordinary results, not errors.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Outcome tags the variant of a gateway Result.
type Outcome int

const (
	// OutcomeSuccess means the charge was authorized and submitted for settlement.
	OutcomeSuccess Outcome = iota + 1
	// OutcomeDeclined means the processor refused the charge.
	OutcomeDeclined
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDeclined:
		return "declined"
	default:
		return "unknown"
	}
}

// SaleRequest asks the gateway to charge a payment method.
type SaleRequest struct {
	Amount             decimal.Decimal
	PaymentMethodNonce string
	// SubmitForSettlement captures the charge immediately instead of placing a hold.
	SubmitForSettlement bool
}

// CreditCard holds the card details reported for a transaction.
type CreditCard struct {
	CardType       string
	CardholderName string
	Last4          string
}

// Transaction is the gateway's record of a successful charge.
type Transaction struct {
	ID         string
	Status     string
	Amount     decimal.Decimal
	CreditCard CreditCard
}

// Result is the outcome of a sale. Transaction is set for OutcomeSuccess,
// Message for OutcomeDeclined.
type Result struct {
	Outcome     Outcome
	Transaction *Transaction
	Message     string
}

// Succeeded reports whether the charge went through.
func (r *Result) Succeeded() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}

// Gateway charges payment methods. Transport failures and timeouts are
// returned as errors and must be treated as a failed charge by callers.
type Gateway interface {
	Sale(ctx context.Context, req SaleRequest) (*Result, error)
	// ClientToken returns a token the client-side payment form uses to
	// tokenize a card into a nonce.
	ClientToken(ctx context.Context) (string, error)
}

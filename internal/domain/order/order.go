package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/offer-checkout/internal/domain/customer"
	"github.com/xenking/offer-checkout/internal/domain/notification"
	"github.com/xenking/offer-checkout/internal/domain/offer"
	"github.com/xenking/offer-checkout/internal/domain/payment"
	"github.com/xenking/offer-checkout/internal/domain/voucher"
)

// Order is one paid purchase of an offer. It is written once, together with
// its vouchers, and never modified.
type Order struct {
	ID            uuid.UUID
	CustomerID    uuid.UUID
	OfferID       uuid.UUID
	Quantity      int
	TransactionID string
	CreatedAt     time.Time
	Vouchers      []voucher.Voucher
}

// Repository defines persistence operations for orders.
type Repository interface {
	// CreateWithVouchers stores o and one voucher per unit of o.Quantity in a
	// single transaction, drawing codes from codes and regenerating on
	// collision. On success o.Vouchers holds the stored vouchers; on failure
	// nothing is stored. Repeating the call for an o.ID that is already
	// stored with the same transaction loads the stored vouchers and succeeds.
	CreateWithVouchers(ctx context.Context, o *Order, codes voucher.Generator) error
}

// OfferSource resolves offers for ordering.
type OfferSource interface {
	Orderable(ctx context.Context, id uuid.UUID) (*offer.Offer, error)
	Organization(ctx context.Context, id uuid.UUID) (*offer.Organization, error)
}

// CustomerResolver finds or creates the buying customer.
type CustomerResolver interface {
	Resolve(ctx context.Context, c customer.Contact) (*customer.Customer, error)
}

// Notifier hands a completed order over for confirmation. It must not block
// on delivery.
type Notifier interface {
	Notify(ctx context.Context, c notification.Confirmation)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Customer           customer.Contact `json:"customer"`
	OfferID            string           `json:"offer_id" validate:"required,uuid"`
	Quantity           int              `json:"quantity" validate:"min=1,max=100"`
	PaymentMethodNonce string           `json:"payment_method_nonce" validate:"required,max=4096"`
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order       *Order
	Customer    *customer.Customer
	Offer       *offer.Offer
	Transaction payment.Transaction
}

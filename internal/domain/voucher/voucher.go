package voucher

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// MaxCodeAttempts bounds how many codes are tried for a single voucher before
// the write is abandoned.
const MaxCodeAttempts = 5

// ErrCodeExhausted is returned when every generated code for a voucher
// collided with an existing one.
var ErrCodeExhausted = errors.New("coupon code attempts exhausted")

// Voucher is one redeemable unit of a purchased offer.
type Voucher struct {
	ID         uuid.UUID
	Code       string
	CustomerID uuid.UUID
	OfferID    uuid.UUID
	OrderID    uuid.UUID
	CreatedAt  time.Time
}

// Repository exposes issued vouchers to operational tooling.
type Repository interface {
	// Each calls fn for every voucher in creation order. Iteration stops at the
	// first error returned by fn.
	Each(ctx context.Context, fn func(Voucher) error) error
	// Duplicates returns those of codes that are held by more than one voucher.
	Duplicates(ctx context.Context, codes []string) ([]string, error)
}

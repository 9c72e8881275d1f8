package offer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested offer does not exist.
	ErrNotFound = errors.New("offer not found")
	// ErrOrganizationNotFound is returned when a requested organization does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrExpired is returned when an expired offer is used for ordering.
	ErrExpired = errors.New("offer has expired")
)

// Organization is a merchant that publishes offers.
type Organization struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// Offer is a merchant-defined discount with an optional expiration and display rank.
type Offer struct {
	ID              uuid.UUID
	Title           string
	Value           decimal.Decimal
	DiscountedValue decimal.Decimal
	// ExpiresAt is nil for offers that never expire.
	ExpiresAt *time.Time
	// Rank is nil for unranked offers, which sort after every ranked one.
	Rank           *int
	OrganizationID *uuid.UUID
}

// Expired reports whether the offer can no longer be listed or ordered at now.
func (o Offer) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}

// Repository defines read operations for the offer catalog.
//
// List methods must return only offers that are not expired at now, ordered by
// rank ascending with unranked offers last.
type Repository interface {
	ListActive(ctx context.Context, now time.Time) ([]Offer, error)
	ListActiveByOrganization(ctx context.Context, orgID uuid.UUID, now time.Time) ([]Offer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Offer, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)
}

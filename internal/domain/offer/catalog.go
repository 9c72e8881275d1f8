package offer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Catalog serves offers to customers and to the order flow. It owns the
// expiration predicate so listing and ordering agree on what "expired" means.
type Catalog struct {
	repo Repository
	now  func() time.Time
}

// NewCatalog creates a Catalog backed by the given Repository.
func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo, now: time.Now}
}

// List returns every offer that has not expired.
func (c *Catalog) List(ctx context.Context) ([]Offer, error) {
	offers, err := c.repo.ListActive(ctx, c.now())
	if err != nil {
		return nil, errors.Wrap(err, "list offers")
	}
	return offers, nil
}

// Get returns a single offer by id, expired or not.
func (c *Catalog) Get(ctx context.Context, id uuid.UUID) (*Offer, error) {
	return c.repo.GetByID(ctx, id)
}

// ListByOrganization returns the non-expired offers published by orgID.
func (c *Catalog) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]Offer, error) {
	if _, err := c.repo.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	offers, err := c.repo.ListActiveByOrganization(ctx, orgID, c.now())
	if err != nil {
		return nil, errors.Wrap(err, "list organization offers")
	}
	return offers, nil
}

// Orderable returns the offer if it exists and has not expired.
func (c *Catalog) Orderable(ctx context.Context, id uuid.UUID) (*Offer, error) {
	o, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Expired(c.now()) {
		return nil, ErrExpired
	}
	return o, nil
}

// Organization returns the organization with the given id.
func (c *Catalog) Organization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return c.repo.GetOrganization(ctx, id)
}

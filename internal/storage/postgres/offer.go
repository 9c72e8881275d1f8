package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/offer-checkout/internal/domain/offer"
)

var _ offer.Repository = (*OfferRepository)(nil)

const offerColumns = `id, title, value, discounted_value, expiration_ts, rank, organization_id`

const listActiveOffers = `SELECT ` + offerColumns + `
FROM offers
WHERE expiration_ts IS NULL OR expiration_ts > $1
ORDER BY rank ASC NULLS LAST, created_at, id`

const listActiveOffersByOrganization = `SELECT ` + offerColumns + `
FROM offers
WHERE organization_id = $1 AND (expiration_ts IS NULL OR expiration_ts > $2)
ORDER BY rank ASC NULLS LAST, created_at, id`

const getOfferByID = `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

const getOrganizationByID = `SELECT id, name, description FROM organizations WHERE id = $1`

const upsertOrganization = `INSERT INTO organizations (id, name, description)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description`

const upsertOffer = `INSERT INTO offers (id, title, value, discounted_value, expiration_ts, rank, organization_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	value = EXCLUDED.value,
	discounted_value = EXCLUDED.discounted_value,
	expiration_ts = EXCLUDED.expiration_ts,
	rank = EXCLUDED.rank,
	organization_id = EXCLUDED.organization_id`

// OfferRepository implements offer.Repository backed by PostgreSQL.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// ListActive returns offers that have not expired at now, ranked first.
func (r *OfferRepository) ListActive(ctx context.Context, now time.Time) ([]offer.Offer, error) {
	rows, err := r.pool.Query(ctx, listActiveOffers, now)
	if err != nil {
		return nil, fmt.Errorf("listing offers: %w", err)
	}
	return collectOffers(rows)
}

// ListActiveByOrganization is ListActive narrowed to one organization.
func (r *OfferRepository) ListActiveByOrganization(ctx context.Context, orgID uuid.UUID, now time.Time) ([]offer.Offer, error) {
	rows, err := r.pool.Query(ctx, listActiveOffersByOrganization, orgID, now)
	if err != nil {
		return nil, fmt.Errorf("listing offers of organization %q: %w", orgID, err)
	}
	return collectOffers(rows)
}

// GetByID returns a single offer regardless of expiry, or offer.ErrNotFound.
func (r *OfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*offer.Offer, error) {
	rows, err := r.pool.Query(ctx, getOfferByID, id)
	if err != nil {
		return nil, fmt.Errorf("getting offer %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOffer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, offer.ErrNotFound
		}
		return nil, fmt.Errorf("getting offer %q: %w", id, err)
	}
	return &o, nil
}

// GetOrganization returns an organization, or offer.ErrOrganizationNotFound.
func (r *OfferRepository) GetOrganization(ctx context.Context, id uuid.UUID) (*offer.Organization, error) {
	var org offer.Organization
	err := r.pool.QueryRow(ctx, getOrganizationByID, id).Scan(&org.ID, &org.Name, &org.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, offer.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("getting organization %q: %w", id, err)
	}
	return &org, nil
}

// SaveCatalog upserts organizations and then offers in one transaction.
func (r *OfferRepository) SaveCatalog(ctx context.Context, orgs []offer.Organization, offers []offer.Offer) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, org := range orgs {
			batch.Queue(upsertOrganization, org.ID, org.Name, org.Description)
		}
		for _, o := range offers {
			batch.Queue(upsertOffer, o.ID, o.Title, o.Value, o.DiscountedValue, o.ExpiresAt, o.Rank, o.OrganizationID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("saving catalog: %w", err)
		}
		return nil
	})
}

func collectOffers(rows pgx.Rows) ([]offer.Offer, error) {
	offers, err := pgx.CollectRows(rows, scanOffer)
	if err != nil {
		return nil, fmt.Errorf("scanning offers: %w", err)
	}
	return offers, nil
}

func scanOffer(row pgx.CollectableRow) (offer.Offer, error) {
	var o offer.Offer
	err := row.Scan(
		&o.ID,
		&o.Title,
		&o.Value,
		&o.DiscountedValue,
		&o.ExpiresAt,
		&o.Rank,
		&o.OrganizationID,
	)
	return o, err
}

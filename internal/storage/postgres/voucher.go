package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/offer-checkout/internal/domain/voucher"
)

var _ voucher.Repository = (*VoucherRepository)(nil)

const listVouchers = `SELECT id, coupon_code, customer_id, offer_id, order_id, created_at
FROM vouchers
ORDER BY created_at, id`

const findDuplicateCodes = `SELECT coupon_code
FROM vouchers
WHERE coupon_code = ANY($1)
GROUP BY coupon_code
HAVING count(*) > 1`

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// Each streams every stored voucher to fn in creation order. It stops at the
// first error returned by fn.
func (r *VoucherRepository) Each(ctx context.Context, fn func(voucher.Voucher) error) error {
	rows, err := r.pool.Query(ctx, listVouchers)
	if err != nil {
		return fmt.Errorf("listing vouchers: %w", err)
	}
	defer rows.Close()

	var v voucher.Voucher
	_, err = pgx.ForEachRow(rows, []any{&v.ID, &v.Code, &v.CustomerID, &v.OfferID, &v.OrderID, &v.CreatedAt}, func() error {
		return fn(v)
	})
	if err != nil {
		return fmt.Errorf("iterating vouchers: %w", err)
	}
	return nil
}

// Duplicates returns the codes among codes that are stored more than once.
func (r *VoucherRepository) Duplicates(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, findDuplicateCodes, codes)
	if err != nil {
		return nil, fmt.Errorf("finding duplicate codes: %w", err)
	}
	dups, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning duplicate codes: %w", err)
	}
	return dups, nil
}

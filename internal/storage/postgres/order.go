package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/offer-checkout/internal/domain/order"
	"github.com/xenking/offer-checkout/internal/domain/voucher"
)

var _ order.Repository = (*OrderRepository)(nil)

const (
	couponCodeConstraint = "vouchers_coupon_code_key"
	orderKeyConstraint   = "orders_pkey"
)

const insertOrder = `INSERT INTO orders (id, customer_id, offer_id, quantity, transaction_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const insertVoucher = `INSERT INTO vouchers (id, coupon_code, customer_id, offer_id, order_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const selectOrderTransaction = `SELECT transaction_id FROM orders WHERE id = $1`

const listOrderVouchers = `SELECT id, coupon_code, customer_id, offer_id, order_id, created_at
FROM vouchers
WHERE order_id = $1
ORDER BY created_at, id`

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateWithVouchers writes the order and one voucher per unit in a single
// transaction. A coupon code collision rolls back only that voucher insert,
// via a savepoint, and retries with a fresh code.
//
// Writing an order whose ID is already stored with the same transaction is
// not an error: the stored vouchers are loaded into o instead.
func (r *OrderRepository) CreateWithVouchers(ctx context.Context, o *order.Order, codes voucher.Generator) error {
	var vouchers []voucher.Voucher
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		vouchers = make([]voucher.Voucher, 0, o.Quantity)

		if _, err := tx.Exec(ctx, insertOrder,
			o.ID, o.CustomerID, o.OfferID, o.Quantity, o.TransactionID, o.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		for range o.Quantity {
			v := voucher.Voucher{
				ID:         uuid.New(),
				CustomerID: o.CustomerID,
				OfferID:    o.OfferID,
				OrderID:    o.ID,
				CreatedAt:  o.CreatedAt,
			}
			if err := insertVoucherWithCode(ctx, tx, &v, codes); err != nil {
				return err
			}
			vouchers = append(vouchers, v)
		}
		return nil
	})
	if isUniqueViolation(err, orderKeyConstraint) {
		return r.loadStored(ctx, o)
	}
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	o.Vouchers = vouchers
	return nil
}

// loadStored fills o.Vouchers from an order committed by an earlier attempt.
func (r *OrderRepository) loadStored(ctx context.Context, o *order.Order) error {
	var txn string
	if err := r.pool.QueryRow(ctx, selectOrderTransaction, o.ID).Scan(&txn); err != nil {
		return fmt.Errorf("loading stored order %q: %w", o.ID, err)
	}
	if txn != o.TransactionID {
		return errors.Errorf("order %q already stored for transaction %q", o.ID, txn)
	}

	rows, err := r.pool.Query(ctx, listOrderVouchers, o.ID)
	if err != nil {
		return fmt.Errorf("loading vouchers of order %q: %w", o.ID, err)
	}
	vouchers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (voucher.Voucher, error) {
		var v voucher.Voucher
		err := row.Scan(&v.ID, &v.Code, &v.CustomerID, &v.OfferID, &v.OrderID, &v.CreatedAt)
		return v, err
	})
	if err != nil {
		return fmt.Errorf("scanning vouchers of order %q: %w", o.ID, err)
	}

	o.Vouchers = vouchers
	return nil
}

func insertVoucherWithCode(ctx context.Context, tx pgx.Tx, v *voucher.Voucher, codes voucher.Generator) error {
	for range voucher.MaxCodeAttempts {
		code, err := codes.Generate()
		if err != nil {
			return errors.Wrap(err, "generate coupon code")
		}
		v.Code = code

		err = pgx.BeginFunc(ctx, tx, func(sp pgx.Tx) error {
			_, err := sp.Exec(ctx, insertVoucher, v.ID, v.Code, v.CustomerID, v.OfferID, v.OrderID, v.CreatedAt)
			return err
		})
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err, couponCodeConstraint) {
			return fmt.Errorf("inserting voucher: %w", err)
		}
	}
	return voucher.ErrCodeExhausted
}

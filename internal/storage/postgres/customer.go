package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/offer-checkout/internal/domain/customer"
)

var _ customer.Repository = (*CustomerRepository)(nil)

const insertCustomer = `INSERT INTO customers (id, first_name, last_name, email, phone_number)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
ON CONFLICT ON CONSTRAINT customers_email_key DO NOTHING
RETURNING id, first_name, last_name, email, COALESCE(phone_number, '')`

const getCustomerByEmail = `SELECT id, first_name, last_name, email, COALESCE(phone_number, '')
FROM customers
WHERE email = $1`

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindOrCreate inserts c unless a customer with the same email exists, and
// returns the stored row either way. The unique constraint on email settles
// concurrent first orders.
func (r *CustomerRepository) FindOrCreate(ctx context.Context, c *customer.Customer) (*customer.Customer, error) {
	var stored customer.Customer
	err := r.pool.QueryRow(ctx, insertCustomer, c.ID, c.FirstName, c.LastName, c.Email, c.PhoneNumber).
		Scan(&stored.ID, &stored.FirstName, &stored.LastName, &stored.Email, &stored.PhoneNumber)
	if err == nil {
		return &stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("inserting customer: %w", err)
	}

	// Conflict: someone registered this email first.
	err = r.pool.QueryRow(ctx, getCustomerByEmail, c.Email).
		Scan(&stored.ID, &stored.FirstName, &stored.LastName, &stored.Email, &stored.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("getting customer by email: %w", err)
	}
	return &stored, nil
}

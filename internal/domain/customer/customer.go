package customer

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Customer is a buyer identity. Email is the natural key.
type Customer struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
}

// Contact holds the customer fields submitted with an order.
type Contact struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=254"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=32"`
}

// Repository persists customers.
type Repository interface {
	// FindOrCreate inserts c unless a customer with the same email exists, and
	// returns the stored row either way. Concurrent callers with the same email
	// must all receive the same customer.
	FindOrCreate(ctx context.Context, c *Customer) (*Customer, error)
}

// Resolver finds or creates customers from submitted contact data.
type Resolver struct {
	repo Repository
}

// NewResolver creates a Resolver backed by the given Repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the customer registered under the contact's email, creating
// one on first use. Existing customers are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, c Contact) (*Customer, error) {
	candidate := &Customer{
		ID:          uuid.New(),
		FirstName:   strings.TrimSpace(c.FirstName),
		LastName:    strings.TrimSpace(c.LastName),
		Email:       NormalizeEmail(c.Email),
		PhoneNumber: strings.TrimSpace(c.PhoneNumber),
	}

	stored, err := r.repo.FindOrCreate(ctx, candidate)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve customer %q", candidate.Email)
	}
	return stored, nil
}

// NormalizeEmail returns the canonical form used as the de-duplication key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

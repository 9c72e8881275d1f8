package order

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrGatewayUnavailable is returned when the payment gateway could not be
	// reached or gave no usable answer. No order is recorded.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrPersistOrder is returned when a charged order could not be stored.
	ErrPersistOrder = errors.New("order could not be recorded")
)

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid order request: " + strings.Join(parts, "; ")
}

// DeclinedError indicates the payment processor refused the charge.
type DeclinedError struct {
	Message string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Message)
}

/*
errors.go - Centralized error types for the stock engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (services, HTTP layer) match with errors.Is/errors.As.

ERROR CATEGORIES:
  1. Reconciliation errors - A stock adjustment was rejected
  2. Not-found errors - A referenced product or transaction is missing
  3. Validation errors - Malformed input, rejected before any mutation

PROPAGATION POLICY:
  A reconciliation failure always prevents the corresponding transaction
  write. No transaction is ever persisted in a state inconsistent with
  whether its stock effect was applied.

SEE ALSO:
  - engine.go: Produces reconciliation errors
  - service.go: Produces validation and not-found errors
*/
package stock

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when a sale create/update (or, in
	// strict mode, a purchase-side correction) would drive a product's
	// quantity negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrProductNotFound is returned when a referenced product id does
	// not resolve.
	ErrProductNotFound = errors.New("product not found")

	// ErrTransactionNotFound is returned when a referenced transaction id
	// does not resolve.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrProductExists is returned when creating a product whose id is
	// already taken.
	ErrProductExists = errors.New("product already exists")

	// ErrTransactionExists is returned when inserting a transaction whose
	// (kind, id) pair is already taken.
	ErrTransactionExists = errors.New("transaction already exists")

	// ErrValidation is returned for malformed payloads, before any stock
	// mutation is attempted.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports a rejected stock decrease.
type InsufficientStockError struct {
	ProductID ProductID
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock on product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// ValidationError reports a rejected payload field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// rather than a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrProductExists) ||
		errors.Is(err, ErrTransactionExists)
}

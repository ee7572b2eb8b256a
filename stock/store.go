/*
store.go - Persistence interfaces for products and transactions

PURPOSE:
  Defines the interface between the reconciliation logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  ProductStore:     Product records plus the atomic conditional adjust
  TransactionStore: Purchase and sale records (two ledgers, one store)
  Store:            Both, as implemented by a single backend

THE CONDITIONAL ADJUST CONTRACT:
  Adjust() is the ONLY way quantity changes after product creation.
  It must apply the delta and evaluate the guard as ONE atomic store
  operation (a conditional write), never as a read followed by a write.
  That single property is what makes concurrent sales on the same
  product safe without any global lock: there is no check-then-act
  window for a race to slip through.

  Adjust reports (matched=false, err=nil) when no row satisfied
  id + guard. The caller disambiguates missing-product from
  guard-rejected by re-reading the product.

IMPLEMENTATIONS:
  - stock/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: Production SQLite

SEE ALSO:
  - engine.go: The only caller of Adjust
*/
package stock

import "context"

// =============================================================================
// GUARD - Predicate evaluated atomically with the adjustment
// =============================================================================

// Guard selects the predicate a conditional adjust must satisfy.
type Guard int

const (
	// GuardNone applies the delta unconditionally. Inherently race-safe:
	// a pure additive atomic delta has no check-then-act window.
	GuardNone Guard = iota

	// GuardNonNegative applies the delta only if the resulting quantity
	// would be >= 0. Equivalent to the source-of-truth check
	// "current >= requested" for a decrease of `requested`.
	GuardNonNegative
)

// =============================================================================
// PRODUCT STORE
// =============================================================================

type ProductStore interface {
	// GetProduct returns the product or ErrProductNotFound.
	GetProduct(ctx context.Context, id ProductID) (Product, error)

	// InsertProduct creates a product. Returns ErrProductExists if the id
	// is taken. Sets both Quantity and InitialQuantity from p.Quantity.
	InsertProduct(ctx context.Context, p Product) error

	// ListProducts returns all products ordered by creation time.
	ListProducts(ctx context.Context) ([]Product, error)

	// DeleteProduct removes a product or returns ErrProductNotFound.
	DeleteProduct(ctx context.Context, id ProductID) error

	// Adjust atomically adds delta (positive or negative) to the product's
	// quantity iff the guard holds on the current quantity. Returns whether
	// a matching record was modified. Guard evaluation and mutation are a
	// single atomic operation against the underlying store.
	Adjust(ctx context.Context, id ProductID, delta int64, guard Guard) (bool, error)
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// TransactionStore persists purchases and sales. Records are keyed by
// (kind, id): the purchase ledger and the sale ledger are disjoint.
type TransactionStore interface {
	// GetTransaction returns the record or ErrTransactionNotFound.
	GetTransaction(ctx context.Context, kind Kind, id TransactionID) (Transaction, error)

	// InsertTransaction persists a new record. Returns
	// ErrTransactionExists if the (kind, id) pair is already taken.
	InsertTransaction(ctx context.Context, tx Transaction) error

	// UpdateTransaction replaces an existing record or returns
	// ErrTransactionNotFound. Kind and ProductID never change.
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// DeleteTransaction removes a record or returns ErrTransactionNotFound.
	// Terminal: there is no transition out of deleted.
	DeleteTransaction(ctx context.Context, kind Kind, id TransactionID) error

	// ListTransactions returns all records of one kind, by creation time.
	ListTransactions(ctx context.Context, kind Kind) ([]Transaction, error)

	// ListByProduct returns all live records referencing a product, both
	// kinds. Used by the repair pass.
	ListByProduct(ctx context.Context, id ProductID) ([]Transaction, error)
}

// Store is what a single backend provides.
type Store interface {
	ProductStore
	TransactionStore
}

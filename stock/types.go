/*
Package stock provides the core stock reconciliation engine.

PURPOSE:
  This package contains the types and algorithms that keep a product's
  derived quantity counter consistent with its transaction history.
  Purchases increase stock, sales decrease it, and every edit or delete
  of a past transaction re-bases the product's quantity by exactly the
  signed difference.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: A catalog entry carrying the derived quantity counter
  - Transaction: A purchase or sale referencing one product
  - Kind: Which direction a transaction moves stock (purchase/sale)
  - Typed identifiers: ProductID, TransactionID, etc.

DESIGN PRINCIPLES:
  1. Single mutation path: quantity only ever changes through the
     ProductStore's atomic conditional adjust (store.go)
  2. Precision: money fields use decimal.Decimal, never float
  3. Type safety: strong typing for ids prevents mixing product and
     transaction identifiers
  4. Immutable binding: a transaction's product reference never changes
     after creation

USAGE:
  tx := stock.Transaction{
      Kind:      stock.KindSale,
      ProductID: "prod-1",
      Quantity:  3,
      Price:     decimal.NewFromInt(50),
  }
  tx.Recalculate() // Amount = 150

SEE ALSO:
  - engine.go: Reconciliation rules applied on create/update/delete
  - service.go: Purchase and sale orchestration
  - store.go: Persistence interfaces
*/
package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type TransactionID string
type UserID string
type FirmID string
type BrandID string
type CategoryID string

// =============================================================================
// KIND - Which direction a transaction moves stock
// =============================================================================

type Kind string

const (
	KindPurchase Kind = "purchase" // stock-increasing
	KindSale     Kind = "sale"     // stock-decreasing
)

// Sign returns +1 for purchases and -1 for sales: the multiplier that
// converts a transaction quantity into its stock delta.
func (k Kind) Sign() int64 {
	if k == KindSale {
		return -1
	}
	return 1
}

func (k Kind) Valid() bool {
	return k == KindPurchase || k == KindSale
}

// =============================================================================
// PRODUCT - Catalog entry with the derived quantity counter
// =============================================================================

// Product is a catalog entry. Quantity is derived state: at any quiescent
// point it equals InitialQuantity plus the signed sum of all live
// transaction quantities. InitialQuantity is fixed at creation so the
// repair pass can recompute the expected value from transactions alone.
type Product struct {
	ID         ProductID
	Name       string
	BrandID    BrandID
	CategoryID CategoryID

	// Quantity is mutated ONLY through ProductStore.Adjust.
	Quantity        int64
	InitialQuantity int64

	Price     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// TRANSACTION - A purchase or sale referencing one product
// =============================================================================

// Transaction records a single stock movement. ProductID is immutable once
// set. Quantity is the only field that participates in reconciliation;
// price, firm and brand edits are inert to stock.
type Transaction struct {
	ID        TransactionID
	Kind      Kind
	ProductID ProductID
	UserID    UserID
	FirmID    FirmID // purchases only; empty on sales
	BrandID   BrandID

	Quantity int64
	Price    decimal.Decimal
	Amount   decimal.Decimal // derived: Price * Quantity

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Delta returns the signed stock effect of this transaction while live.
func (t Transaction) Delta() int64 {
	return t.Kind.Sign() * t.Quantity
}

// Recalculate refreshes the derived line amount from price and quantity.
// Called on every create and update so the stored amount never drifts.
func (t *Transaction) Recalculate() {
	t.Amount = t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

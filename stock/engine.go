/*
engine.go - Reconciliation rules for transaction lifecycle events

PURPOSE:
  The Reconciler owns the rules that keep product.quantity consistent
  with transaction history. One operation per lifecycle event:

    OnCreate: apply the transaction's full effect
    OnUpdate: re-base by the signed difference between old and new quantity
    OnDelete: reverse the live effect

  State machine per transaction:
    nonexistent -> live (effect applied)
                -> [edited -> live, effect re-based]*
                -> deleted (effect reversed, terminal)

CONCURRENCY:
  Requests on the same product run concurrently with no global lock.
  Safety reduces to ProductStore.Adjust being atomic: every guarded
  decrease expresses its check as part of the same conditional write
  that applies the delta. The read in saleCreate is a fail-fast
  optimization only, never the safety mechanism.

GUARD ASYMMETRY:
  Sale-side decreases are guarded against negative stock. Purchase-side
  corrections (deletes, decreasing edits) are NOT guarded by default and
  can drive stock negative; this preserves the behavior existing
  consumers depend on. StrictNonNegative extends the guard to those
  paths as an explicit configuration choice.

ORDERING CONTRACT:
  Callers must confirm the stock adjustment before durably writing the
  transaction record, and must not write the record at all when the
  adjustment is rejected. A crash between the two writes leaves stock
  inconsistent until Repair runs (repair.go).

SEE ALSO:
  - service.go: The caller, which enforces the ordering contract
  - repair.go: Recovers from the partial-failure window
*/
package stock

import (
	"context"
	"fmt"
)

// =============================================================================
// RECONCILER
// =============================================================================

type Reconciler struct {
	products ProductStore
	strict   bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// StrictNonNegative guards purchase deletions and decreasing purchase
// edits against driving stock below zero, in addition to the always-on
// sale-side guard. Off by default: the upstream API never guarded
// purchase-side corrections.
func StrictNonNegative() Option {
	return func(r *Reconciler) { r.strict = true }
}

func NewReconciler(products ProductStore, opts ...Option) *Reconciler {
	r := &Reconciler{products: products}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// =============================================================================
// LIFECYCLE OPERATIONS
// =============================================================================

// OnCreate applies a new transaction's full stock effect.
// For sales the decrease is guarded; on rejection the caller must not
// persist the transaction.
func (r *Reconciler) OnCreate(ctx context.Context, kind Kind, productID ProductID, quantity int64) error {
	if kind == KindSale {
		return r.saleCreate(ctx, productID, quantity)
	}
	return r.apply(ctx, productID, +quantity, GuardNone, quantity)
}

func (r *Reconciler) saleCreate(ctx context.Context, productID ProductID, quantity int64) error {
	// Fail fast on an ordinary read. This is an optimization: the guarded
	// adjust below is the safety mechanism, and it alone decides.
	p, err := r.products.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p.Quantity < quantity {
		return &InsufficientStockError{ProductID: productID, Available: p.Quantity, Requested: quantity}
	}
	return r.apply(ctx, productID, -quantity, GuardNonNegative, quantity)
}

// OnUpdate re-bases a live transaction's effect by the signed difference
// between its old and new quantity. Sale increases are guarded; on
// rejection the caller must leave the transaction unchanged.
func (r *Reconciler) OnUpdate(ctx context.Context, kind Kind, productID ProductID, oldQuantity, newQuantity int64) error {
	difference := newQuantity - oldQuantity
	if difference == 0 {
		return nil
	}

	if kind == KindSale {
		// quantity >= difference is exactly "resulting quantity >= 0",
		// so a decreasing edit (negative difference) passes trivially.
		return r.apply(ctx, productID, -difference, GuardNonNegative, difference)
	}

	guard := GuardNone
	if r.strict && difference < 0 {
		guard = GuardNonNegative
	}
	return r.apply(ctx, productID, +difference, guard, -difference)
}

// OnDelete reverses a live transaction's effect. Sale deletion returns
// stock unconditionally. Purchase deletion is unguarded unless strict.
func (r *Reconciler) OnDelete(ctx context.Context, kind Kind, productID ProductID, quantity int64) error {
	if kind == KindSale {
		return r.apply(ctx, productID, +quantity, GuardNone, 0)
	}
	guard := GuardNone
	if r.strict {
		guard = GuardNonNegative
	}
	return r.apply(ctx, productID, -quantity, guard, quantity)
}

// =============================================================================
// ADJUSTMENT
// =============================================================================

// apply runs the atomic conditional adjust and maps a no-match result to
// either ErrProductNotFound or InsufficientStockError. requested is only
// used to populate the error.
func (r *Reconciler) apply(ctx context.Context, productID ProductID, delta int64, guard Guard, requested int64) error {
	matched, err := r.products.Adjust(ctx, productID, delta, guard)
	if err != nil {
		return fmt.Errorf("adjust product %s by %d: %w", productID, delta, err)
	}
	if matched {
		return nil
	}

	// No row matched: either the product is gone or the guard rejected
	// the decrease. Re-read to tell the two apart.
	p, err := r.products.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: productID, Available: p.Quantity, Requested: requested}
}

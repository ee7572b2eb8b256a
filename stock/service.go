/*
service.go - Purchase and sale orchestration

PURPOSE:
  A Service turns client payloads into the
  "read current -> reconcile stock -> write record" sequence for one
  transaction kind. The two kinds are symmetric: one Service type,
  constructed per kind.

ORDERING:
  Every mutating operation reconciles stock FIRST and writes the
  transaction record only after the adjustment is confirmed applied.
  A rejected reconciliation aborts before any record write, so a
  transaction is never persisted out of step with its stock effect.
  The reverse failure (record write fails after the adjustment) is the
  documented partial-failure window, recovered by Repair (repair.go).

IMMUTABLE PRODUCT BINDING:
  Update payloads cannot re-point a transaction at another product.
  Whatever product reference a caller supplies on update is discarded;
  the stored ProductID wins.

SEE ALSO:
  - engine.go: Reconciliation rules
  - api/handlers.go: The HTTP caller
*/
package stock

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYLOADS
// =============================================================================

// TransactionInput is a create payload.
type TransactionInput struct {
	ProductID ProductID
	UserID    UserID
	FirmID    FirmID
	BrandID   BrandID
	Quantity  int64
	Price     decimal.Decimal
}

// TransactionUpdate is an update payload. Nil fields are left unchanged.
// Only Quantity participates in reconciliation; the rest are inert to
// stock. ProductID is accepted so callers can send full documents, but it
// is always overwritten with the stored value.
type TransactionUpdate struct {
	ProductID ProductID // ignored
	Quantity  *int64
	Price     *decimal.Decimal
	FirmID    *FirmID
	BrandID   *BrandID
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	kind  Kind
	store Store
	rec   *Reconciler
}

func NewPurchaseService(store Store, rec *Reconciler) *Service {
	return &Service{kind: KindPurchase, store: store, rec: rec}
}

func NewSaleService(store Store, rec *Reconciler) *Service {
	return &Service{kind: KindSale, store: store, rec: rec}
}

// Kind reports which ledger this service writes.
func (s *Service) Kind() Kind { return s.kind }

// Create validates the payload, applies the stock effect, then persists
// the record. Fails with ErrInsufficientStock (sales) or
// ErrProductNotFound without writing anything.
func (s *Service) Create(ctx context.Context, in TransactionInput) (Transaction, error) {
	if err := s.validate(in); err != nil {
		return Transaction{}, err
	}

	if err := s.rec.OnCreate(ctx, s.kind, in.ProductID, in.Quantity); err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	tx := Transaction{
		ID:        TransactionID(uuid.NewString()),
		Kind:      s.kind,
		ProductID: in.ProductID,
		UserID:    in.UserID,
		FirmID:    in.FirmID,
		BrandID:   in.BrandID,
		Quantity:  in.Quantity,
		Price:     in.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx.Recalculate()

	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		// Stock is now ahead of the ledger until Repair runs.
		return Transaction{}, err
	}
	return tx, nil
}

// Get returns the transaction or ErrTransactionNotFound.
func (s *Service) Get(ctx context.Context, id TransactionID) (Transaction, error) {
	return s.store.GetTransaction(ctx, s.kind, id)
}

// List returns all transactions of this kind.
func (s *Service) List(ctx context.Context) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, s.kind)
}

// Update edits a live transaction. A quantity change re-bases the product's
// stock by the signed difference before the record is rewritten; if the
// re-base is rejected the record keeps its previous quantity.
func (s *Service) Update(ctx context.Context, id TransactionID, upd TransactionUpdate) (Transaction, error) {
	current, err := s.store.GetTransaction(ctx, s.kind, id)
	if err != nil {
		return Transaction{}, err
	}

	// The whole payload is validated before any stock mutation: a bad
	// field anywhere must not leave a re-based counter behind.
	if upd.Quantity != nil && *upd.Quantity <= 0 {
		return Transaction{}, &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	if upd.Price != nil && upd.Price.IsNegative() {
		return Transaction{}, &ValidationError{Field: "price", Message: "must not be negative"}
	}

	if upd.Quantity != nil && *upd.Quantity != current.Quantity {
		if err := s.rec.OnUpdate(ctx, s.kind, current.ProductID, current.Quantity, *upd.Quantity); err != nil {
			return Transaction{}, err
		}
		current.Quantity = *upd.Quantity
	}

	if upd.Price != nil {
		current.Price = *upd.Price
	}
	if upd.FirmID != nil {
		current.FirmID = *upd.FirmID
	}
	if upd.BrandID != nil {
		current.BrandID = *upd.BrandID
	}
	// upd.ProductID is deliberately dropped: the binding is immutable.

	current.Recalculate()
	current.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateTransaction(ctx, current); err != nil {
		return Transaction{}, err
	}
	return current, nil
}

// Delete reverses the transaction's stock effect and removes the record.
// Returns the deleted record.
func (s *Service) Delete(ctx context.Context, id TransactionID) (Transaction, error) {
	current, err := s.store.GetTransaction(ctx, s.kind, id)
	if err != nil {
		return Transaction{}, err
	}

	if err := s.rec.OnDelete(ctx, s.kind, current.ProductID, current.Quantity); err != nil {
		return Transaction{}, err
	}

	if err := s.store.DeleteTransaction(ctx, s.kind, id); err != nil {
		// Stock already reversed; the record outliving it is the same
		// partial-failure window as in Create. Repair reconverges.
		return Transaction{}, err
	}
	return current, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func (s *Service) validate(in TransactionInput) error {
	if strings.TrimSpace(string(in.ProductID)) == "" {
		return &ValidationError{Field: "productId", Message: "is required"}
	}
	if in.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	if in.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	return nil
}

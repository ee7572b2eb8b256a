package stock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/stock"
	"github.com/warp/stock-engine/stock/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestEngine(opts ...stock.Option) (*store.Memory, *stock.Reconciler) {
	mem := store.NewMemory()
	return mem, stock.NewReconciler(mem, opts...)
}

func seedProduct(t *testing.T, mem *store.Memory, id string, quantity int64) {
	t.Helper()
	now := time.Now().UTC()
	err := mem.InsertProduct(context.Background(), stock.Product{
		ID:        stock.ProductID(id),
		Name:      "widget",
		Quantity:  quantity,
		Price:     decimal.NewFromInt(10),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func productQuantity(t *testing.T, mem *store.Memory, id string) int64 {
	t.Helper()
	p, err := mem.GetProduct(context.Background(), stock.ProductID(id))
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return p.Quantity
}

// =============================================================================
// CREATE TESTS
// =============================================================================

func TestOnCreate_Purchase_IncreasesStock(t *testing.T) {
	// GIVEN: Product with quantity 3
	// WHEN: A purchase of 7 is created
	// THEN: Quantity becomes 10

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 3)

	if err := rec.OnCreate(context.Background(), stock.KindPurchase, "p1", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 10 {
		t.Errorf("expected quantity 10, got %d", got)
	}
}

func TestOnCreate_Sale_DecreasesStock(t *testing.T) {
	// GIVEN: Product with quantity 10
	// WHEN: A sale of 4 is created
	// THEN: Quantity becomes 6

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 10)

	if err := rec.OnCreate(context.Background(), stock.KindSale, "p1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 6 {
		t.Errorf("expected quantity 6, got %d", got)
	}
}

func TestOnCreate_Sale_InsufficientStock_Rejected(t *testing.T) {
	// GIVEN: Product with quantity 3
	// WHEN: A sale of 4 is attempted
	// THEN: InsufficientStock, quantity unchanged

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 3)

	err := rec.OnCreate(context.Background(), stock.KindSale, "p1", 4)
	if !errors.Is(err, stock.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	var insErr *stock.InsufficientStockError
	if !errors.As(err, &insErr) {
		t.Fatalf("expected InsufficientStockError, got %T", err)
	}
	if insErr.Available != 3 || insErr.Requested != 4 {
		t.Errorf("expected available 3 requested 4, got %d/%d", insErr.Available, insErr.Requested)
	}
	if got := productQuantity(t, mem, "p1"); got != 3 {
		t.Errorf("quantity changed on rejected sale: %d", got)
	}
}

func TestOnCreate_Sale_ExactStock_Allowed(t *testing.T) {
	// GIVEN: Product with quantity 5
	// WHEN: A sale of exactly 5 is created
	// THEN: Succeeds, quantity becomes 0

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 5)

	if err := rec.OnCreate(context.Background(), stock.KindSale, "p1", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 0 {
		t.Errorf("expected quantity 0, got %d", got)
	}
}

func TestOnCreate_MissingProduct_NotFound(t *testing.T) {
	_, rec := newTestEngine()

	err := rec.OnCreate(context.Background(), stock.KindPurchase, "ghost", 1)
	if !errors.Is(err, stock.ErrProductNotFound) {
		t.Errorf("purchase: expected ErrProductNotFound, got %v", err)
	}

	err = rec.OnCreate(context.Background(), stock.KindSale, "ghost", 1)
	if !errors.Is(err, stock.ErrProductNotFound) {
		t.Errorf("sale: expected ErrProductNotFound, got %v", err)
	}
}

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestOnUpdate_Purchase_RebasesByDifference(t *testing.T) {
	// GIVEN: Product at 10 after a purchase of 10
	// WHEN: The purchase quantity is edited to 4
	// THEN: Quantity becomes 4

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 0)
	ctx := context.Background()

	if err := rec.OnCreate(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := rec.OnUpdate(ctx, stock.KindPurchase, "p1", 10, 4); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 4 {
		t.Errorf("expected quantity 4, got %d", got)
	}
}

func TestOnUpdate_Sale_IncreaseGuarded(t *testing.T) {
	// GIVEN: Product at 2 after purchase of 10 and sale of 8
	// WHEN: The sale quantity is edited from 8 to 11
	// THEN: InsufficientStock, quantity stays 2

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 0)
	ctx := context.Background()

	if err := rec.OnCreate(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if err := rec.OnCreate(ctx, stock.KindSale, "p1", 8); err != nil {
		t.Fatalf("sale: %v", err)
	}

	err := rec.OnUpdate(ctx, stock.KindSale, "p1", 8, 11)
	if !errors.Is(err, stock.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 2 {
		t.Errorf("expected quantity 2, got %d", got)
	}
}

func TestOnUpdate_Sale_IncreaseWithinStock_Applied(t *testing.T) {
	// GIVEN: Product at 2 after purchase of 10 and sale of 8
	// WHEN: The sale quantity is edited from 8 to 10
	// THEN: Quantity becomes 0

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 0)
	ctx := context.Background()

	if err := rec.OnCreate(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnCreate(ctx, stock.KindSale, "p1", 8); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnUpdate(ctx, stock.KindSale, "p1", 8, 10); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 0 {
		t.Errorf("expected quantity 0, got %d", got)
	}
}

func TestOnUpdate_Sale_Decrease_ReturnsStock(t *testing.T) {
	// GIVEN: Product at 2 after purchase of 10 and sale of 8
	// WHEN: The sale quantity is edited from 8 to 3
	// THEN: Quantity becomes 7

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 0)
	ctx := context.Background()

	if err := rec.OnCreate(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnCreate(ctx, stock.KindSale, "p1", 8); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnUpdate(ctx, stock.KindSale, "p1", 8, 3); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 7 {
		t.Errorf("expected quantity 7, got %d", got)
	}
}

func TestOnUpdate_SameQuantity_NoEffect(t *testing.T) {
	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 5)

	if err := rec.OnUpdate(context.Background(), stock.KindSale, "p1", 3, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 5 {
		t.Errorf("expected quantity 5, got %d", got)
	}
}

func TestOnUpdate_Purchase_DecreaseBelowZero_AllowedByDefault(t *testing.T) {
	// GIVEN: Product at 2 after a purchase of 10 and a sale of 8
	// WHEN: The purchase quantity is edited down to 3
	// THEN: Quantity goes to -5 (purchase-side corrections are unguarded,
	//       matching upstream behavior)

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 0)
	ctx := context.Background()

	if err := rec.OnCreate(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnCreate(ctx, stock.KindSale, "p1", 8); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnUpdate(ctx, stock.KindPurchase, "p1", 10, 3); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != -5 {
		t.Errorf("expected quantity -5, got %d", got)
	}
}

func TestOnUpdate_Purchase_DecreaseBelowZero_RejectedWhenStrict(t *testing.T) {
	// GIVEN: Strict engine, product at 2 after purchase 10 and sale 8
	// WHEN: The purchase quantity is edited down to 3
	// THEN: InsufficientStock, quantity stays 2

	mem, rec := newTestEngine(stock.StrictNonNegative())
	seedProduct(t, mem, "p1", 0)
	ctx := context.Background()

	if err := rec.OnCreate(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnCreate(ctx, stock.KindSale, "p1", 8); err != nil {
		t.Fatal(err)
	}

	err := rec.OnUpdate(ctx, stock.KindPurchase, "p1", 10, 3)
	if !errors.Is(err, stock.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 2 {
		t.Errorf("expected quantity 2, got %d", got)
	}
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestOnDelete_ReversesEffect(t *testing.T) {
	// GIVEN: Purchase of 10 then sale of 4 on an empty product
	// WHEN: Both are deleted
	// THEN: Quantity returns to its pre-create value (0)

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 0)
	ctx := context.Background()

	if err := rec.OnCreate(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnCreate(ctx, stock.KindSale, "p1", 4); err != nil {
		t.Fatal(err)
	}
	if got := productQuantity(t, mem, "p1"); got != 6 {
		t.Fatalf("expected quantity 6, got %d", got)
	}

	if err := rec.OnDelete(ctx, stock.KindSale, "p1", 4); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	if err := rec.OnDelete(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatalf("delete purchase: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 0 {
		t.Errorf("expected quantity 0 after reversal, got %d", got)
	}
}

func TestOnDelete_Purchase_CanDriveStockNegative(t *testing.T) {
	// GIVEN: Product at 2 after purchase 10 and sale 8
	// WHEN: The purchase is deleted
	// THEN: Quantity goes to -8 (known asymmetry, unguarded by default)

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 0)
	ctx := context.Background()

	if err := rec.OnCreate(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnCreate(ctx, stock.KindSale, "p1", 8); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnDelete(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != -8 {
		t.Errorf("expected quantity -8, got %d", got)
	}
}

func TestOnDelete_Purchase_RejectedWhenStrict(t *testing.T) {
	mem, rec := newTestEngine(stock.StrictNonNegative())
	seedProduct(t, mem, "p1", 0)
	ctx := context.Background()

	if err := rec.OnCreate(ctx, stock.KindPurchase, "p1", 10); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnCreate(ctx, stock.KindSale, "p1", 8); err != nil {
		t.Fatal(err)
	}

	err := rec.OnDelete(ctx, stock.KindPurchase, "p1", 10)
	if !errors.Is(err, stock.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 2 {
		t.Errorf("expected quantity 2, got %d", got)
	}
}

func TestOnDelete_Sale_AlwaysReturnsStock(t *testing.T) {
	// Returning stock is always valid, even in strict mode.
	mem, rec := newTestEngine(stock.StrictNonNegative())
	seedProduct(t, mem, "p1", 10)
	ctx := context.Background()

	if err := rec.OnCreate(ctx, stock.KindSale, "p1", 10); err != nil {
		t.Fatal(err)
	}
	if err := rec.OnDelete(ctx, stock.KindSale, "p1", 10); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := productQuantity(t, mem, "p1"); got != 10 {
		t.Errorf("expected quantity 10, got %d", got)
	}
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestConcurrentSales_ExactlyOneWins(t *testing.T) {
	// GIVEN: Product with quantity 5
	// WHEN: Two concurrent sale-creates of 5 each
	// THEN: Exactly one succeeds, the other fails with InsufficientStock,
	//       final quantity is 0

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 5)
	svc := stock.NewSaleService(mem, rec)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), stock.TransactionInput{
				ProductID: "p1",
				Quantity:  5,
				Price:     decimal.NewFromInt(10),
			})
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, stock.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Errorf("expected exactly one winner, got %d successes and %d rejections", ok, insufficient)
	}
	if got := productQuantity(t, mem, "p1"); got != 0 {
		t.Errorf("expected final quantity 0, got %d", got)
	}
}

func TestConcurrentPurchases_AllApplied(t *testing.T) {
	// Unconditional additive deltas are race-safe: every purchase lands.
	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 0)
	svc := stock.NewPurchaseService(mem, rec)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Create(context.Background(), stock.TransactionInput{
				ProductID: "p1",
				Quantity:  2,
				Price:     decimal.NewFromInt(1),
			}); err != nil {
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := productQuantity(t, mem, "p1"); got != 2*n {
		t.Errorf("expected quantity %d, got %d", 2*n, got)
	}
}

// =============================================================================
// LEDGER INVARIANT
// =============================================================================

func TestInvariant_QuantityMatchesLiveTransactions(t *testing.T) {
	// At any quiescent point:
	//   quantity == initial + sum(live purchases) - sum(live sales)

	mem, rec := newTestEngine()
	seedProduct(t, mem, "p1", 20)
	ctx := context.Background()

	purchases := stock.NewPurchaseService(mem, rec)
	sales := stock.NewSaleService(mem, rec)

	buy1, err := purchases.Create(ctx, stock.TransactionInput{ProductID: "p1", Quantity: 30, Price: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatal(err)
	}
	sell1, err := sales.Create(ctx, stock.TransactionInput{ProductID: "p1", Quantity: 12, Price: decimal.NewFromInt(8)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sales.Create(ctx, stock.TransactionInput{ProductID: "p1", Quantity: 6, Price: decimal.NewFromInt(8)}); err != nil {
		t.Fatal(err)
	}
	qty := int64(9)
	if _, err := purchases.Update(ctx, buy1.ID, stock.TransactionUpdate{Quantity: &qty}); err != nil {
		t.Fatal(err)
	}
	if _, err := sales.Delete(ctx, sell1.ID); err != nil {
		t.Fatal(err)
	}

	// live: purchase 9, sale 6; initial 20
	want := int64(20 + 9 - 6)
	if got := productQuantity(t, mem, "p1"); got != want {
		t.Errorf("expected quantity %d, got %d", want, got)
	}

	// The repair pass agrees: no drift.
	drifts, err := stock.Repair(ctx, mem, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(drifts) != 0 {
		t.Errorf("expected no drift, got %+v", drifts)
	}
}

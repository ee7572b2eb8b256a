/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements stock.Store (products + transactions) using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

THE ATOMIC CONDITIONAL ADJUST:
  Adjust() is a single UPDATE whose WHERE clause carries the guard:

    UPDATE products
       SET quantity = quantity + ?
     WHERE id = ? AND quantity + ? >= 0

  The guard and the delta are evaluated by the database in one statement,
  so concurrent sales on the same product cannot interleave between a
  check and a write. RowsAffected is the matched signal.

KEY TABLES:
  products:     Catalog entries with the derived quantity counter
  transactions: Purchase and sale records, keyed by (kind, id)

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/stock.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  rec := stock.NewReconciler(st)
  sales := stock.NewSaleService(st, rec)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - stock/store.go: Interface definitions
  - stock/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/stock"
)

// Store implements stock.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ stock.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One pooled connection: SQLite allows a single writer, and a fresh
	// pool connection to ":memory:" would open a different database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Products (quantity is the derived counter; initial_quantity is
	-- fixed at creation so the repair pass can recompute expected stock)
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		brand_id TEXT,
		category_id TEXT,
		quantity INTEGER NOT NULL DEFAULT 0,
		initial_quantity INTEGER NOT NULL DEFAULT 0,
		price TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Transactions (purchase and sale ledgers, disjoint by kind)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		product_id TEXT NOT NULL,
		user_id TEXT,
		firm_id TEXT,
		brand_id TEXT,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_kind
		ON transactions(kind, created_at);

	-- For the repair pass (all live transactions of one product)
	CREATE INDEX IF NOT EXISTS idx_transactions_product
		ON transactions(product_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PRODUCT STORE (stock.ProductStore interface)
// =============================================================================

func (s *Store) GetProduct(ctx context.Context, id stock.ProductID) (stock.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, brand_id, category_id, quantity, initial_quantity, price, created_at, updated_at
		FROM products WHERE id = ?
	`
	return scanProduct(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) InsertProduct(ctx context.Context, p stock.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO products
		(id, name, brand_id, category_id, quantity, initial_quantity, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		nullString(string(p.BrandID)),
		nullString(string(p.CategoryID)),
		p.Quantity,
		p.Quantity, // initial_quantity mirrors the creation value
		p.Price.String(),
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return stock.ErrProductExists
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]stock.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, brand_id, category_id, quantity, initial_quantity, price, created_at, updated_at
		FROM products ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []stock.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) DeleteProduct(ctx context.Context, id stock.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return stock.ErrProductNotFound
	}
	return nil
}

// Adjust applies delta iff the guard holds, as one conditional UPDATE.
// The database evaluates guard and delta together; there is no separate
// read, so no lost-update window.
func (s *Store) Adjust(ctx context.Context, id stock.ProductID, delta int64, guard stock.Guard) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)

	var res sql.Result
	var err error
	switch guard {
	case stock.GuardNonNegative:
		res, err = s.db.ExecContext(ctx,
			"UPDATE products SET quantity = quantity + ?, updated_at = ? WHERE id = ? AND quantity + ? >= 0",
			delta, now, id, delta)
	default:
		res, err = s.db.ExecContext(ctx,
			"UPDATE products SET quantity = quantity + ?, updated_at = ? WHERE id = ?",
			delta, now, id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to adjust product: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// =============================================================================
// TRANSACTION STORE (stock.TransactionStore interface)
// =============================================================================

const transactionColumns = "id, kind, product_id, user_id, firm_id, brand_id, quantity, price, amount, created_at, updated_at"

func (s *Store) GetTransaction(ctx context.Context, kind stock.Kind, id stock.TransactionID) (stock.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + transactionColumns + " FROM transactions WHERE kind = ? AND id = ?"
	return scanTransaction(s.db.QueryRowContext(ctx, query, kind, id))
}

func (s *Store) InsertTransaction(ctx context.Context, tx stock.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO transactions
		(id, kind, product_id, user_id, firm_id, brand_id, quantity, price, amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		tx.ID,
		tx.Kind,
		tx.ProductID,
		nullString(string(tx.UserID)),
		nullString(string(tx.FirmID)),
		nullString(string(tx.BrandID)),
		tx.Quantity,
		tx.Price.String(),
		tx.Amount.String(),
		tx.CreatedAt.UTC().Format(time.RFC3339),
		tx.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return stock.ErrTransactionExists
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx stock.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// product_id is intentionally absent from the SET list: the binding
	// between a transaction and its product is immutable.
	query := `
		UPDATE transactions
		SET user_id = ?, firm_id = ?, brand_id = ?, quantity = ?, price = ?, amount = ?, updated_at = ?
		WHERE kind = ? AND id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		nullString(string(tx.UserID)),
		nullString(string(tx.FirmID)),
		nullString(string(tx.BrandID)),
		tx.Quantity,
		tx.Price.String(),
		tx.Amount.String(),
		tx.UpdatedAt.UTC().Format(time.RFC3339),
		tx.Kind,
		tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return stock.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, kind stock.Kind, id stock.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE kind = ? AND id = ?", kind, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return stock.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, kind stock.Kind) ([]stock.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + transactionColumns + " FROM transactions WHERE kind = ? ORDER BY created_at ASC, id ASC"
	return s.queryTransactions(ctx, query, kind)
}

func (s *Store) ListByProduct(ctx context.Context, id stock.ProductID) ([]stock.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + transactionColumns + " FROM transactions WHERE product_id = ? ORDER BY created_at ASC, id ASC"
	return s.queryTransactions(ctx, query, id)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]stock.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []stock.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (stock.Product, error) {
	var (
		p          stock.Product
		brandID    sql.NullString
		categoryID sql.NullString
		price      string
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(&p.ID, &p.Name, &brandID, &categoryID,
		&p.Quantity, &p.InitialQuantity, &price, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return p, stock.ErrProductNotFound
	}
	if err != nil {
		return p, fmt.Errorf("failed to scan product: %w", err)
	}

	p.BrandID = stock.BrandID(brandID.String)
	p.CategoryID = stock.CategoryID(categoryID.String)
	p.Price = mustParseDecimal(price)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return p, nil
}

func scanTransaction(row rowScanner) (stock.Transaction, error) {
	var (
		tx        stock.Transaction
		userID    sql.NullString
		firmID    sql.NullString
		brandID   sql.NullString
		price     string
		amount    string
		createdAt string
		updatedAt string
	)

	err := row.Scan(&tx.ID, &tx.Kind, &tx.ProductID, &userID, &firmID, &brandID,
		&tx.Quantity, &price, &amount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return tx, stock.ErrTransactionNotFound
	}
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.UserID = stock.UserID(userID.String)
	tx.FirmID = stock.FirmID(firmID.String)
	tx.BrandID = stock.BrandID(brandID.String)
	tx.Price = mustParseDecimal(price)
	tx.Amount = mustParseDecimal(amount)
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tx.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return tx, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (contains(err.Error(), "UNIQUE constraint failed") ||
		contains(err.Error(), "duplicate key"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

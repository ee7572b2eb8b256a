// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/stock-engine/stock"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	products     map[stock.ProductID]stock.Product
	transactions map[txKey]stock.Transaction
}

type txKey struct {
	Kind stock.Kind
	ID   stock.TransactionID
}

func NewMemory() *Memory {
	return &Memory{
		products:     make(map[stock.ProductID]stock.Product),
		transactions: make(map[txKey]stock.Transaction),
	}
}

var _ stock.Store = (*Memory)(nil)

// =============================================================================
// PRODUCT STORE
// =============================================================================

func (m *Memory) GetProduct(_ context.Context, id stock.ProductID) (stock.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return stock.Product{}, stock.ErrProductNotFound
	}
	return p, nil
}

func (m *Memory) InsertProduct(_ context.Context, p stock.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.ID]; ok {
		return stock.ErrProductExists
	}
	p.InitialQuantity = p.Quantity
	m.products[p.ID] = p
	return nil
}

func (m *Memory) ListProducts(_ context.Context) ([]stock.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]stock.Product, 0, len(m.products))
	for _, p := range m.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) DeleteProduct(_ context.Context, id stock.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return stock.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

// Adjust applies delta iff the guard holds. Guard check and mutation
// happen under one write lock, so the operation is atomic.
func (m *Memory) Adjust(_ context.Context, id stock.ProductID, delta int64, guard stock.Guard) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return false, nil
	}
	if guard == stock.GuardNonNegative && p.Quantity+delta < 0 {
		return false, nil
	}
	p.Quantity += delta
	m.products[id] = p
	return true, nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (m *Memory) GetTransaction(_ context.Context, kind stock.Kind, id stock.TransactionID) (stock.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[txKey{Kind: kind, ID: id}]
	if !ok {
		return stock.Transaction{}, stock.ErrTransactionNotFound
	}
	return tx, nil
}

func (m *Memory) InsertTransaction(_ context.Context, tx stock.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := txKey{Kind: tx.Kind, ID: tx.ID}
	if _, ok := m.transactions[k]; ok {
		return stock.ErrTransactionExists
	}
	m.transactions[k] = tx
	return nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx stock.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := txKey{Kind: tx.Kind, ID: tx.ID}
	if _, ok := m.transactions[k]; !ok {
		return stock.ErrTransactionNotFound
	}
	m.transactions[k] = tx
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, kind stock.Kind, id stock.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := txKey{Kind: kind, ID: id}
	if _, ok := m.transactions[k]; !ok {
		return stock.ErrTransactionNotFound
	}
	delete(m.transactions, k)
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, kind stock.Kind) ([]stock.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []stock.Transaction
	for k, tx := range m.transactions {
		if k.Kind == kind {
			result = append(result, tx)
		}
	}
	sortTransactions(result)
	return result, nil
}

func (m *Memory) ListByProduct(_ context.Context, id stock.ProductID) ([]stock.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []stock.Transaction
	for _, tx := range m.transactions {
		if tx.ProductID == id {
			result = append(result, tx)
		}
	}
	sortTransactions(result)
	return result, nil
}

func sortTransactions(txs []stock.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
}

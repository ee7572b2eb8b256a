/*
handlers.go - HTTP API handlers for the stock system

PURPOSE:
  Exposes the stock engine via REST API. Handles HTTP request/response
  and JSON serialization, and delegates everything with an invariant to
  the stock package. No stock rule lives in this file.

ENDPOINTS:
  Products:
    GET    /api/products            List all products
    POST   /api/products            Create product
    GET    /api/products/{id}       Get product
    DELETE /api/products/{id}      Delete product

  Purchases / Sales (symmetric):
    GET    /api/purchases           List
    POST   /api/purchases           Create (applies stock effect first)
    GET    /api/purchases/{id}      Get
    PUT    /api/purchases/{id}      Update (re-bases stock by difference)
    DELETE /api/purchases/{id}      Delete (reverses stock effect)

  Admin:
    POST   /api/admin/repair        Reconverge counters from the ledgers

ERROR HANDLING:
  Errors map to HTTP status by taxonomy:
  - 400: validation failures (rejected before any stock mutation)
  - 404: missing product or transaction
  - 409: duplicate product id
  - 422: insufficient stock (the transaction was not persisted/modified)
  - 500: store failures

STATUS CODES:
  201 create, 200 read/list, 202 update, 204 delete. Mirrors the
  upstream API contract consumers already depend on.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/stock-engine/stock"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     stock.Store
	Purchases *stock.Service
	Sales     *stock.Service
}

// NewHandler wires services for both transaction kinds on one store.
func NewHandler(st stock.Store, rec *stock.Reconciler) *Handler {
	return &Handler{
		Store:     st,
		Purchases: stock.NewPurchaseService(st, rec),
		Sales:     stock.NewSaleService(st, rec),
	}
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns all products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct creates a product. The creation quantity becomes the
// product's initial stock; all later changes go through transactions.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Product name is required", nil)
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "Quantity must not be negative", nil)
		return
	}
	if req.Price.IsNegative() {
		writeError(w, http.StatusBadRequest, "Price must not be negative", nil)
		return
	}

	now := time.Now().UTC()
	p := stock.Product{
		ID:         stock.ProductID(uuid.NewString()),
		Name:       req.Name,
		BrandID:    stock.BrandID(req.BrandID),
		CategoryID: stock.CategoryID(req.CategoryID),
		Quantity:   req.Quantity,
		Price:      req.Price,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Store.InsertProduct(r.Context(), p); err != nil {
		h.writeStockError(w, "Failed to create product", err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// GetProduct returns one product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := stock.ProductID(chi.URLParam(r, "id"))
	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		h.writeStockError(w, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// DeleteProduct removes a product.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := stock.ProductID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteProduct(r.Context(), id); err != nil {
		h.writeStockError(w, "Failed to delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTION HANDLERS (shared by purchases and sales)
// =============================================================================

// ListTransactions returns all transactions of one kind.
func (h *Handler) ListTransactions(svc *stock.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txs, err := svc.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
			return
		}
		writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
	}
}

// CreateTransaction creates a transaction. The stock effect is applied
// before the record is written; on InsufficientStock nothing is persisted.
func (h *Handler) CreateTransaction(svc *stock.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}

		tx, err := svc.Create(r.Context(), req.toInput())
		if err != nil {
			h.writeStockError(w, "Failed to create transaction", err)
			return
		}
		writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
	}
}

// GetTransaction returns one transaction.
func (h *Handler) GetTransaction(svc *stock.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := stock.TransactionID(chi.URLParam(r, "id"))
		tx, err := svc.Get(r.Context(), id)
		if err != nil {
			h.writeStockError(w, "Failed to get transaction", err)
			return
		}
		writeJSON(w, http.StatusOK, toTransactionDTO(tx))
	}
}

// UpdateTransaction edits a transaction. A rejected quantity change
// leaves both the record and the product untouched.
func (h *Handler) UpdateTransaction(svc *stock.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := stock.TransactionID(chi.URLParam(r, "id"))

		var req UpdateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}

		tx, err := svc.Update(r.Context(), id, req.toUpdate())
		if err != nil {
			h.writeStockError(w, "Failed to update transaction", err)
			return
		}
		writeJSON(w, http.StatusAccepted, toTransactionDTO(tx))
	}
}

// DeleteTransaction removes a transaction and reverses its stock effect.
func (h *Handler) DeleteTransaction(svc *stock.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := stock.TransactionID(chi.URLParam(r, "id"))
		if _, err := svc.Delete(r.Context(), id); err != nil {
			h.writeStockError(w, "Failed to delete transaction", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Repair recomputes every product's quantity from its live transactions
// and fixes drift. POST /api/admin/repair?dry_run=true reports only.
func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	fix := r.URL.Query().Get("dry_run") != "true"

	drifts, err := stock.Repair(r.Context(), h.Store, fix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Repair failed", err)
		return
	}

	resp := RepairResponse{Drifts: make([]DriftDTO, 0, len(drifts))}
	for _, d := range drifts {
		resp.Drifts = append(resp.Drifts, DriftDTO{
			ProductID: string(d.ProductID),
			Expected:  d.Expected,
			Actual:    d.Actual,
			Fixed:     d.Fixed,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeStockError maps the stock error taxonomy onto HTTP status codes.
func (h *Handler) writeStockError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, stock.ErrInsufficientStock):
		writeError(w, http.StatusUnprocessableEntity, "There is not enough product stock for this operation", err)
	case stock.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, stock.ErrProductExists):
		writeError(w, http.StatusConflict, "Product already exists", err)
	case errors.Is(err, stock.ErrTransactionExists):
		writeError(w, http.StatusConflict, "Transaction already exists", err)
	case errors.Is(err, stock.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

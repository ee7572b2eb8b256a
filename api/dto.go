/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Structural validation (types, required fields) happens while decoding;
  business validation (quantity > 0, product exists, enough stock) lives
  in the stock package, never here.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/stock"
)

// =============================================================================
// PRODUCT TYPES
// =============================================================================

type ProductDTO struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	BrandID    string          `json:"brandId,omitempty"`
	CategoryID string          `json:"categoryId,omitempty"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type CreateProductRequest struct {
	Name       string          `json:"name"`
	BrandID    string          `json:"brandId"`
	CategoryID string          `json:"categoryId"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

func toProductDTO(p stock.Product) ProductDTO {
	return ProductDTO{
		ID:         string(p.ID),
		Name:       p.Name,
		BrandID:    string(p.BrandID),
		CategoryID: string(p.CategoryID),
		Quantity:   p.Quantity,
		Price:      p.Price,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

type TransactionDTO struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	ProductID string          `json:"productId"`
	UserID    string          `json:"userId,omitempty"`
	FirmID    string          `json:"firmId,omitempty"`
	BrandID   string          `json:"brandId,omitempty"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type CreateTransactionRequest struct {
	ProductID string          `json:"productId"`
	UserID    string          `json:"userId"`
	FirmID    string          `json:"firmId"`
	BrandID   string          `json:"brandId"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (r CreateTransactionRequest) toInput() stock.TransactionInput {
	return stock.TransactionInput{
		ProductID: stock.ProductID(r.ProductID),
		UserID:    stock.UserID(r.UserID),
		FirmID:    stock.FirmID(r.FirmID),
		BrandID:   stock.BrandID(r.BrandID),
		Quantity:  r.Quantity,
		Price:     r.Price,
	}
}

// UpdateTransactionRequest carries partial edits. ProductID is accepted
// so full documents round-trip, but the server always keeps the stored
// binding.
type UpdateTransactionRequest struct {
	ProductID string           `json:"productId"`
	Quantity  *int64           `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
	FirmID    *string          `json:"firmId"`
	BrandID   *string          `json:"brandId"`
}

func (r UpdateTransactionRequest) toUpdate() stock.TransactionUpdate {
	upd := stock.TransactionUpdate{
		ProductID: stock.ProductID(r.ProductID),
		Quantity:  r.Quantity,
		Price:     r.Price,
	}
	if r.FirmID != nil {
		firm := stock.FirmID(*r.FirmID)
		upd.FirmID = &firm
	}
	if r.BrandID != nil {
		brand := stock.BrandID(*r.BrandID)
		upd.BrandID = &brand
	}
	return upd
}

func toTransactionDTO(tx stock.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:        string(tx.ID),
		Kind:      string(tx.Kind),
		ProductID: string(tx.ProductID),
		UserID:    string(tx.UserID),
		FirmID:    string(tx.FirmID),
		BrandID:   string(tx.BrandID),
		Quantity:  tx.Quantity,
		Price:     tx.Price,
		Amount:    tx.Amount,
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
	}
}

func toTransactionDTOs(txs []stock.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	return dtos
}

// =============================================================================
// REPAIR TYPES
// =============================================================================

type DriftDTO struct {
	ProductID string `json:"productId"`
	Expected  int64  `json:"expected"`
	Actual    int64  `json:"actual"`
	Fixed     bool   `json:"fixed"`
}

type RepairResponse struct {
	Drifts []DriftDTO `json:"drifts"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

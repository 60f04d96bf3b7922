/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types (pos.Product,
  pos.Sale, report.*) already carry JSON tags and are returned directly; the
  types here are request bodies plus the few responses that wrap them.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO / *Response: Response wrappers

VALIDATION:
  Shape checks (required fields, ranges) use validator struct tags and are
  run by decodeAndValidate in handlers.go. Business rules (stock, client
  existence, amount > 0) stay in the pos package.

MONEY:
  decimal.Decimal accepts both JSON numbers (24.5) and strings ("24.50"),
  and is always written as a string.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/tortipos/pos"
)

// =============================================================================
// CATALOG
// =============================================================================

type ProductRequest struct {
	Name      string          `json:"name" validate:"required,max=120"`
	BuyPrice  decimal.Decimal `json:"buyPrice"`
	SellPrice decimal.Decimal `json:"sellPrice"`
	Stock     int             `json:"stock" validate:"gte=0"`
	Category  string          `json:"category" validate:"required"`
}

func (r ProductRequest) input() pos.ProductInput {
	return pos.ProductInput{
		Name:      r.Name,
		BuyPrice:  r.BuyPrice,
		SellPrice: r.SellPrice,
		Stock:     r.Stock,
		Category:  pos.Category(r.Category),
	}
}

// AdjustStockRequest is a signed correction: positive for received goods,
// negative for shrinkage.
type AdjustStockRequest struct {
	Delta int `json:"delta"`
}

// =============================================================================
// CLIENTS
// =============================================================================

type ClientRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Address string `json:"address" validate:"max=200"`
	Phone   string `json:"phone" validate:"max=32"`
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// =============================================================================
// SALES & CART
// =============================================================================

type SaleLineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// SaleRequest commits a sale in one call. Prices are taken from the catalog
// at commit time, never from the request.
type SaleRequest struct {
	Items    []SaleLineRequest `json:"items" validate:"required,min=1,dive"`
	Method   string            `json:"method" validate:"required"`
	ClientID string            `json:"clientId"`
}

type CartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

type CartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CheckoutRequest struct {
	Method   string `json:"method" validate:"required"`
	ClientID string `json:"clientId"`
}

type CartDTO struct {
	Items []pos.SaleItem  `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type SaleResponse struct {
	Sale     pos.Sale `json:"sale"`
	Warnings []string `json:"warnings,omitempty"`
}

// =============================================================================
// STATUS & ERRORS
// =============================================================================

type StatusDTO struct {
	Unsaved     bool       `json:"unsaved"`
	LastError   string     `json:"lastError,omitempty"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
	Products    int        `json:"products"`
	Clients     int        `json:"clients"`
	Sales       int        `json:"sales"`
	Payments    int        `json:"payments"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

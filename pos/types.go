/*
Package pos provides the transaction and ledger consistency engine for the
shop: catalog, client credit ("fiado") accounts, the sale journal and the
payment journal.

PURPOSE:
  A sale touches three records at once: product stock, the sale journal and,
  for credit sales, the client's balance. This package is the single place
  where those records change, and every change is validated in full before
  anything is applied.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: catalog entry with buy/sell price and running stock
  - Client: credit account with a signed balance (positive = owed to the shop)
  - SaleItem: line item with name/price/cost snapshotted at sale time
  - Sale: immutable journal entry
  - CreditPayment: immutable payment journal entry

DESIGN PRINCIPLES:
  1. Immutability: Sales and payments are never edited or deleted
  2. Precision: All money uses decimal.Decimal
  3. Snapshots: Sale lines copy name/price/cost, never reference live products
  4. Type Safety: Distinct ID types for products, clients, sales, payments

SEE ALSO:
  - state.go: The aggregate state and its copy-on-write helpers
  - engine.go: CommitSale
  - payments.go: RecordPayment and client registration
  - catalog.go: Product edits and manual stock adjustment
*/
package pos

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type ClientID string
type SaleID string
type PaymentID string

// =============================================================================
// CATEGORY - Closed set
// =============================================================================

type Category string

const (
	CategoryMasaYTortilla Category = "Masa y Tortilla"
	CategoryAbarrotes     Category = "Abarrotes"
	CategoryBebidas       Category = "Bebidas"
	CategoryVarios        Category = "Varios"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryMasaYTortilla,
	CategoryAbarrotes,
	CategoryBebidas,
	CategoryVarios,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c *Category) UnmarshalText(b []byte) error {
	v := Category(b)
	if !v.Valid() {
		return fmt.Errorf("unknown category %q", string(b))
	}
	*c = v
	return nil
}

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodCredit PaymentMethod = "credit"
)

// ParsePaymentMethod accepts the canonical names and the labels used at the
// counter ("efectivo"/"contado" for cash, "crédito"/"fiado" for credit).
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash", "efectivo", "contado":
		return MethodCash, nil
	case "credit", "crédito", "credito", "fiado":
		return MethodCredit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
}

func (m PaymentMethod) Valid() bool { return m == MethodCash || m == MethodCredit }

func (m *PaymentMethod) UnmarshalText(b []byte) error {
	v, err := ParsePaymentMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// =============================================================================
// PRODUCT
// =============================================================================

type Product struct {
	ID        ProductID       `json:"id"`
	Name      string          `json:"name"`
	BuyPrice  decimal.Decimal `json:"buyPrice"`
	SellPrice decimal.Decimal `json:"sellPrice"`
	Stock     int             `json:"stock"`
	Category  Category        `json:"category"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a credit account. Balance is signed: positive means the client
// owes the shop, negative means the shop owes the client (overpayment).
type Client struct {
	ID      ClientID        `json:"id"`
	Name    string          `json:"name"`
	Address string          `json:"address"`
	Phone   string          `json:"phone"`
	Balance decimal.Decimal `json:"balance"`

	// OpeningBalance is the balance the account started with. Zero for clients
	// registered through AddClient; seeded accounts carry their initial debt.
	OpeningBalance decimal.Decimal `json:"openingBalance"`
}

// =============================================================================
// SALE
// =============================================================================

// SaleItem is a snapshot of a product at the moment it was sold.
type SaleItem struct {
	ProductID ProductID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
}

func (i SaleItem) Subtotal() decimal.Decimal     { return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))) }
func (i SaleItem) CostSubtotal() decimal.Decimal { return i.Cost.Mul(decimal.NewFromInt(int64(i.Quantity))) }

// Sale is an immutable journal entry. ClientID is set if and only if
// Method is MethodCredit.
type Sale struct {
	ID        SaleID          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Items     []SaleItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	TotalCost decimal.Decimal `json:"totalCost"`
	Method    PaymentMethod   `json:"method"`
	ClientID  ClientID        `json:"clientId,omitempty"`
}

// Profit is Total minus TotalCost.
func (s Sale) Profit() decimal.Decimal { return s.Total.Sub(s.TotalCost) }

// clone copies the item slice so callers cannot reach journal storage.
func (s Sale) clone() Sale {
	s.Items = append([]SaleItem(nil), s.Items...)
	return s
}

// =============================================================================
// CREDIT PAYMENT
// =============================================================================

type CreditPayment struct {
	ID        PaymentID       `json:"id"`
	ClientID  ClientID        `json:"clientId"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals computes Σ(price×quantity) and Σ(cost×quantity) exactly.
func Totals(items []SaleItem) (total, totalCost decimal.Decimal) {
	total, totalCost = decimal.Zero, decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
		totalCost = totalCost.Add(it.CostSubtotal())
	}
	return total, totalCost
}

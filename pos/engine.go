/*
engine.go - Sale commit

PURPOSE:
  CommitSale turns a cart into a journal entry and applies its effects to
  stock and (for credit sales) the client's balance, all or nothing.

ALGORITHM:
  1. Validate method and client reference
  2. Collapse duplicate product lines (quantities summed)
  3. Check every product exists and covers the aggregated quantity
  4. Compute total / totalCost from the collapsed lines
  5. Build the new State: decrement stock, bump balance, append Sale

  Steps 1-4 read only. Step 5 runs only after every check passed, and it
  writes to fresh slices, so the input State is never modified.

INVARIANTS ESTABLISHED:
  - Sale.Total == Σ price×qty, Sale.TotalCost == Σ cost×qty (exact decimals)
  - Credit sale => ClientID refers to an existing client
  - No product stock goes negative
  - Client balance moves by exactly Sale.Total for credit sales

SEE ALSO:
  - cart.go: Builds the SaleItem list
  - controller.go: Supplies ids/timestamps and persists the result
*/
package pos

import (
	"math"
	"time"
)

// SaleCommand is the input to CommitSale. ID and At are supplied by the
// caller so the function stays deterministic.
type SaleCommand struct {
	ID       SaleID
	At       time.Time
	Items    []SaleItem
	Method   PaymentMethod
	ClientID ClientID
}

// CommitSale validates cmd against s and returns the new state and the
// journaled sale. On error the returned state is nil and s is unchanged.
func CommitSale(s *State, cmd SaleCommand) (*State, Sale, error) {
	if !cmd.Method.Valid() {
		return nil, Sale{}, ErrInvalidPaymentMethod
	}

	clientIdx := -1
	if cmd.Method == MethodCredit {
		if cmd.ClientID == "" {
			return nil, Sale{}, ErrMissingClientReference
		}
		if clientIdx = s.clientIndex(cmd.ClientID); clientIdx < 0 {
			return nil, Sale{}, &UnknownClientError{ClientID: cmd.ClientID}
		}
	}

	items, err := collapse(cmd.Items)
	if err != nil {
		return nil, Sale{}, err
	}

	productIdx := make([]int, len(items))
	for i, it := range items {
		idx := s.productIndex(it.ProductID)
		if idx < 0 {
			return nil, Sale{}, &UnknownProductError{ProductID: it.ProductID}
		}
		if stock := s.Products[idx].Stock; stock < it.Quantity {
			return nil, Sale{}, &InsufficientStockError{
				ProductID: it.ProductID,
				Available: stock,
				Requested: it.Quantity,
			}
		}
		productIdx[i] = idx
	}

	total, totalCost := Totals(items)
	sale := Sale{
		ID:        cmd.ID,
		Timestamp: cmd.At,
		Items:     items,
		Total:     total,
		TotalCost: totalCost,
		Method:    cmd.Method,
	}

	// Everything validated. Apply.
	next := s.shallow()

	next.Products = s.copyProducts()
	for i, it := range items {
		next.Products[productIdx[i]].Stock -= it.Quantity
	}

	if cmd.Method == MethodCredit {
		sale.ClientID = cmd.ClientID
		next.Clients = s.copyClients()
		c := &next.Clients[clientIdx]
		c.Balance = c.Balance.Add(total)
	}

	next.Sales = appendSale(s.Sales, sale)
	return next, sale.clone(), nil
}

// collapse merges lines for the same product, summing quantities and keeping
// the first line's snapshot. Order of first appearance is preserved. A fresh
// slice is always returned so the caller's items are never aliased. Summed
// quantities saturate at math.MaxInt, which no stock can cover.
func collapse(items []SaleItem) ([]SaleItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	out := make([]SaleItem, 0, len(items))
	seen := make(map[ProductID]int, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if it.Price.IsNegative() || it.Cost.IsNegative() {
			return nil, ErrInvalidProduct
		}
		if i, ok := seen[it.ProductID]; ok {
			out[i].Quantity = addQuantity(out[i].Quantity, it.Quantity)
			continue
		}
		seen[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func addQuantity(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

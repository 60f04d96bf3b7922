/*
cart.go - Cart builder

PURPOSE:
  Staging area for a sale in progress. Lines snapshot name/price/cost when
  first added and are bounded by the product's live stock. The cart never
  touches the catalog or clients; it is consumed once by CommitSale.

RULES:
  AddItem      +1 if already present (no-op past stock), else new line qty 1
  SetQuantity  clamp to [0, stock]; 0 removes the line
  RemoveItem   unconditional

  Cart is not safe for concurrent use.
*/
package pos

import (
	"github.com/shopspring/decimal"
)

type Cart struct {
	catalog Catalog
	lines   []SaleItem
}

func NewCart(catalog Catalog) *Cart {
	return &Cart{catalog: catalog}
}

// AddItem adds one unit of p. Returns false when nothing changed.
func (c *Cart) AddItem(p Product) bool {
	if i := c.index(p.ID); i >= 0 {
		if c.lines[i].Quantity+1 > p.Stock {
			return false
		}
		c.lines[i].Quantity++
		return true
	}
	if p.Stock < 1 {
		return false
	}
	c.lines = append(c.lines, SaleItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  1,
		Price:     p.SellPrice,
		Cost:      p.BuyPrice,
	})
	return true
}

// AddProduct looks id up in the catalog and adds one unit of it.
func (c *Cart) AddProduct(id ProductID) error {
	p, ok := c.catalog.Product(id)
	if !ok {
		return &UnknownProductError{ProductID: id}
	}
	c.AddItem(p)
	return nil
}

// SetQuantity sets a line's quantity clamped to [0, current stock].
// Lines not in the cart are ignored. Returns the resulting quantity.
func (c *Cart) SetQuantity(id ProductID, qty int) int {
	i := c.index(id)
	if i < 0 {
		return 0
	}
	stock := 0
	if p, ok := c.catalog.Product(id); ok {
		stock = p.Stock
	}
	qty = min(max(qty, 0), stock)
	if qty == 0 {
		c.removeAt(i)
		return 0
	}
	c.lines[i].Quantity = qty
	return qty
}

func (c *Cart) RemoveItem(id ProductID) {
	if i := c.index(id); i >= 0 {
		c.removeAt(i)
	}
}

func (c *Cart) Clear() { c.lines = nil }

func (c *Cart) Len() int { return len(c.lines) }

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []SaleItem {
	return append([]SaleItem(nil), c.lines...)
}

// Total is the running Σ price×qty shown to the operator.
func (c *Cart) Total() decimal.Decimal {
	total, _ := Totals(c.lines)
	return total
}

func (c *Cart) index(id ProductID) int {
	for i := range c.lines {
		if c.lines[i].ProductID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

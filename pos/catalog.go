package pos

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ProductInput is what the catalog entry form collects.
type ProductInput struct {
	Name      string
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	Stock     int
	Category  Category
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case in.BuyPrice.IsNegative():
		return fmt.Errorf("%w: buy price must be >= 0", ErrInvalidProduct)
	case in.SellPrice.IsNegative():
		return fmt.Errorf("%w: sell price must be >= 0", ErrInvalidProduct)
	case in.Stock < 0:
		return fmt.Errorf("%w: stock must be >= 0", ErrInvalidProduct)
	case !in.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, in.Category)
	}
	return nil
}

// AddProduct appends a new product to the catalog.
func AddProduct(s *State, id ProductID, in ProductInput) (*State, Product, error) {
	if err := in.validate(); err != nil {
		return nil, Product{}, err
	}
	if id == "" || s.productIndex(id) >= 0 {
		return nil, Product{}, ErrDuplicateID
	}

	p := Product{
		ID:        id,
		Name:      strings.TrimSpace(in.Name),
		BuyPrice:  in.BuyPrice,
		SellPrice: in.SellPrice,
		Stock:     in.Stock,
		Category:  in.Category,
	}
	next := s.shallow()
	next.Products = append(s.copyProducts(), p)
	return next, p, nil
}

// UpdateProduct replaces an existing product. Journaled sales keep their own
// snapshots and are not affected by price edits.
func UpdateProduct(s *State, id ProductID, in ProductInput) (*State, Product, error) {
	if err := in.validate(); err != nil {
		return nil, Product{}, err
	}
	idx := s.productIndex(id)
	if idx < 0 {
		return nil, Product{}, &UnknownProductError{ProductID: id}
	}

	next := s.shallow()
	next.Products = s.copyProducts()
	p := &next.Products[idx]
	p.Name = strings.TrimSpace(in.Name)
	p.BuyPrice = in.BuyPrice
	p.SellPrice = in.SellPrice
	p.Stock = in.Stock
	p.Category = in.Category
	return next, *p, nil
}

// AdjustStock applies a manual inventory correction: stock = max(0, stock+delta).
// Unlike a sale, an over-large outbound correction is clamped, not rejected.
func AdjustStock(s *State, id ProductID, delta int) (*State, Product, error) {
	idx := s.productIndex(id)
	if idx < 0 {
		return nil, Product{}, &UnknownProductError{ProductID: id}
	}

	next := s.shallow()
	next.Products = s.copyProducts()
	p := &next.Products[idx]
	p.Stock = max(0, p.Stock+delta)
	return next, *p, nil
}

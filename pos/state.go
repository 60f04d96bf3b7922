/*
state.go - The aggregate state container

PURPOSE:
  State is the whole shop: catalog, clients, sale journal, payment journal.
  It is treated as a value. Commands never modify a State in place; they
  return a new State that shares untouched parts with the old one.

COPY-ON-WRITE:
  - Products/Clients: the slice is copied before an element is replaced
  - Sales/Payments: appended with a capped slice so the old backing array
    is never written
  - Sale items are never modified after creation

  Because of this a *State handed to the Persister or to a report can be read
  without locks while the Controller keeps committing.

SEE ALSO:
  - controller.go: Owns the current *State
  - codec.go: JSON document form of State
*/
package pos

import (
	"fmt"
)

type State struct {
	Products []Product       `json:"products"`
	Clients  []Client        `json:"clients"`
	Sales    []Sale          `json:"sales"`
	Payments []CreditPayment `json:"payments"`
}

// Catalog is the read access the Cart Builder needs.
type Catalog interface {
	Product(id ProductID) (Product, bool)
}

// =============================================================================
// LOOKUPS
// =============================================================================

func (s *State) Product(id ProductID) (Product, bool) {
	if i := s.productIndex(id); i >= 0 {
		return s.Products[i], true
	}
	return Product{}, false
}

func (s *State) Client(id ClientID) (Client, bool) {
	if i := s.clientIndex(id); i >= 0 {
		return s.Clients[i], true
	}
	return Client{}, false
}

func (s *State) productIndex(id ProductID) int {
	for i := range s.Products {
		if s.Products[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) clientIndex(id ClientID) int {
	for i := range s.Clients {
		if s.Clients[i].ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// COPY-ON-WRITE HELPERS
// =============================================================================

// shallow returns a new State header sharing all slices with s.
func (s *State) shallow() *State {
	next := *s
	return &next
}

func (s *State) copyProducts() []Product {
	return append([]Product(nil), s.Products...)
}

func (s *State) copyClients() []Client {
	return append([]Client(nil), s.Clients...)
}

func appendSale(sales []Sale, sale Sale) []Sale {
	return append(sales[:len(sales):len(sales)], sale)
}

func appendPayment(payments []CreditPayment, p CreditPayment) []CreditPayment {
	return append(payments[:len(payments):len(payments)], p)
}

// Clone returns a deep copy. Used for read snapshots handed outside the package.
func (s *State) Clone() *State {
	out := &State{
		Products: s.copyProducts(),
		Clients:  s.copyClients(),
		Sales:    make([]Sale, len(s.Sales)),
		Payments: make([]CreditPayment, len(s.Payments)),
	}
	copy(out.Payments, s.Payments)
	for i, sale := range s.Sales {
		out.Sales[i] = sale.clone()
	}
	return out
}

// =============================================================================
// STRUCTURAL CHECK
// =============================================================================

// Validate verifies that every record has a non-empty, unique id and
// that journal entries carry a known method. Gateways treat loaded state
// failing this as malformed.
func (s *State) Validate() error {
	products := make(map[ProductID]bool, len(s.Products))
	for _, p := range s.Products {
		if p.ID == "" || products[p.ID] {
			return fmt.Errorf("%w: product %q", ErrDuplicateID, p.ID)
		}
		products[p.ID] = true
	}
	clients := make(map[ClientID]bool, len(s.Clients))
	for _, c := range s.Clients {
		if c.ID == "" || clients[c.ID] {
			return fmt.Errorf("%w: client %q", ErrDuplicateID, c.ID)
		}
		clients[c.ID] = true
	}
	sales := make(map[SaleID]bool, len(s.Sales))
	for _, sale := range s.Sales {
		if sale.ID == "" || sales[sale.ID] {
			return fmt.Errorf("%w: sale %q", ErrDuplicateID, sale.ID)
		}
		if !sale.Method.Valid() {
			return fmt.Errorf("%w: sale %q method %q", ErrInvalidPaymentMethod, sale.ID, sale.Method)
		}
		sales[sale.ID] = true
	}
	payments := make(map[PaymentID]bool, len(s.Payments))
	for _, p := range s.Payments {
		if p.ID == "" || payments[p.ID] {
			return fmt.Errorf("%w: payment %q", ErrDuplicateID, p.ID)
		}
		payments[p.ID] = true
	}
	return nil
}

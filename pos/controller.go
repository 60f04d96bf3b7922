/*
controller.go - State owner

PURPOSE:
  The Controller is the only holder of the current *State. Every mutation
  goes through apply(): run a pure command against the current state, and on
  success swap in the returned state and hand it to the saver. A failing
  command leaves the current pointer untouched, which is what makes every
  operation all-or-nothing.

CONCURRENCY:
  There is one logical writer (the operator). The mutex only serializes
  requests arriving through the HTTP layer; commands themselves never block.

READ SURFACE:
  Products/Clients/Sales/Payments/Snapshot return copies. Nothing outside
  this package can reach the live state.
*/
package pos

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Saver receives every committed state. *Persister implements it.
type Saver interface {
	Submit(s *State)
	Status() SaveStatus
}

// SaleResult is the outcome of a successful commit.
type SaleResult struct {
	Sale     Sale
	Warnings []string
}

type Controller struct {
	// HighBalanceThreshold adds a warning to credit sales for clients whose
	// balance already exceeds it. Zero disables the warning.
	HighBalanceThreshold decimal.Decimal

	// Now and NewID are replaceable for deterministic tests.
	Now   func() time.Time
	NewID func(prefix string) string

	mu    sync.Mutex
	state *State
	saver Saver
	log   *zap.Logger
}

func NewController(initial *State, saver Saver, log *zap.Logger) *Controller {
	return &Controller{
		HighBalanceThreshold: decimal.NewFromInt(1000),
		Now:                  time.Now,
		NewID:                NewID,
		state:                initial,
		saver:                saver,
		log:                  log.Named("controller"),
	}
}

// NewID returns a time-ordered unique id (UUIDv7) with an optional prefix.
func NewID(prefix string) string {
	id := uuid.Must(uuid.NewV7()).String()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

func (c *Controller) apply(fn func(s *State) (*State, error)) error {
	next, err := fn(c.state)
	if err != nil {
		return err
	}
	c.state = next
	c.saver.Submit(next)
	return nil
}

// =============================================================================
// SALES
// =============================================================================

// CommitSale journals a sale built from items. clientID is required for
// credit sales and ignored for cash.
func (c *Controller) CommitSale(items []SaleItem, method PaymentMethod, clientID ClientID) (SaleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked(items, method, clientID)
}

// Checkout commits the cart's lines and empties it on success. On failure
// the cart is left as-is so the operator can correct it.
func (c *Controller) Checkout(cart *Cart, method PaymentMethod, clientID ClientID) (SaleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.commitLocked(cart.Items(), method, clientID)
	if err != nil {
		return SaleResult{}, err
	}
	cart.Clear()
	return res, nil
}

func (c *Controller) commitLocked(items []SaleItem, method PaymentMethod, clientID ClientID) (SaleResult, error) {
	var result SaleResult
	if method == MethodCash {
		clientID = ""
	}

	var before Client
	if method == MethodCredit {
		before, _ = c.state.Client(clientID)
	}

	cmd := SaleCommand{
		ID:       SaleID(c.NewID("")),
		At:       c.Now(),
		Items:    items,
		Method:   method,
		ClientID: clientID,
	}
	err := c.apply(func(s *State) (*State, error) {
		next, sale, err := CommitSale(s, cmd)
		result.Sale = sale
		return next, err
	})
	if err != nil {
		c.log.Info("sale rejected", zap.String("method", string(method)), zap.String("client_id", string(clientID)), zap.Error(err))
		return SaleResult{}, err
	}

	if method == MethodCredit && c.HighBalanceThreshold.IsPositive() && before.Balance.GreaterThan(c.HighBalanceThreshold) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("client %s already owed %s before this sale", before.Name, before.Balance.StringFixed(2)))
	}

	c.log.Info("sale committed",
		zap.String("sale_id", string(result.Sale.ID)),
		zap.String("method", string(result.Sale.Method)),
		zap.String("client_id", string(result.Sale.ClientID)),
		zap.String("total", result.Sale.Total.StringFixed(2)),
		zap.Int("lines", len(result.Sale.Items)))
	return result, nil
}

// =============================================================================
// CLIENT LEDGER
// =============================================================================

func (c *Controller) RecordPayment(clientID ClientID, amount decimal.Decimal) (CreditPayment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var payment CreditPayment
	cmd := PaymentCommand{
		ID:       PaymentID(c.NewID("pay")),
		At:       c.Now(),
		ClientID: clientID,
		Amount:   amount,
	}
	err := c.apply(func(s *State) (*State, error) {
		next, p, err := RecordPayment(s, cmd)
		payment = p
		return next, err
	})
	if err != nil {
		return CreditPayment{}, err
	}
	c.log.Info("payment recorded",
		zap.String("payment_id", string(payment.ID)),
		zap.String("client_id", string(clientID)),
		zap.String("amount", amount.StringFixed(2)))
	return payment, nil
}

func (c *Controller) AddClient(in ClientInput) (Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var client Client
	id := ClientID(c.NewID("c"))
	err := c.apply(func(s *State) (*State, error) {
		next, cl, err := AddClient(s, id, in)
		client = cl
		return next, err
	})
	if err != nil {
		return Client{}, err
	}
	c.log.Info("client registered", zap.String("client_id", string(client.ID)))
	return client, nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (c *Controller) AddProduct(in ProductInput) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var product Product
	id := ProductID(c.NewID(""))
	err := c.apply(func(s *State) (*State, error) {
		next, p, err := AddProduct(s, id, in)
		product = p
		return next, err
	})
	if err != nil {
		return Product{}, err
	}
	c.log.Info("product added", zap.String("product_id", string(product.ID)), zap.String("name", product.Name))
	return product, nil
}

func (c *Controller) UpdateProduct(id ProductID, in ProductInput) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var product Product
	err := c.apply(func(s *State) (*State, error) {
		next, p, err := UpdateProduct(s, id, in)
		product = p
		return next, err
	})
	if err != nil {
		return Product{}, err
	}
	c.log.Info("product updated", zap.String("product_id", string(id)))
	return product, nil
}

func (c *Controller) AdjustStock(id ProductID, delta int) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var product Product
	err := c.apply(func(s *State) (*State, error) {
		next, p, err := AdjustStock(s, id, delta)
		product = p
		return next, err
	})
	if err != nil {
		return Product{}, err
	}
	c.log.Info("stock adjusted",
		zap.String("product_id", string(id)),
		zap.Int("delta", delta),
		zap.Int("stock", product.Stock))
	return product, nil
}

// Reset re-seeds the catalog and clients with the bootstrap data. It is only
// allowed while no sale or payment has been journaled; after that the
// journals are permanent.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.apply(func(s *State) (*State, error) {
		if len(s.Sales) > 0 || len(s.Payments) > 0 {
			return nil, ErrJournalNotEmpty
		}
		return Bootstrap(), nil
	})
	if err != nil {
		return err
	}
	c.log.Warn("catalog and clients reset to bootstrap data")
	return nil
}

// =============================================================================
// READ SURFACE
// =============================================================================

func (c *Controller) current() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Product implements Catalog for carts.
func (c *Controller) Product(id ProductID) (Product, bool) { return c.current().Product(id) }

func (c *Controller) Client(id ClientID) (Client, bool) { return c.current().Client(id) }

func (c *Controller) Products() []Product { return c.current().copyProducts() }

func (c *Controller) Clients() []Client { return c.current().copyClients() }

func (c *Controller) Sales() []Sale { return c.current().Clone().Sales }

func (c *Controller) Payments() []CreditPayment { return c.current().Clone().Payments }

// Snapshot returns a deep copy of the whole aggregate.
func (c *Controller) Snapshot() *State { return c.current().Clone() }

// SaveStatus reports whether the last durable save failed.
func (c *Controller) SaveStatus() SaveStatus { return c.saver.Status() }

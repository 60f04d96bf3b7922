package pos_test

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tortipos/pos"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var t0 = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func money(s string) decimal.Decimal { return pos.MustMoney(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, money(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// line snapshots a product from s the way the cart would.
func line(t *testing.T, s *pos.State, id pos.ProductID, qty int) pos.SaleItem {
	t.Helper()
	p, ok := s.Product(id)
	require.True(t, ok, "product %s should exist", id)
	return pos.SaleItem{ProductID: p.ID, Name: p.Name, Quantity: qty, Price: p.SellPrice, Cost: p.BuyPrice}
}

func saleCmd(n int, items []pos.SaleItem, method pos.PaymentMethod, client pos.ClientID) pos.SaleCommand {
	return pos.SaleCommand{
		ID:       pos.SaleID(fmt.Sprintf("sale-%d", n)),
		At:       t0.Add(time.Duration(n) * time.Minute),
		Items:    items,
		Method:   method,
		ClientID: client,
	}
}

func encoded(t *testing.T, s *pos.State) string {
	t.Helper()
	b, err := pos.EncodeState(s)
	require.NoError(t, err)
	return string(b)
}

func stockOf(t *testing.T, s *pos.State, id pos.ProductID) int {
	t.Helper()
	p, ok := s.Product(id)
	require.True(t, ok)
	return p.Stock
}

func balanceOf(t *testing.T, s *pos.State, id pos.ClientID) decimal.Decimal {
	t.Helper()
	c, ok := s.Client(id)
	require.True(t, ok)
	return c.Balance
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestCommitSale_CashSale_ComputesTotalsAndDecrementsStock(t *testing.T) {
	// GIVEN: Product "1" with stock 200, sell 24.00, buy 18.00
	// WHEN: Selling 5 units for cash
	// THEN: total 120.00, totalCost 90.00, stock 195

	s := pos.Bootstrap()

	next, sale, err := pos.CommitSale(s, saleCmd(1, []pos.SaleItem{line(t, s, "1", 5)}, pos.MethodCash, ""))
	require.NoError(t, err)

	assertMoney(t, "120.00", sale.Total)
	assertMoney(t, "90.00", sale.TotalCost)
	assertMoney(t, "30.00", sale.Profit())
	assert.Equal(t, pos.MethodCash, sale.Method)
	assert.Empty(t, sale.ClientID)
	assert.Equal(t, 195, stockOf(t, next, "1"))
	require.Len(t, next.Sales, 1)
	assert.Equal(t, pos.SaleID("sale-1"), next.Sales[0].ID)
}

func TestCommitSale_CreditSale_IncreasesClientBalance(t *testing.T) {
	// GIVEN: Client c1 owes 150.00
	// WHEN: Selling 2 kilos of tortilla (24.00) on credit to c1
	// THEN: c1 owes 198.00 and stock drops by 2

	s := pos.Bootstrap()

	next, sale, err := pos.CommitSale(s, saleCmd(1, []pos.SaleItem{line(t, s, "1", 2)}, pos.MethodCredit, "c1"))
	require.NoError(t, err)

	assertMoney(t, "48.00", sale.Total)
	assert.Equal(t, pos.ClientID("c1"), sale.ClientID)
	assertMoney(t, "198.00", balanceOf(t, next, "c1"))
	assert.Equal(t, 198, stockOf(t, next, "1"))

	// Other clients untouched
	assertMoney(t, "0.00", balanceOf(t, next, "c2"))
	assertMoney(t, "450.50", balanceOf(t, next, "c3"))
}

func TestCommitSale_CreditWithoutClient_Rejected(t *testing.T) {
	s := pos.Bootstrap()
	before := encoded(t, s)

	next, _, err := pos.CommitSale(s, saleCmd(1, []pos.SaleItem{line(t, s, "1", 2)}, pos.MethodCredit, ""))

	assert.ErrorIs(t, err, pos.ErrMissingClientReference)
	assert.True(t, pos.IsValidationError(err))
	assert.Nil(t, next)
	assert.Equal(t, before, encoded(t, s), "state must be untouched")
}

func TestCommitSale_CreditUnknownClient_Rejected(t *testing.T) {
	s := pos.Bootstrap()
	before := encoded(t, s)

	_, _, err := pos.CommitSale(s, saleCmd(1, []pos.SaleItem{line(t, s, "1", 2)}, pos.MethodCredit, "nobody"))

	var unknown *pos.UnknownClientError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, pos.ClientID("nobody"), unknown.ClientID)
	assert.True(t, pos.IsNotFound(err))
	assert.Equal(t, before, encoded(t, s))
}

func TestCommitSale_InsufficientStock_Rejected(t *testing.T) {
	// GIVEN: Product "5" corrected down to 3 units
	// WHEN: Cart requests 5
	// THEN: InsufficientStock("5"), nothing changes

	s := pos.Bootstrap()
	s, _, err := pos.AdjustStock(s, "5", -12)
	require.NoError(t, err)
	require.Equal(t, 3, stockOf(t, s, "5"))
	before := encoded(t, s)

	_, _, err = pos.CommitSale(s, saleCmd(1, []pos.SaleItem{line(t, s, "5", 5)}, pos.MethodCash, ""))

	var stockErr *pos.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, pos.ProductID("5"), stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)
	assert.ErrorIs(t, err, pos.ErrInsufficientStock)
	assert.Equal(t, before, encoded(t, s))
}

func TestCommitSale_FailureAfterValidLines_NoPartialMutation(t *testing.T) {
	// GIVEN: A cart whose first line is fine and whose second line overflows
	// WHEN: Committing
	// THEN: The first product's stock is not decremented either

	s := pos.Bootstrap()
	before := encoded(t, s)

	items := []pos.SaleItem{line(t, s, "1", 10), line(t, s, "3", 25)}
	_, _, err := pos.CommitSale(s, saleCmd(1, items, pos.MethodCredit, "c1"))

	require.ErrorIs(t, err, pos.ErrInsufficientStock)
	assert.Equal(t, before, encoded(t, s))
	assert.Equal(t, 200, stockOf(t, s, "1"))
	assertMoney(t, "150.00", balanceOf(t, s, "c1"))
	assert.Empty(t, s.Sales)
}

// =============================================================================
// DUPLICATE LINES
// =============================================================================

func TestCommitSale_DuplicateLines_AggregatedBeforeStockCheck(t *testing.T) {
	// GIVEN: Product "5" has 15 units
	// WHEN: Two lines of 10 each for product "5"
	// THEN: Rejected, because 20 > 15 even though each line alone fits

	s := pos.Bootstrap()
	items := []pos.SaleItem{line(t, s, "5", 10), line(t, s, "5", 10)}

	_, _, err := pos.CommitSale(s, saleCmd(1, items, pos.MethodCash, ""))

	var stockErr *pos.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 20, stockErr.Requested)
	assert.Equal(t, 15, stockOf(t, s, "5"))
}

func TestCommitSale_HugeDuplicateQuantities_Rejected(t *testing.T) {
	// GIVEN: Product "5" has 15 units
	// WHEN: Two lines of math.MaxInt units each, whose sum would wrap negative
	// THEN: Rejected as insufficient stock, nothing changes

	s := pos.Bootstrap()
	items := []pos.SaleItem{line(t, s, "5", math.MaxInt), line(t, s, "5", math.MaxInt)}

	next, _, err := pos.CommitSale(s, saleCmd(1, items, pos.MethodCash, ""))

	var stockErr *pos.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, math.MaxInt, stockErr.Requested)
	assert.Nil(t, next)
	assert.Equal(t, 15, stockOf(t, s, "5"))
	assert.Empty(t, s.Sales)
}

func TestCommitSale_HugeSingleQuantity_Rejected(t *testing.T) {
	s := pos.Bootstrap()

	_, _, err := pos.CommitSale(s, saleCmd(1, []pos.SaleItem{line(t, s, "1", math.MaxInt)}, pos.MethodCash, ""))

	assert.ErrorIs(t, err, pos.ErrInsufficientStock)
	assert.Equal(t, 200, stockOf(t, s, "1"))
}

func TestCommitSale_DuplicateLines_CollapsedIntoOne(t *testing.T) {
	s := pos.Bootstrap()
	items := []pos.SaleItem{line(t, s, "1", 2), line(t, s, "3", 1), line(t, s, "1", 3)}

	next, sale, err := pos.CommitSale(s, saleCmd(1, items, pos.MethodCash, ""))
	require.NoError(t, err)

	require.Len(t, sale.Items, 2)
	assert.Equal(t, pos.ProductID("1"), sale.Items[0].ProductID)
	assert.Equal(t, 5, sale.Items[0].Quantity)
	assert.Equal(t, pos.ProductID("3"), sale.Items[1].ProductID)
	assertMoney(t, "139.00", sale.Total) // 5*24 + 19
	assert.Equal(t, 195, stockOf(t, next, "1"))
	assert.Equal(t, 2, items[0].Quantity, "caller's items must not be modified")
}

// =============================================================================
// INPUT VALIDATION
// =============================================================================

func TestCommitSale_InvalidInput(t *testing.T) {
	s := pos.Bootstrap()

	tests := []struct {
		name   string
		items  []pos.SaleItem
		method pos.PaymentMethod
		want   error
	}{
		{"empty cart", nil, pos.MethodCash, pos.ErrEmptyCart},
		{"zero quantity", []pos.SaleItem{line(t, s, "1", 0)}, pos.MethodCash, pos.ErrInvalidQuantity},
		{"negative quantity", []pos.SaleItem{line(t, s, "1", -2)}, pos.MethodCash, pos.ErrInvalidQuantity},
		{"unknown method", []pos.SaleItem{line(t, s, "1", 1)}, pos.PaymentMethod("barter"), pos.ErrInvalidPaymentMethod},
		{"unknown product", []pos.SaleItem{{ProductID: "zzz", Name: "?", Quantity: 1, Price: money("1")}}, pos.MethodCash, pos.ErrUnknownProduct},
		{"negative price", []pos.SaleItem{{ProductID: "1", Name: "x", Quantity: 1, Price: money("-1")}}, pos.MethodCash, pos.ErrInvalidProduct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := encoded(t, s)
			_, _, err := pos.CommitSale(s, saleCmd(1, tt.items, tt.method, ""))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, encoded(t, s))
		})
	}
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestProperty_StockConservation(t *testing.T) {
	// For any sequence of commits, stock_after == stock_before − Σ sold,
	// and stock never goes negative.

	rng := rand.New(rand.NewPCG(1, 2))
	s := pos.Bootstrap()
	initial := map[pos.ProductID]int{}
	for _, p := range s.Products {
		initial[p.ID] = p.Stock
	}
	sold := map[pos.ProductID]int{}

	for n := 0; n < 300; n++ {
		var items []pos.SaleItem
		for k := 0; k < 1+rng.IntN(3); k++ {
			p := s.Products[rng.IntN(len(s.Products))]
			items = append(items, line(t, s, p.ID, 1+rng.IntN(8)))
		}
		next, sale, err := pos.CommitSale(s, saleCmd(n, items, pos.MethodCash, ""))
		if err != nil {
			require.ErrorIs(t, err, pos.ErrInsufficientStock)
			continue
		}
		for _, it := range sale.Items {
			sold[it.ProductID] += it.Quantity
		}
		s = next
	}

	for _, p := range s.Products {
		assert.GreaterOrEqual(t, p.Stock, 0)
		assert.Equal(t, initial[p.ID]-sold[p.ID], p.Stock, "product %s", p.ID)
	}
}

func TestProperty_LedgerIdentity(t *testing.T) {
	// balance == opening + Σ credit sale totals − Σ payments, for every client,
	// after any interleaving of sales and payments.

	rng := rand.New(rand.NewPCG(7, 11))
	s := pos.Bootstrap()
	clients := []pos.ClientID{"c1", "c2", "c3"}

	for n := 0; n < 200; n++ {
		client := clients[rng.IntN(len(clients))]
		if rng.IntN(3) == 0 {
			amount := decimal.NewFromInt(int64(1 + rng.IntN(200))).Div(decimal.NewFromInt(4))
			next, _, err := pos.RecordPayment(s, pos.PaymentCommand{
				ID: pos.PaymentID(fmt.Sprintf("pay-%d", n)), At: t0, ClientID: client, Amount: amount,
			})
			require.NoError(t, err)
			s = next
			continue
		}
		p := s.Products[rng.IntN(len(s.Products))]
		if p.Stock == 0 {
			continue
		}
		next, _, err := pos.CommitSale(s, saleCmd(n, []pos.SaleItem{line(t, s, p.ID, 1)}, pos.MethodCredit, client))
		require.NoError(t, err)
		s = next
	}

	for _, c := range s.Clients {
		want := c.OpeningBalance
		for _, sale := range s.Sales {
			if sale.Method == pos.MethodCredit && sale.ClientID == c.ID {
				want = want.Add(sale.Total)
			}
		}
		for _, p := range s.Payments {
			if p.ClientID == c.ID {
				want = want.Sub(p.Amount)
			}
		}
		assert.True(t, want.Equal(c.Balance), "client %s: want %s got %s", c.ID, want, c.Balance)
	}
}

func TestProperty_SaleImmutableAfterPriceEdit(t *testing.T) {
	s := pos.Bootstrap()
	s, sale, err := pos.CommitSale(s, saleCmd(1, []pos.SaleItem{line(t, s, "1", 5)}, pos.MethodCash, ""))
	require.NoError(t, err)

	s, _, err = pos.UpdateProduct(s, "1", pos.ProductInput{
		Name: "Kilo de Tortilla", BuyPrice: money("20.00"), SellPrice: money("30.00"),
		Stock: 195, Category: pos.CategoryMasaYTortilla,
	})
	require.NoError(t, err)

	stored := s.Sales[0]
	assertMoney(t, "120.00", stored.Total)
	assertMoney(t, "90.00", stored.TotalCost)
	assertMoney(t, "24.00", stored.Items[0].Price)
	assert.True(t, sale.Total.Equal(stored.Total))
}

func TestCommitSale_OldStateNotModified(t *testing.T) {
	// Commands return a new state; the previous one stays readable as it was.
	s := pos.Bootstrap()
	before := encoded(t, s)

	next, _, err := pos.CommitSale(s, saleCmd(1, []pos.SaleItem{line(t, s, "1", 5)}, pos.MethodCredit, "c1"))
	require.NoError(t, err)

	assert.Equal(t, before, encoded(t, s))
	assert.NotEqual(t, before, encoded(t, next))
}

func TestTotals_ExactDecimals(t *testing.T) {
	items := []pos.SaleItem{
		{Quantity: 3, Price: money("0.10"), Cost: money("0.07")},
		{Quantity: 7, Price: money("17.50"), Cost: money("13.00")},
	}
	total, cost := pos.Totals(items)
	assertMoney(t, "122.80", total)
	assertMoney(t, "91.21", cost)
}

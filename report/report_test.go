package report_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tortipos/pos"
	"github.com/warp/tortipos/report"
)

var (
	mx       = time.FixedZone("CST", -6*3600)
	morning  = time.Date(2026, 3, 14, 8, 0, 0, 0, mx)
	evening  = time.Date(2026, 3, 14, 21, 0, 0, 0, mx)
	tomorrow = time.Date(2026, 3, 15, 0, 30, 0, 0, mx)
)

func money(s string) decimal.Decimal { return pos.MustMoney(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, money(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

type shop struct {
	t *testing.T
	s *pos.State
	n int
}

func newShop(t *testing.T) *shop { return &shop{t: t, s: pos.Bootstrap()} }

func (sh *shop) sell(at time.Time, method pos.PaymentMethod, client pos.ClientID, lines map[pos.ProductID]int) pos.Sale {
	sh.t.Helper()
	var items []pos.SaleItem
	for _, id := range []pos.ProductID{"1", "2", "3", "4", "5", "6"} {
		if qty, ok := lines[id]; ok {
			p, _ := sh.s.Product(id)
			items = append(items, pos.SaleItem{ProductID: id, Name: p.Name, Quantity: qty, Price: p.SellPrice, Cost: p.BuyPrice})
		}
	}
	sh.n++
	next, sale, err := pos.CommitSale(sh.s, pos.SaleCommand{
		ID: pos.SaleID("s" + string(rune('0'+sh.n))), At: at, Items: items, Method: method, ClientID: client,
	})
	require.NoError(sh.t, err)
	sh.s = next
	return sale
}

func (sh *shop) pay(at time.Time, client pos.ClientID, amount string) {
	sh.t.Helper()
	sh.n++
	next, _, err := pos.RecordPayment(sh.s, pos.PaymentCommand{
		ID: pos.PaymentID("p" + string(rune('0'+sh.n))), At: at, ClientID: client, Amount: money(amount),
	})
	require.NoError(sh.t, err)
	sh.s = next
}

func TestDaySummary(t *testing.T) {
	// GIVEN: two sales today (cash 110.00, credit 80.00), one sale tomorrow,
	//        and a 50.00 payment today
	sh := newShop(t)
	sh.sell(morning, pos.MethodCash, "", map[pos.ProductID]int{"1": 3, "3": 2})
	sh.sell(evening, pos.MethodCredit, "c2", map[pos.ProductID]int{"6": 4})
	sh.sell(tomorrow, pos.MethodCash, "", map[pos.ProductID]int{"1": 1})
	sh.pay(evening, "c1", "50")

	agg := report.NewAggregator(mx, money("0.16"))

	// WHEN: the cut is computed for today
	sum := agg.DaySummary(sh.s, morning)

	// THEN: only today's activity counts
	assert.Equal(t, "2026-03-14", sum.Date)
	assert.Equal(t, 2, sum.SaleCount)
	assert.Equal(t, 1, sum.CreditSaleCount)
	assertMoney(t, "190.00", sum.Revenue)
	assertMoney(t, "143.00", sum.Cost) // 54+29 + 60
	assertMoney(t, "47.00", sum.Profit)
	assertMoney(t, "110.00", sum.CashTotal)
	assertMoney(t, "80.00", sum.CreditTotal)
	assertMoney(t, "50.00", sum.PaymentsReceived)

	require.Len(t, sum.Sales, 2)
	assert.True(t, sum.Sales[0].Timestamp.Equal(evening), "newest first")

	assertMoney(t, "163.79", sum.Tax.Subtotal)
	assertMoney(t, "26.21", sum.Tax.Tax)
	assertMoney(t, "190.00", sum.Tax.Total)
}

func TestDaySummary_EmptyDay(t *testing.T) {
	agg := report.NewAggregator(mx, money("0.16"))

	sum := agg.DaySummary(pos.Bootstrap(), morning)

	assert.Zero(t, sum.SaleCount)
	assert.True(t, sum.Revenue.IsZero())
	assert.NotNil(t, sum.Sales)
}

func TestDayBounds_UsesLocation(t *testing.T) {
	agg := report.NewAggregator(mx, decimal.Zero)

	// 03:00 UTC on the 15th is still the 14th in CST
	from, to := agg.DayBounds(time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, mx), from)
	assert.Equal(t, 24*time.Hour, to.Sub(from))
}

func TestCategoryBreakdown(t *testing.T) {
	sh := newShop(t)
	sh.sell(morning, pos.MethodCash, "", map[pos.ProductID]int{"1": 2, "3": 1, "5": 1})
	sh.sell(evening, pos.MethodCash, "", map[pos.ProductID]int{"4": 2})

	agg := report.NewAggregator(mx, decimal.Zero)
	from, to := agg.DayBounds(morning)

	got := agg.CategoryBreakdown(sh.s, from, to)

	require.Len(t, got, 3)
	assert.Equal(t, pos.CategoryMasaYTortilla, got[0].Category)
	assertMoney(t, "48.00", got[0].Total)
	assert.Equal(t, pos.CategoryAbarrotes, got[1].Category)
	assertMoney(t, "22.00", got[1].Total)
	assert.Equal(t, pos.CategoryBebidas, got[2].Category)
	assertMoney(t, "54.00", got[2].Total)
}

func TestCategoryBreakdown_MissingProductCountsAsVarios(t *testing.T) {
	sh := newShop(t)
	sh.sell(morning, pos.MethodCash, "", map[pos.ProductID]int{"2": 1})
	sh.s.Products = sh.s.Products[:1] // product "2" no longer in the catalog

	agg := report.NewAggregator(mx, decimal.Zero)
	from, to := agg.DayBounds(morning)

	got := agg.CategoryBreakdown(sh.s, from, to)

	require.Len(t, got, 1)
	assert.Equal(t, pos.CategoryVarios, got[0].Category)
	assertMoney(t, "35.00", got[0].Total)
}

func TestProductSummary_GroupsByName(t *testing.T) {
	sh := newShop(t)
	sh.sell(morning, pos.MethodCash, "", map[pos.ProductID]int{"1": 2, "3": 1})
	sh.sell(evening, pos.MethodCash, "", map[pos.ProductID]int{"1": 3})

	agg := report.NewAggregator(mx, decimal.Zero)
	from, to := agg.DayBounds(morning)

	got := agg.ProductSummary(sh.s, from, to)

	require.Len(t, got, 2)
	assert.Equal(t, "Kilo de Tortilla", got[0].Name)
	assert.Equal(t, 5, got[0].Quantity)
	assertMoney(t, "120.00", got[0].Subtotal)
	assert.Equal(t, "Coca-Cola 600ml", got[1].Name)
}

func TestSalesBetween_HalfOpen(t *testing.T) {
	sh := newShop(t)
	sh.sell(morning, pos.MethodCash, "", map[pos.ProductID]int{"1": 1})
	sh.sell(evening, pos.MethodCash, "", map[pos.ProductID]int{"1": 1})

	agg := report.NewAggregator(mx, decimal.Zero)

	assert.Len(t, agg.SalesBetween(sh.s, morning, evening), 1)
	assert.Len(t, agg.SalesBetween(sh.s, morning, evening.Add(time.Nanosecond)), 2)
}

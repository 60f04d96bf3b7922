/*
Package report projects the sale and payment journals into the figures the
shop looks at: the end-of-day cut ("corte del día"), category and product
breakdowns, client statements and a ledger self-check.

PURPOSE:
  Everything here is a pure read over a *pos.State. Nothing in this package
  can change state; callers hand it a snapshot from the Controller.

DAY BOUNDARIES:
  A "day" is midnight to midnight in the Aggregator's Location. Ranges are
  half-open: [from, to).

TAX:
  Prices are tax-inclusive. The breakdown backs the tax out of the total
  with one flat rate: subtotal = total / (1 + rate), tax = total - subtotal.

SEE ALSO:
  - ledger.go: VerifyLedger and ClientStatement
*/
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/tortipos/pos"
)

type Aggregator struct {
	Location *time.Location
	TaxRate  decimal.Decimal
}

func NewAggregator(loc *time.Location, taxRate decimal.Decimal) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{Location: loc, TaxRate: taxRate}
}

// DayBounds returns the [start, end) range of the calendar day containing t.
func (a *Aggregator) DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.In(a.Location)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, a.Location)
	return start, start.AddDate(0, 0, 1)
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// =============================================================================
// SALES IN RANGE
// =============================================================================

// SalesBetween returns sales in [from, to), newest first.
func (a *Aggregator) SalesBetween(s *pos.State, from, to time.Time) []pos.Sale {
	var out []pos.Sale
	for _, sale := range s.Sales {
		if within(sale.Timestamp, from, to) {
			out = append(out, sale)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// =============================================================================
// DAY SUMMARY
// =============================================================================

type TaxBreakdown struct {
	Rate     decimal.Decimal `json:"rate"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type DaySummary struct {
	Date             string          `json:"date"`
	Revenue          decimal.Decimal `json:"revenue"`
	Cost             decimal.Decimal `json:"cost"`
	Profit           decimal.Decimal `json:"profit"`
	SaleCount        int             `json:"saleCount"`
	CreditSaleCount  int             `json:"creditSaleCount"`
	CashTotal        decimal.Decimal `json:"cashTotal"`
	CreditTotal      decimal.Decimal `json:"creditTotal"`
	PaymentsReceived decimal.Decimal `json:"paymentsReceived"`
	Tax              TaxBreakdown    `json:"tax"`
	Sales            []pos.Sale      `json:"sales"`
}

// DaySummary builds the cut for the day containing day.
func (a *Aggregator) DaySummary(s *pos.State, day time.Time) DaySummary {
	from, to := a.DayBounds(day)
	sum := DaySummary{
		Date:  from.Format(time.DateOnly),
		Sales: a.SalesBetween(s, from, to),
	}

	for _, sale := range sum.Sales {
		sum.Revenue = sum.Revenue.Add(sale.Total)
		sum.Cost = sum.Cost.Add(sale.TotalCost)
		sum.SaleCount++
		switch sale.Method {
		case pos.MethodCredit:
			sum.CreditSaleCount++
			sum.CreditTotal = sum.CreditTotal.Add(sale.Total)
		case pos.MethodCash:
			sum.CashTotal = sum.CashTotal.Add(sale.Total)
		}
	}
	sum.Profit = sum.Revenue.Sub(sum.Cost)

	for _, p := range s.Payments {
		if within(p.Timestamp, from, to) {
			sum.PaymentsReceived = sum.PaymentsReceived.Add(p.Amount)
		}
	}

	sum.Tax = a.taxOf(sum.Revenue)
	if sum.Sales == nil {
		sum.Sales = []pos.Sale{}
	}
	return sum
}

func (a *Aggregator) taxOf(total decimal.Decimal) TaxBreakdown {
	subtotal := total.Div(decimal.NewFromInt(1).Add(a.TaxRate)).Round(2)
	return TaxBreakdown{
		Rate:     a.TaxRate,
		Subtotal: subtotal,
		Tax:      total.Sub(subtotal),
		Total:    total,
	}
}

// =============================================================================
// BREAKDOWNS
// =============================================================================

type CategoryTotal struct {
	Category pos.Category    `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// CategoryBreakdown totals line subtotals per category in [from, to). The
// category comes from the current catalog; lines whose product is gone count
// as Varios. Only categories with sales are returned, in catalog order.
func (a *Aggregator) CategoryBreakdown(s *pos.State, from, to time.Time) []CategoryTotal {
	totals := make(map[pos.Category]decimal.Decimal)
	for _, sale := range a.SalesBetween(s, from, to) {
		for _, item := range sale.Items {
			category := pos.CategoryVarios
			if p, ok := s.Product(item.ProductID); ok {
				category = p.Category
			}
			totals[category] = totals[category].Add(item.Subtotal())
		}
	}

	out := make([]CategoryTotal, 0, len(totals))
	for _, c := range pos.Categories {
		if total, ok := totals[c]; ok {
			out = append(out, CategoryTotal{Category: c, Total: total})
		}
	}
	return out
}

type ProductLine struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// ProductSummary groups sold lines in [from, to) by the name snapshotted on
// the sale, in order of first appearance (oldest sale first).
func (a *Aggregator) ProductSummary(s *pos.State, from, to time.Time) []ProductLine {
	sales := a.SalesBetween(s, from, to)
	index := make(map[string]int)
	out := []ProductLine{}
	for i := len(sales) - 1; i >= 0; i-- {
		for _, item := range sales[i].Items {
			j, ok := index[item.Name]
			if !ok {
				j = len(out)
				index[item.Name] = j
				out = append(out, ProductLine{Name: item.Name})
			}
			out[j].Quantity += item.Quantity
			out[j].Subtotal = out[j].Subtotal.Add(item.Subtotal())
		}
	}
	return out
}

package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/tortipos/pos"
)

// =============================================================================
// CLIENT STATEMENT
// =============================================================================

type EntryKind string

const (
	EntrySale    EntryKind = "sale"
	EntryPayment EntryKind = "payment"
)

// StatementEntry is one movement on a client account. Amount is signed the
// way it moves the balance: credit sales positive, payments negative.
type StatementEntry struct {
	Kind      EntryKind       `json:"kind"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
}

type Statement struct {
	Client         pos.Client       `json:"client"`
	OpeningBalance decimal.Decimal  `json:"openingBalance"`
	CreditTotal    decimal.Decimal  `json:"creditTotal"`
	PaymentTotal   decimal.Decimal  `json:"paymentTotal"`
	Entries        []StatementEntry `json:"entries"`
}

// ClientStatement lists a client's credit sales and payments, newest first,
// with the running balance after each movement.
func ClientStatement(s *pos.State, id pos.ClientID) (Statement, error) {
	client, ok := s.Client(id)
	if !ok {
		return Statement{}, &pos.UnknownClientError{ClientID: id}
	}

	var entries []StatementEntry
	for _, sale := range s.Sales {
		if sale.Method == pos.MethodCredit && sale.ClientID == id {
			entries = append(entries, StatementEntry{
				Kind: EntrySale, ID: string(sale.ID), Timestamp: sale.Timestamp, Amount: sale.Total,
			})
		}
	}
	for _, p := range s.Payments {
		if p.ClientID == id {
			entries = append(entries, StatementEntry{
				Kind: EntryPayment, ID: string(p.ID), Timestamp: p.Timestamp, Amount: p.Amount.Neg(),
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	st := Statement{Client: client, OpeningBalance: client.OpeningBalance}
	running := client.OpeningBalance
	for i := range entries {
		running = running.Add(entries[i].Amount)
		entries[i].Balance = running
		if entries[i].Kind == EntrySale {
			st.CreditTotal = st.CreditTotal.Add(entries[i].Amount)
		} else {
			st.PaymentTotal = st.PaymentTotal.Sub(entries[i].Amount)
		}
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if entries == nil {
		entries = []StatementEntry{}
	}
	st.Entries = entries
	return st, nil
}

// =============================================================================
// LEDGER VERIFICATION
// =============================================================================

type SaleViolation struct {
	SaleID pos.SaleID `json:"saleId"`
	Reason string     `json:"reason"`
}

type ClientViolation struct {
	ClientID pos.ClientID    `json:"clientId"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

type LedgerCheck struct {
	OK      bool              `json:"ok"`
	Sales   []SaleViolation   `json:"sales"`
	Clients []ClientViolation `json:"clients"`
}

// VerifyLedger recomputes every sale's totals from its lines and every
// client's balance from the journals, and reports whatever disagrees.
func VerifyLedger(s *pos.State) LedgerCheck {
	check := LedgerCheck{Sales: []SaleViolation{}, Clients: []ClientViolation{}}

	credit := make(map[pos.ClientID]decimal.Decimal)
	for _, sale := range s.Sales {
		total, cost := pos.Totals(sale.Items)
		if !total.Equal(sale.Total) {
			check.Sales = append(check.Sales, SaleViolation{
				SaleID: sale.ID, Reason: "total " + sale.Total.StringFixed(2) + " != lines " + total.StringFixed(2),
			})
		}
		if !cost.Equal(sale.TotalCost) {
			check.Sales = append(check.Sales, SaleViolation{
				SaleID: sale.ID, Reason: "totalCost " + sale.TotalCost.StringFixed(2) + " != lines " + cost.StringFixed(2),
			})
		}
		switch {
		case sale.Method == pos.MethodCredit && sale.ClientID == "":
			check.Sales = append(check.Sales, SaleViolation{SaleID: sale.ID, Reason: "credit sale without client"})
		case sale.Method == pos.MethodCash && sale.ClientID != "":
			check.Sales = append(check.Sales, SaleViolation{SaleID: sale.ID, Reason: "cash sale with client"})
		}
		if sale.Method == pos.MethodCredit {
			credit[sale.ClientID] = credit[sale.ClientID].Add(sale.Total)
		}
	}

	paid := make(map[pos.ClientID]decimal.Decimal)
	for _, p := range s.Payments {
		paid[p.ClientID] = paid[p.ClientID].Add(p.Amount)
	}

	for _, c := range s.Clients {
		expected := c.OpeningBalance.Add(credit[c.ID]).Sub(paid[c.ID])
		if !expected.Equal(c.Balance) {
			check.Clients = append(check.Clients, ClientViolation{ClientID: c.ID, Expected: expected, Actual: c.Balance})
		}
	}

	check.OK = len(check.Sales) == 0 && len(check.Clients) == 0
	return check
}

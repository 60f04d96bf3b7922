package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tortipos/pos"
	"github.com/warp/tortipos/report"
)

func TestClientStatement(t *testing.T) {
	// GIVEN: c1 opens at 150.00, buys 48.00 on credit, pays 300.00
	sh := newShop(t)
	sh.sell(morning, pos.MethodCredit, "c1", map[pos.ProductID]int{"1": 2})
	sh.sell(morning, pos.MethodCash, "", map[pos.ProductID]int{"1": 1})
	sh.pay(evening, "c1", "300")

	// WHEN
	st, err := report.ClientStatement(sh.s, "c1")
	require.NoError(t, err)

	// THEN: newest first, running balance ends at -102.00
	require.Len(t, st.Entries, 2)
	assert.Equal(t, report.EntryPayment, st.Entries[0].Kind)
	assertMoney(t, "-300.00", st.Entries[0].Amount)
	assertMoney(t, "-102.00", st.Entries[0].Balance)
	assert.Equal(t, report.EntrySale, st.Entries[1].Kind)
	assertMoney(t, "198.00", st.Entries[1].Balance)

	assertMoney(t, "150.00", st.OpeningBalance)
	assertMoney(t, "48.00", st.CreditTotal)
	assertMoney(t, "300.00", st.PaymentTotal)
	assertMoney(t, "-102.00", st.Client.Balance)
}

func TestClientStatement_UnknownClient(t *testing.T) {
	_, err := report.ClientStatement(pos.Bootstrap(), "ghost")
	assert.ErrorIs(t, err, pos.ErrUnknownClient)
}

func TestVerifyLedger_CleanHistory(t *testing.T) {
	sh := newShop(t)
	sh.sell(morning, pos.MethodCredit, "c3", map[pos.ProductID]int{"2": 2, "4": 1})
	sh.sell(evening, pos.MethodCash, "", map[pos.ProductID]int{"6": 3})
	sh.pay(evening, "c3", "20")

	check := report.VerifyLedger(sh.s)

	assert.True(t, check.OK)
	assert.Empty(t, check.Sales)
	assert.Empty(t, check.Clients)
}

func TestVerifyLedger_ReportsTamperedRecords(t *testing.T) {
	sh := newShop(t)
	sh.sell(morning, pos.MethodCredit, "c2", map[pos.ProductID]int{"1": 1})

	tampered := sh.s.Clone()
	tampered.Sales[0].Total = money("1.00")
	tampered.Clients[2].Balance = money("999")

	check := report.VerifyLedger(tampered)

	assert.False(t, check.OK)
	require.Len(t, check.Sales, 1)
	assert.Equal(t, pos.SaleID("s1"), check.Sales[0].SaleID)
	require.Len(t, check.Clients, 2, "c2 no longer matches the tampered total, c3 was edited")
	assert.Equal(t, pos.ClientID("c2"), check.Clients[0].ClientID)
	assertMoney(t, "1.00", check.Clients[0].Expected)
	assert.Equal(t, pos.ClientID("c3"), check.Clients[1].ClientID)
	assertMoney(t, "450.50", check.Clients[1].Expected)
}

/*
payments.go - Client ledger: registration and credit payments

PURPOSE:
  A client's balance changes in exactly two ways: a credit sale raises it
  (engine.go), a payment lowers it (here). Balance is never clamped; a
  payment larger than the debt leaves a negative balance, which is credit
  the shop owes the client.

LEDGER IDENTITY:
  balance == openingBalance + Σ credit sale totals − Σ payment amounts

  report.VerifyLedger checks this for every client.
*/
package pos

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentCommand struct {
	ID       PaymentID
	At       time.Time
	ClientID ClientID
	Amount   decimal.Decimal
}

// RecordPayment journals a payment and lowers the client's balance.
func RecordPayment(s *State, cmd PaymentCommand) (*State, CreditPayment, error) {
	if !cmd.Amount.IsPositive() {
		return nil, CreditPayment{}, ErrInvalidAmount
	}
	idx := s.clientIndex(cmd.ClientID)
	if idx < 0 {
		return nil, CreditPayment{}, &UnknownClientError{ClientID: cmd.ClientID}
	}

	payment := CreditPayment{
		ID:        cmd.ID,
		ClientID:  cmd.ClientID,
		Amount:    cmd.Amount,
		Timestamp: cmd.At,
	}

	next := s.shallow()
	next.Clients = s.copyClients()
	c := &next.Clients[idx]
	c.Balance = c.Balance.Sub(cmd.Amount)
	next.Payments = appendPayment(s.Payments, payment)
	return next, payment, nil
}

// ClientInput is what the registration form collects.
type ClientInput struct {
	Name    string
	Address string
	Phone   string
}

// AddClient registers a client with a zero balance.
func AddClient(s *State, id ClientID, in ClientInput) (*State, Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Client{}, ErrInvalidClient
	}
	if id == "" || s.clientIndex(id) >= 0 {
		return nil, Client{}, ErrDuplicateID
	}

	client := Client{
		ID:             id,
		Name:           name,
		Address:        strings.TrimSpace(in.Address),
		Phone:          strings.TrimSpace(in.Phone),
		Balance:        decimal.Zero,
		OpeningBalance: decimal.Zero,
	}

	next := s.shallow()
	next.Clients = append(s.copyClients(), client)
	return next, client, nil
}

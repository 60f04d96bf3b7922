package pos

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MoneyFromFloat converts a float coming from a form or JSON body.
// decimal.NewFromFloat panics on NaN/Inf, so those are rejected first.
func MoneyFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, f)
	}
	return decimal.NewFromFloat(f), nil
}

// MustMoney parses a literal like "24.00". Intended for seeds and tests.
func MustMoney(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// PaymentAmount validates a payment amount: finite and strictly positive.
func PaymentAmount(f float64) (decimal.Decimal, error) {
	d, err := MoneyFromFloat(f)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, f)
	}
	return d, nil
}

// Package currency converts between USD and the local currency and keeps the
// current exchange rate.
//
// A rate is expressed in local-currency units per USD. Conversions never round;
// rounding happens only when an amount is formatted for display.
package currency

import (
	"errors"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// USD is the currency every ledger amount is recorded in.
const USD = "USD"

// ErrInvalidRate is returned for a rate that is zero or negative.
var ErrInvalidRate = errors.New("exchange rate must be greater than zero")

// ValidRate returns ErrInvalidRate unless rate is strictly positive.
func ValidRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidRate, rate)
	}
	return nil
}

// ToLocal converts a USD amount to local currency: usd * rate.
func ToLocal(usd, rate decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidRate(rate); err != nil {
		return decimal.Zero, err
	}
	return usd.Mul(rate), nil
}

// ToUSD converts a local-currency amount to USD: local / rate.
func ToUSD(local, rate decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidRate(rate); err != nil {
		return decimal.Zero, err
	}
	return local.Div(rate), nil
}

// Format renders amount in the given ISO currency code, rounded to the
// currency's minor unit.
func Format(amount decimal.Decimal, code string) string {
	// money.New never returns a nil currency, even for unknown codes.
	cur := *money.New(0, code).Currency()
	minor := amount.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// Package money converts between decimal amounts and integer minor units.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid_amount")

// ToCents converts a two-decimal amount to minor units. Amounts with
// sub-cent precision or negative values are rejected.
func ToCents(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, ErrInvalidAmount
	}
	shifted := amount.Shift(2)
	if !shifted.IsInteger() {
		return 0, ErrInvalidAmount
	}
	return shifted.IntPart(), nil
}

func ParseCents(raw string) (int64, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return ToCents(amount)
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders minor units as "19.99".
func Format(cents int64) string {
	return FromCents(cents).StringFixed(2)
}

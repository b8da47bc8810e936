package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DecimalFromCents converts minor units into a decimal major-unit amount.
func DecimalFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatCents renders minor units with two fixed decimals, e.g. 4999 -> "49.99".
func FormatCents(cents int64) string {
	return DecimalFromCents(cents).StringFixed(2)
}

// ParseAmount converts a major-unit amount string into cents. More than two decimal places
// and negative values are rejected.
func ParseAmount(raw string) (int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return 0, fmt.Errorf("amount %q has more than two decimal places", raw)
	}
	return amount.Mul(hundred).IntPart(), nil
}

package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the provider's native pricing currency.
// Amounts leave this service unconverted; conversion belongs to the caller.
const DefaultCurrency = "USD"

func init() {
	// Serialize amounts as JSON numbers (4.5) rather than strings ("4.5").
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount converts a provider price string to a decimal.
// Tolerates surrounding whitespace, a leading "$" and thousands separators.
// Examples: "4.50" → 4.5, "$1,234.5" → 1234.5, "" → error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}

// ParseFreight converts a freight price to a non-negative decimal.
// Negative or unparseable input yields zero and a non-empty warning so the quote
// is kept rather than discarded.
func ParseFreight(s string) (decimal.Decimal, string) {
	amount, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, "unparseable freight price " + quoteForWarning(s)
	}
	if amount.IsNegative() {
		return decimal.Zero, "negative freight price " + amount.String()
	}
	return amount, ""
}

func quoteForWarning(s string) string {
	if s == "" {
		return `""`
	}
	return `"` + s + `"`
}

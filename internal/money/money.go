// Package money provides the monetary value type shared by the extraction
// schema and the import pipeline. Amounts use decimal arithmetic; currency
// codes are 3-letter ISO-4217.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an immutable amount in a single currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New builds a Money value, normalizing the currency code to upper case.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// NewFromFloat builds a Money value from a float, as decoded from model JSON.
func NewFromFloat(amount float64, currency string) Money {
	return New(decimal.NewFromFloat(amount), currency)
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return New(decimal.Zero, currency)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

// Sum adds amounts that share one currency. It fails when currencies differ;
// mixed-currency lists go through the currency converter instead.
func Sum(amounts []Money) (Money, error) {
	if len(amounts) == 0 {
		return Money{}, fmt.Errorf("money: empty amount list")
	}
	total := amounts[0]
	for _, a := range amounts[1:] {
		if a.Currency != total.Currency {
			return Money{}, fmt.Errorf("money: cannot sum %s with %s", total.Currency, a.Currency)
		}
		total = Money{Amount: total.Amount.Add(a.Amount), Currency: total.Currency}
	}
	return total, nil
}

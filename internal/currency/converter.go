// Package currency defines the conversion contract the import pipeline
// consumes and a rate-table-backed implementation.
package currency

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-importer/internal/money"
)

// ConversionError marks a failed currency conversion. The importer treats it
// as fatal for statement balances but swallows it for credit-limit updates.
type ConversionError struct {
	From string
	To   string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("currency conversion %s->%s: %v", e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Converter turns a list of same- or mixed-currency amounts into one decimal
// in the target currency.
type Converter interface {
	ConvertBalance(ctx context.Context, amounts []money.Money, target string) (decimal.Decimal, error)
}

// RateSource resolves a conversion rate for one currency pair.
type RateSource interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// RateConverter converts through a RateSource, rounding the summed result to
// 2 decimal places.
type RateConverter struct {
	rates RateSource
}

func NewRateConverter(rates RateSource) *RateConverter {
	return &RateConverter{rates: rates}
}

// ConvertBalance sums amounts converted into target. An empty list converts
// to zero; an unresolvable source currency yields a ConversionError.
func (c *RateConverter) ConvertBalance(ctx context.Context, amounts []money.Money, target string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range amounts {
		if a.Currency == target {
			total = total.Add(a.Amount)
			continue
		}
		rate, err := c.rates.GetRate(ctx, a.Currency, target)
		if err != nil {
			return decimal.Zero, &ConversionError{From: a.Currency, To: target, Err: err}
		}
		total = total.Add(a.Amount.Mul(rate))
	}
	return total.Round(2), nil
}

var _ Converter = (*RateConverter)(nil)

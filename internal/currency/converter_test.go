package currency

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-importer/internal/money"
)

type mapRateSource struct {
	rates map[string]decimal.Decimal
}

func (m *mapRateSource) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rate, ok := m.rates[from+to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for %s->%s", from, to)
	}
	return rate, nil
}

func TestRateConverter_ConvertBalance(t *testing.T) {
	source := &mapRateSource{rates: map[string]decimal.Decimal{
		"USDBRL": decimal.NewFromFloat(5.0),
		"EURBRL": decimal.NewFromFloat(6.1),
	}}
	c := NewRateConverter(source)

	tests := []struct {
		name    string
		amounts []money.Money
		target  string
		want    string
	}{
		{
			name:    "empty list is zero",
			amounts: nil,
			target:  "BRL",
			want:    "0",
		},
		{
			name:    "same currency passthrough",
			amounts: []money.Money{money.NewFromFloat(150.50, "BRL")},
			target:  "BRL",
			want:    "150.5",
		},
		{
			name: "mixed currencies converted and summed",
			amounts: []money.Money{
				money.NewFromFloat(100, "BRL"),
				money.NewFromFloat(10, "USD"),
			},
			target: "BRL",
			want:   "150",
		},
		{
			name:    "result rounded to cents",
			amounts: []money.Money{money.NewFromFloat(10.333, "EUR")},
			target:  "BRL",
			want:    "63.03",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ConvertBalance(context.Background(), tt.amounts, tt.target)
			require.NoError(t, err)
			want, err := decimal.NewFromString(tt.want)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "want %s, got %s", want, got)
		})
	}
}

func TestRateConverter_MissingRate(t *testing.T) {
	c := NewRateConverter(&mapRateSource{rates: map[string]decimal.Decimal{}})

	_, err := c.ConvertBalance(context.Background(), []money.Money{money.NewFromFloat(10, "XXX")}, "BRL")

	var convErr *ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "XXX", convErr.From)
	assert.Equal(t, "BRL", convErr.To)
	assert.NotNil(t, convErr.Unwrap())
}

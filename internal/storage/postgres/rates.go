package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrRateNotFound is returned when no conversion rate exists for a currency
// pair.
var ErrRateNotFound = errors.New("currency rate not found")

// RateRepository reads the currency_rates table maintained by the external
// rate-fetching subsystem.
type RateRepository struct {
	db Querier
}

func NewRateRepository(db Querier) *RateRepository {
	return &RateRepository{db: db}
}

// GetRate returns the most recent rate converting one unit of from into to.
func (r *RateRepository) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	query := `
		SELECT rate
		FROM currency_rates
		WHERE from_currency = $1 AND to_currency = $2
		ORDER BY as_of DESC
		LIMIT 1`

	var rate decimal.Decimal
	err := r.db.QueryRow(ctx, query, from, to).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s->%s", ErrRateNotFound, from, to)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get currency rate: %w", err)
	}
	return rate, nil
}

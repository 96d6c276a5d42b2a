package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-importer/internal/domain"
)

// CardRepository reads and mutates credit cards.
type CardRepository struct {
	db Querier
}

func NewCardRepository(db Querier) *CardRepository {
	return &CardRepository{db: db}
}

// Get retrieves a card by id. A missing card maps to domain.ErrCardNotFound.
func (r *CardRepository) Get(ctx context.Context, id uuid.UUID) (*domain.CreditCard, error) {
	query := `
		SELECT id, user_id, name, last_four, default_currency,
		       credit_limit, limit_source, limit_last_updated_at
		FROM credit_cards
		WHERE id = $1`

	card := &domain.CreditCard{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&card.ID,
		&card.UserID,
		&card.Name,
		&card.LastFour,
		&card.DefaultCurrency,
		&card.CreditLimit,
		&card.LimitSource,
		&card.LimitLastUpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit card: %w", err)
	}
	return card, nil
}

// UpdateCreditLimit sets the card's limit triple in one statement.
func (r *CardRepository) UpdateCreditLimit(ctx context.Context, id uuid.UUID, limit decimal.Decimal, source domain.LimitSource, updatedAt time.Time) error {
	query := `
		UPDATE credit_cards
		SET credit_limit = $2,
		    limit_source = $3,
		    limit_last_updated_at = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, limit, source, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update credit limit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

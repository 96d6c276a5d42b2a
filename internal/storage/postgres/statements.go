package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-importer/internal/domain"
)

// StatementRepository persists card statements and their transactions.
type StatementRepository struct {
	db Querier
}

func NewStatementRepository(db Querier) *StatementRepository {
	return &StatementRepository{db: db}
}

// InsertStatement writes a statement row and fills in its id and created_at,
// so transactions can reference the parent before the surrounding
// transaction commits.
func (r *StatementRepository) InsertStatement(ctx context.Context, st *domain.CardStatement) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}

	query := `
		INSERT INTO card_statements (
			id, card_id, period_start, period_end, close_date, due_date,
			previous_balance, current_balance, minimum_payment,
			is_fully_paid, currency, status, source_file_path
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		st.ID,
		st.CardID,
		st.PeriodStart,
		st.PeriodEnd,
		st.CloseDate,
		st.DueDate,
		st.PreviousBalance,
		st.CurrentBalance,
		st.MinimumPayment,
		st.IsFullyPaid,
		st.Currency,
		st.Status,
		st.SourceFilePath,
	).Scan(&st.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert statement: %w", err)
	}
	return nil
}

// InsertTransactions writes statement lines in order, assigning ids.
func (r *StatementRepository) InsertTransactions(ctx context.Context, txns []domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, statement_id, txn_date, payee, description, amount, currency,
			coupon, installment_cur, installment_tot
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for i := range txns {
		if txns[i].ID == uuid.Nil {
			txns[i].ID = uuid.New()
		}
		_, err := r.db.Exec(ctx, query,
			txns[i].ID,
			txns[i].StatementID,
			txns[i].TxnDate,
			txns[i].Payee,
			txns[i].Description,
			txns[i].Amount,
			txns[i].Currency,
			txns[i].Coupon,
			txns[i].InstallmentCur,
			txns[i].InstallmentTot,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %d: %w", i, err)
		}
	}
	return nil
}

// Get retrieves a statement by id.
func (r *StatementRepository) Get(ctx context.Context, id uuid.UUID) (*domain.CardStatement, error) {
	query := `
		SELECT id, card_id, period_start, period_end, close_date, due_date,
		       previous_balance, current_balance, minimum_payment,
		       is_fully_paid, currency, status, source_file_path, created_at
		FROM card_statements
		WHERE id = $1`

	st := &domain.CardStatement{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&st.ID,
		&st.CardID,
		&st.PeriodStart,
		&st.PeriodEnd,
		&st.CloseDate,
		&st.DueDate,
		&st.PreviousBalance,
		&st.CurrentBalance,
		&st.MinimumPayment,
		&st.IsFullyPaid,
		&st.Currency,
		&st.Status,
		&st.SourceFilePath,
		&st.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}
	return st, nil
}

// ListTransactions returns a statement's lines in date order.
func (r *StatementRepository) ListTransactions(ctx context.Context, statementID uuid.UUID) ([]domain.Transaction, error) {
	query := `
		SELECT id, statement_id, txn_date, payee, description, amount, currency,
		       coupon, installment_cur, installment_tot
		FROM transactions
		WHERE statement_id = $1
		ORDER BY txn_date, id`

	rows, err := r.db.Query(ctx, query, statementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		err := rows.Scan(
			&t.ID,
			&t.StatementID,
			&t.TxnDate,
			&t.Payee,
			&t.Description,
			&t.Amount,
			&t.Currency,
			&t.Coupon,
			&t.InstallmentCur,
			&t.InstallmentTot,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

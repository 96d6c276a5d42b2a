package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-importer/internal/currency"
	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/extraction"
	"github.com/dvloznov/statement-importer/internal/money"
)

// stubConverter converts with fixed rates into any target currency and fails
// for currencies listed in failFor.
type stubConverter struct {
	rates   map[string]float64
	failFor map[string]bool
}

func (c *stubConverter) ConvertBalance(ctx context.Context, amounts []money.Money, target string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range amounts {
		if c.failFor[a.Currency] {
			return decimal.Zero, &currency.ConversionError{From: a.Currency, To: target, Err: errors.New("no rate")}
		}
		if a.Currency == target {
			total = total.Add(a.Amount)
			continue
		}
		total = total.Add(a.Amount.Mul(decimal.NewFromFloat(c.rates[a.Currency])))
	}
	return total.Round(2), nil
}

func TestReconcileStatus(t *testing.T) {
	dec := func(s string) *decimal.Decimal {
		d, err := decimal.NewFromString(s)
		require.NoError(t, err)
		return &d
	}

	tests := []struct {
		name    string
		balance *decimal.Decimal
		total   string
		want    domain.StatementStatus
	}{
		{"nil balance never mismatches", nil, "123.45", domain.StatementComplete},
		{"exact match", dec("150.50"), "150.50", domain.StatementComplete},
		{"within tolerance", dec("150.50"), "150.51", domain.StatementComplete},
		{"just above tolerance", dec("150.50"), "150.52", domain.StatementPendingReview},
		{"large gap", dec("1000.00"), "950.00", domain.StatementPendingReview},
		{"negative balance matches", dec("-42.00"), "-42.00", domain.StatementComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := decimal.NewFromString(tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reconcileStatus(tt.balance, total))
		})
	}
}

func TestShouldUpdateLimit(t *testing.T) {
	stored := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	limit := func(amount float64) *money.Money {
		m := money.NewFromFloat(amount, "BRL")
		return &m
	}

	tests := []struct {
		name      string
		card      *domain.CreditCard
		limit     *money.Money
		periodEnd civil.Date
		want      bool
	}{
		{
			name:      "no limit extracted",
			card:      &domain.CreditCard{},
			limit:     nil,
			periodEnd: civil.Date{Year: 2025, Month: 2, Day: 28},
			want:      false,
		},
		{
			name:      "zero limit rejected",
			card:      &domain.CreditCard{},
			limit:     limit(0),
			periodEnd: civil.Date{Year: 2025, Month: 2, Day: 28},
			want:      false,
		},
		{
			name:      "negative limit rejected",
			card:      &domain.CreditCard{},
			limit:     limit(-100),
			periodEnd: civil.Date{Year: 2025, Month: 2, Day: 28},
			want:      false,
		},
		{
			name:      "invalid period end rejected",
			card:      &domain.CreditCard{},
			limit:     limit(5000),
			periodEnd: civil.Date{},
			want:      false,
		},
		{
			name:      "no stored date always wins",
			card:      &domain.CreditCard{},
			limit:     limit(5000),
			periodEnd: civil.Date{Year: 2025, Month: 1, Day: 31},
			want:      true,
		},
		{
			name:      "strictly newer wins",
			card:      &domain.CreditCard{LimitLastUpdatedAt: &stored},
			limit:     limit(5000),
			periodEnd: civil.Date{Year: 2025, Month: 2, Day: 28},
			want:      true,
		},
		{
			name:      "same day does not win",
			card:      &domain.CreditCard{LimitLastUpdatedAt: &stored},
			limit:     limit(5000),
			periodEnd: civil.Date{Year: 2025, Month: 1, Day: 31},
			want:      false,
		},
		{
			name:      "older loses",
			card:      &domain.CreditCard{LimitLastUpdatedAt: &stored},
			limit:     limit(5000),
			periodEnd: civil.Date{Year: 2024, Month: 12, Day: 31},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldUpdateLimit(tt.card, tt.limit, tt.periodEnd))
		})
	}
}

func TestExtractedToTransaction(t *testing.T) {
	statementID := uuid.New()
	in := extraction.ExtractedTransaction{
		Date:        civil.Date{Year: 2025, Month: 1, Day: 5},
		Merchant:    "COFFEE SHOP",
		Amount:      money.NewFromFloat(150.50, "usd"),
		Coupon:      "PROMO10",
		Installment: &extraction.Installment{Current: 3, Total: 12},
	}

	txn := extractedToTransaction(in, statementID)

	assert.Equal(t, statementID, txn.StatementID)
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), txn.TxnDate)
	assert.Equal(t, "COFFEE SHOP", txn.Payee)
	assert.Equal(t, "COFFEE SHOP", txn.Description)
	assert.Equal(t, "USD", txn.Currency, "original extracted currency is kept")
	require.NotNil(t, txn.Coupon)
	assert.Equal(t, "PROMO10", *txn.Coupon)
	require.NotNil(t, txn.InstallmentCur)
	assert.Equal(t, 3, *txn.InstallmentCur)
	require.NotNil(t, txn.InstallmentTot)
	assert.Equal(t, 12, *txn.InstallmentTot)
}

func TestDatePtr_ZeroDateIsNil(t *testing.T) {
	assert.Nil(t, datePtr(civil.Date{}))
	require.NotNil(t, datePtr(civil.Date{Year: 2025, Month: 1, Day: 31}))
}

func testStatement() *extraction.ExtractedStatement {
	limit := money.NewFromFloat(5000, "BRL")
	return &extraction.ExtractedStatement{
		StatementID: "2025-01",
		Period: extraction.StatementPeriod{
			Start:   civil.Date{Year: 2025, Month: 1, Day: 1},
			End:     civil.Date{Year: 2025, Month: 1, Day: 31},
			DueDate: civil.Date{Year: 2025, Month: 2, Day: 10},
		},
		CurrentBalance: []money.Money{money.NewFromFloat(150.50, "BRL")},
		CreditLimit:    &limit,
		Transactions: []extraction.ExtractedTransaction{
			{Date: civil.Date{Year: 2025, Month: 1, Day: 5}, Merchant: "COFFEE SHOP", Amount: money.NewFromFloat(100.50, "BRL")},
			{Date: civil.Date{Year: 2025, Month: 1, Day: 9}, Merchant: "BOOKSTORE", Amount: money.NewFromFloat(50.00, "BRL")},
		},
	}
}

func cardRows(cardID, userID uuid.UUID) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "user_id", "name", "last_four", "default_currency",
		"credit_limit", "limit_source", "limit_last_updated_at",
	}).AddRow(cardID, userID, "Visa", "1234", "BRL", nil, nil, nil)
}

func TestImportStatement_CommitsAtomically(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cardID := uuid.New()
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, user_id, name, last_four, default_currency`).
		WithArgs(cardID).
		WillReturnRows(cardRows(cardID, userID))
	mock.ExpectQuery(`INSERT INTO card_statements`).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`UPDATE credit_cards`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	im := New(mock, &stubConverter{}, zerolog.Nop())
	st, txns, err := im.ImportStatement(context.Background(), testStatement(), cardID, "BRL", "gs://b/f.pdf")

	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, domain.StatementComplete, st.Status)
	assert.Equal(t, "BRL", st.Currency)
	assert.Equal(t, "gs://b/f.pdf", st.SourceFilePath)
	require.NotNil(t, st.CurrentBalance)
	assert.True(t, st.CurrentBalance.Equal(decimal.NewFromFloat(150.50)))
	require.NotNil(t, st.PeriodEnd)
	assert.Equal(t, *st.PeriodEnd, *st.CloseDate, "close date falls back to period end")
	assert.Len(t, txns, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportStatement_MissingCardAborts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cardID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, user_id, name, last_four, default_currency`).
		WithArgs(cardID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	im := New(mock, &stubConverter{}, zerolog.Nop())
	_, _, err = im.ImportStatement(context.Background(), testStatement(), cardID, "BRL", "f.pdf")

	assert.ErrorIs(t, err, domain.ErrCardNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportStatement_BalanceConversionFailureAborts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	data := testStatement()
	data.CurrentBalance = []money.Money{money.NewFromFloat(150.50, "XXX")}

	im := New(mock, &stubConverter{failFor: map[string]bool{"XXX": true}}, zerolog.Nop())
	_, _, err = im.ImportStatement(context.Background(), data, uuid.New(), "BRL", "f.pdf")

	var convErr *currency.ConversionError
	assert.ErrorAs(t, err, &convErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportStatement_LimitConversionFailureStillCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cardID := uuid.New()
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, user_id, name, last_four, default_currency`).
		WithArgs(cardID).
		WillReturnRows(cardRows(cardID, userID))
	mock.ExpectQuery(`INSERT INTO card_statements`).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	// No UPDATE credit_cards: the limit conversion fails and is skipped.
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	data := testStatement()
	limit := money.NewFromFloat(1200, "USD")
	data.CreditLimit = &limit

	im := New(mock, &stubConverter{failFor: map[string]bool{"USD": true}}, zerolog.Nop())
	st, _, err := im.ImportStatement(context.Background(), data, cardID, "BRL", "f.pdf")

	require.NoError(t, err)
	assert.Equal(t, domain.StatementComplete, st.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

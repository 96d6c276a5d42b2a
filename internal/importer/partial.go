package importer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/money"
	"github.com/dvloznov/statement-importer/internal/storage/postgres"
)

// ImportPartialStatement persists whatever usable fields a failed validation
// left behind. Field extraction is tolerant: anything missing or malformed
// is treated as absent, and malformed transactions are skipped rather than
// failing the batch. The statement is always marked PENDING_REVIEW, and the
// credit-limit policy does not run.
func (im *Importer) ImportPartialStatement(ctx context.Context, partialData map[string]any, cardID uuid.UUID, targetCurrency, sourceFilePath string) (*domain.CardStatement, []domain.Transaction, error) {
	var (
		st   *domain.CardStatement
		txns []domain.Transaction
	)

	err := postgres.WithTx(ctx, im.db, func(tx pgx.Tx) error {
		cards := postgres.NewCardRepository(tx)
		statements := postgres.NewStatementRepository(tx)

		if _, err := cards.Get(ctx, cardID); err != nil {
			return err
		}

		period := asMap(partialData["period"])
		st = &domain.CardStatement{
			CardID:         cardID,
			PeriodStart:    civilToTime(parseDateValue(period["start"])),
			PeriodEnd:      civilToTime(parseDateValue(period["end"])),
			CloseDate:      civilToTime(parseDateValue(period["end"])),
			DueDate:        civilToTime(parseDateValue(period["due_date"])),
			Currency:       targetCurrency,
			Status:         domain.StatementPendingReview,
			SourceFilePath: sourceFilePath,
		}

		var err error
		st.PreviousBalance, err = im.convertPartialBalance(ctx, partialData["previous_balance"], targetCurrency)
		if err != nil {
			return err
		}
		st.CurrentBalance, err = im.convertPartialBalance(ctx, partialData["current_balance"], targetCurrency)
		if err != nil {
			return err
		}
		st.MinimumPayment, err = im.convertPartialBalance(ctx, partialData["minimum_payment"], targetCurrency)
		if err != nil {
			return err
		}

		if err := statements.InsertStatement(ctx, st); err != nil {
			return err
		}

		txns = im.parsePartialTransactions(partialData["transactions"], st.ID)
		return statements.InsertTransactions(ctx, txns)
	})
	if err != nil {
		return nil, nil, err
	}
	return st, txns, nil
}

// convertPartialBalance converts a raw balance list. An absent or empty list
// stays null; conversion failures on recovered values are still fatal, like
// the full path.
func (im *Importer) convertPartialBalance(ctx context.Context, v any, targetCurrency string) (*decimal.Decimal, error) {
	amounts := parseMoneyList(v)
	if len(amounts) == 0 {
		return nil, nil
	}
	converted, err := im.converter.ConvertBalance(ctx, amounts, targetCurrency)
	if err != nil {
		return nil, err
	}
	return &converted, nil
}

// parsePartialTransactions keeps every transaction with a valid date,
// merchant and amount, logging and skipping the rest.
func (im *Importer) parsePartialTransactions(v any, statementID uuid.UUID) []domain.Transaction {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	txns := make([]domain.Transaction, 0, len(items))
	for i, item := range items {
		obj := asMap(item)
		if obj == nil {
			im.log.Warn().Int("index", i).Msg("skipping malformed transaction: not an object")
			continue
		}

		date := parseDateValue(obj["date"])
		merchant := asString(obj["merchant"])
		amount, okAmount := parseMoneyValue(obj["amount"])
		if date == nil || merchant == "" || !okAmount {
			im.log.Warn().Int("index", i).Msg("skipping malformed transaction: missing date, merchant or amount")
			continue
		}

		txn := domain.Transaction{
			StatementID: statementID,
			TxnDate:     date.In(time.UTC),
			Payee:       merchant,
			Description: merchant,
			Amount:      amount.Amount,
			Currency:    amount.Currency,
		}
		if coupon := asString(obj["coupon"]); coupon != "" {
			txn.Coupon = &coupon
		}
		if inst := asMap(obj["installment"]); inst != nil {
			if cur, okCur := asInt(inst["current"]); okCur {
				if tot, okTot := asInt(inst["total"]); okTot {
					txn.InstallmentCur = &cur
					txn.InstallmentTot = &tot
				}
			}
		}
		txns = append(txns, txn)
	}
	return txns
}

// Tolerant value parsers. These never fail: any value that does not have the
// expected shape reads as absent.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// parseDateValue accepts only YYYY-MM-DD strings; anything else is absent.
func parseDateValue(v any) *civil.Date {
	s := asString(v)
	if s == "" {
		return nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseMoneyValue(v any) (money.Money, bool) {
	obj := asMap(v)
	if obj == nil {
		return money.Money{}, false
	}
	currency := asString(obj["currency"])
	if len(currency) != 3 {
		return money.Money{}, false
	}
	amount, ok := parseDecimal(obj["amount"])
	if !ok {
		return money.Money{}, false
	}
	return money.New(amount, currency), true
}

func parseDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func parseMoneyList(v any) []money.Money {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	amounts := make([]money.Money, 0, len(items))
	for _, item := range items {
		if m, ok := parseMoneyValue(item); ok {
			amounts = append(amounts, m)
		}
	}
	return amounts
}

func civilToTime(d *civil.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.In(time.UTC)
	return &t
}

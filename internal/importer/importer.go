// Package importer persists an extraction result as a statement plus its
// transactions in one atomic unit, reconciling balances and applying the
// credit-limit update policy along the way.
package importer

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-importer/internal/currency"
	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/extraction"
	"github.com/dvloznov/statement-importer/internal/money"
	"github.com/dvloznov/statement-importer/internal/storage/postgres"
)

// reconcileTolerance is the maximum allowed gap, in target currency units,
// between the reported balance and the sum of extracted transactions.
var reconcileTolerance = decimal.NewFromFloat(0.01)

// Importer is the atomic import service. Every import runs inside one
// transaction scope: balance conversion reads, the card read/mutation, the
// statement insert and the transaction inserts all commit or roll back
// together. When the given Querier is already a transaction, WithTx opens a
// savepoint, so a failure unwinds only this import.
type Importer struct {
	db        postgres.Querier
	converter currency.Converter
	log       zerolog.Logger
}

func New(db postgres.Querier, converter currency.Converter, log zerolog.Logger) *Importer {
	return &Importer{db: db, converter: converter, log: log}
}

// ImportStatement persists a fully-validated extraction for the card. The
// card must exist; a missing card aborts the whole import.
func (im *Importer) ImportStatement(ctx context.Context, data *extraction.ExtractedStatement, cardID uuid.UUID, targetCurrency, sourceFilePath string) (*domain.CardStatement, []domain.Transaction, error) {
	var (
		st   *domain.CardStatement
		txns []domain.Transaction
	)

	err := postgres.WithTx(ctx, im.db, func(tx pgx.Tx) error {
		cards := postgres.NewCardRepository(tx)
		statements := postgres.NewStatementRepository(tx)

		prev, err := im.converter.ConvertBalance(ctx, data.PreviousBalance, targetCurrency)
		if err != nil {
			return err
		}
		cur, err := im.converter.ConvertBalance(ctx, data.CurrentBalance, targetCurrency)
		if err != nil {
			return err
		}
		minPay, err := im.converter.ConvertBalance(ctx, data.MinimumPayment, targetCurrency)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, t := range data.Transactions {
			amount, err := im.converter.ConvertBalance(ctx, []money.Money{t.Amount}, targetCurrency)
			if err != nil {
				return err
			}
			total = total.Add(amount)
		}

		card, err := cards.Get(ctx, cardID)
		if err != nil {
			return err
		}

		st = &domain.CardStatement{
			CardID:          cardID,
			PeriodStart:     datePtr(data.Period.Start),
			PeriodEnd:       datePtr(data.Period.End),
			CloseDate:       datePtr(data.Period.End),
			DueDate:         datePtr(data.Period.DueDate),
			PreviousBalance: &prev,
			CurrentBalance:  &cur,
			MinimumPayment:  &minPay,
			Currency:        targetCurrency,
			Status:          reconcileStatus(&cur, total),
			SourceFilePath:  sourceFilePath,
		}
		if err := statements.InsertStatement(ctx, st); err != nil {
			return err
		}

		if err := im.applyCreditLimit(ctx, cards, card, data.CreditLimit, data.Period.End); err != nil {
			return err
		}

		txns = make([]domain.Transaction, 0, len(data.Transactions))
		for _, t := range data.Transactions {
			txns = append(txns, extractedToTransaction(t, st.ID))
		}
		return statements.InsertTransactions(ctx, txns)
	})
	if err != nil {
		return nil, nil, err
	}
	return st, txns, nil
}

// reconcileStatus compares the reported balance against the transaction sum.
// A gap above the tolerance marks the statement for human review; a nil
// balance never triggers a mismatch.
func reconcileStatus(currentBalance *decimal.Decimal, transactionsTotal decimal.Decimal) domain.StatementStatus {
	if currentBalance == nil {
		return domain.StatementComplete
	}
	if currentBalance.Sub(transactionsTotal).Abs().GreaterThan(reconcileTolerance) {
		return domain.StatementPendingReview
	}
	return domain.StatementComplete
}

// shouldUpdateLimit is the newest-statement-wins policy: the extracted limit
// must be present and positive, and the statement's period end must be
// strictly after the stored date (date-only comparison, so a statement from
// the same calendar day never overrides).
func shouldUpdateLimit(card *domain.CreditCard, limit *money.Money, periodEnd civil.Date) bool {
	if limit == nil || !limit.Amount.IsPositive() || !periodEnd.IsValid() {
		return false
	}
	if card.LimitLastUpdatedAt == nil {
		return true
	}
	return periodEnd.After(civil.DateOf(*card.LimitLastUpdatedAt))
}

// applyCreditLimit updates the card's limit triple when the policy allows.
// A conversion failure skips the update and lets the rest of the import
// proceed; database errors still abort the transaction.
func (im *Importer) applyCreditLimit(ctx context.Context, cards *postgres.CardRepository, card *domain.CreditCard, limit *money.Money, periodEnd civil.Date) error {
	if !shouldUpdateLimit(card, limit, periodEnd) {
		return nil
	}

	amount := limit.Amount
	if limit.Currency != card.DefaultCurrency {
		converted, err := im.converter.ConvertBalance(ctx, []money.Money{*limit}, card.DefaultCurrency)
		if err != nil {
			im.log.Warn().
				Err(err).
				Str("card_id", card.ID.String()).
				Str("limit_currency", limit.Currency).
				Msg("skipping credit limit update: conversion failed")
			return nil
		}
		amount = converted
	}

	return cards.UpdateCreditLimit(ctx, card.ID, amount, domain.LimitSourceStatement, periodEnd.In(time.UTC))
}

func extractedToTransaction(t extraction.ExtractedTransaction, statementID uuid.UUID) domain.Transaction {
	txn := domain.Transaction{
		StatementID: statementID,
		TxnDate:     t.Date.In(time.UTC),
		Payee:       t.Merchant,
		Description: t.Merchant,
		Amount:      t.Amount.Amount,
		Currency:    t.Amount.Currency,
	}
	if t.Coupon != "" {
		coupon := t.Coupon
		txn.Coupon = &coupon
	}
	if t.Installment != nil {
		cur, tot := t.Installment.Current, t.Installment.Total
		txn.InstallmentCur = &cur
		txn.InstallmentTot = &tot
	}
	return txn
}

// datePtr maps an absent (zero) date to NULL.
func datePtr(d civil.Date) *time.Time {
	if !d.IsValid() {
		return nil
	}
	t := d.In(time.UTC)
	return &t
}

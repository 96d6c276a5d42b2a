// Package rules applies a user's auto-tagging rules to an imported
// statement. The pipeline consumes it fire-and-forget: failures here are
// logged and never change the job outcome.
package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-importer/internal/storage/postgres"
)

// Result summarizes one rule application pass.
type Result struct {
	TransactionsProcessed int
	TagsApplied           int
}

// Engine applies a user's rules to a statement's transactions.
type Engine interface {
	ApplyRules(ctx context.Context, userID, statementID uuid.UUID) (Result, error)
}

// SQLEngine matches tag rules (case-insensitive payee substrings) against a
// statement's transactions and records the resulting tags.
type SQLEngine struct {
	db postgres.Querier
}

func NewSQLEngine(db postgres.Querier) *SQLEngine {
	return &SQLEngine{db: db}
}

type tagRule struct {
	TagID   uuid.UUID
	Pattern string
}

func (e *SQLEngine) ApplyRules(ctx context.Context, userID, statementID uuid.UUID) (Result, error) {
	rules, err := e.loadRules(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	rows, err := e.db.Query(ctx,
		`SELECT id, payee FROM transactions WHERE statement_id = $1`, statementID)
	if err != nil {
		return Result{}, fmt.Errorf("rules: list transactions: %w", err)
	}
	defer rows.Close()

	type match struct {
		txnID uuid.UUID
		tagID uuid.UUID
	}
	var (
		result  Result
		matches []match
	)
	for rows.Next() {
		var (
			txnID uuid.UUID
			payee string
		)
		if err := rows.Scan(&txnID, &payee); err != nil {
			return Result{}, fmt.Errorf("rules: scan transaction: %w", err)
		}
		result.TransactionsProcessed++

		lowered := strings.ToLower(payee)
		for _, rule := range rules {
			if strings.Contains(lowered, rule.Pattern) {
				matches = append(matches, match{txnID: txnID, tagID: rule.TagID})
			}
		}
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("rules: iterate transactions: %w", err)
	}

	for _, m := range matches {
		tag, err := e.db.Exec(ctx,
			`INSERT INTO transaction_tags (transaction_id, tag_id)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			m.txnID, m.tagID)
		if err != nil {
			return Result{}, fmt.Errorf("rules: tag transaction: %w", err)
		}
		result.TagsApplied += int(tag.RowsAffected())
	}

	return result, nil
}

func (e *SQLEngine) loadRules(ctx context.Context, userID uuid.UUID) ([]tagRule, error) {
	rows, err := e.db.Query(ctx,
		`SELECT tag_id, pattern FROM tag_rules WHERE user_id = $1 AND active`, userID)
	if err != nil {
		return nil, fmt.Errorf("rules: list rules: %w", err)
	}
	defer rows.Close()

	var rules []tagRule
	for rows.Next() {
		var r tagRule
		if err := rows.Scan(&r.TagID, &r.Pattern); err != nil {
			return nil, fmt.Errorf("rules: scan rule: %w", err)
		}
		r.Pattern = strings.ToLower(strings.TrimSpace(r.Pattern))
		if r.Pattern != "" {
			rules = append(rules, r)
		}
	}
	return rules, rows.Err()
}

var _ Engine = (*SQLEngine)(nil)

package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/extraction"
	"github.com/dvloznov/statement-importer/internal/rules"
	"github.com/dvloznov/statement-importer/internal/storage/postgres"
)

// JobStore mutates persisted job state.
type JobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, fields postgres.JobFields) error
}

// CardStore resolves the card a job imports into.
type CardStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.CreditCard, error)
}

// Extractor runs one extraction pipeline attempt.
type Extractor interface {
	ExtractStatement(ctx context.Context, pdf []byte, modelIndex int) extraction.Result
}

// StatementImporter is the atomic import service boundary.
type StatementImporter interface {
	ImportStatement(ctx context.Context, data *extraction.ExtractedStatement, cardID uuid.UUID, targetCurrency, sourceFilePath string) (*domain.CardStatement, []domain.Transaction, error)
	ImportPartialStatement(ctx context.Context, partialData map[string]any, cardID uuid.UUID, targetCurrency, sourceFilePath string) (*domain.CardStatement, []domain.Transaction, error)
}

// BlobFetcher retrieves the raw uploaded PDF.
type BlobFetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Processor is the job orchestrator: it owns the status transitions
// PENDING -> PROCESSING -> {COMPLETED, PARTIAL, FAILED}, the single
// fixed fallback extraction attempt, dispatch to the atomic import, and the
// non-blocking rule application afterwards. It always resolves the job; no
// internal error escapes to the queue.
type Processor struct {
	jobs      JobStore
	cards     CardStore
	blob      BlobFetcher
	extractor Extractor
	importer  StatementImporter
	rules     rules.Engine
	log       zerolog.Logger
}

func NewProcessor(jobs JobStore, cards CardStore, blob BlobFetcher, extractor Extractor, importer StatementImporter, rulesEngine rules.Engine, log zerolog.Logger) *Processor {
	return &Processor{
		jobs:      jobs,
		cards:     cards,
		blob:      blob,
		extractor: extractor,
		importer:  importer,
		rules:     rulesEngine,
		log:       log,
	}
}

// ProcessUploadJob runs one upload job to a terminal state.
func (p *Processor) ProcessUploadJob(ctx context.Context, task *Task) {
	log := p.log.With().
		Str("job_id", task.JobID.String()).
		Str("card_id", task.CardID.String()).
		Logger()

	if err := p.jobs.UpdateStatus(ctx, task.JobID, domain.JobProcessing, postgres.JobFields{}); err != nil {
		log.Error().Err(err).Msg("failed to mark job processing")
		return
	}

	card, err := p.cards.Get(ctx, task.CardID)
	if err != nil {
		p.fail(ctx, task.JobID, 0, err, log)
		return
	}

	pdf, err := p.blob.Fetch(ctx, task.FilePath)
	if err != nil {
		p.fail(ctx, task.JobID, 0, err, log)
		return
	}

	result := p.extractor.ExtractStatement(ctx, pdf, 0)
	retryCount := 0
	if !result.IsSuccess() && result.Err != "" {
		retryCount = 1
		log.Warn().
			Str("model", result.ModelUsed).
			Str("error", result.Err).
			Msg("primary extraction attempt failed, trying fallback")
		fallback := p.extractor.ExtractStatement(ctx, pdf, 1)
		// Keep a primary partial when the fallback produced nothing usable.
		if fallback.IsSuccess() || fallback.IsPartial() || !result.IsPartial() {
			result = fallback
		}
	}

	switch {
	case result.IsSuccess():
		st, txns, err := p.importer.ImportStatement(ctx, result.Data, task.CardID, card.DefaultCurrency, task.FilePath)
		if err != nil {
			p.fail(ctx, task.JobID, retryCount, err, log)
			return
		}
		p.finish(ctx, task.JobID, domain.JobCompleted, st.ID, nil, retryCount, log)
		log.Info().
			Str("statement_id", st.ID.String()).
			Int("transactions", len(txns)).
			Str("model", result.ModelUsed).
			Msg("statement imported")
		p.applyRulesAsync(card.UserID, st.ID, log)

	case result.IsPartial():
		st, txns, err := p.importer.ImportPartialStatement(ctx, result.PartialData, task.CardID, card.DefaultCurrency, task.FilePath)
		if err != nil {
			p.fail(ctx, task.JobID, retryCount, err, log)
			return
		}
		errMsg := result.Err
		p.finish(ctx, task.JobID, domain.JobPartial, st.ID, &errMsg, retryCount, log)
		log.Warn().
			Str("statement_id", st.ID.String()).
			Int("transactions", len(txns)).
			Str("model", result.ModelUsed).
			Str("error", result.Err).
			Msg("statement imported partially")
		p.applyRulesAsync(card.UserID, st.ID, log)

	default:
		log.Error().
			Str("model", result.ModelUsed).
			Str("error", result.Err).
			Msg("extraction failed on all attempts")
		p.resolveFailed(ctx, task.JobID, retryCount, msgCorruptDocument, log)
	}
}

// fail resolves the job FAILED with a sanitized message; the raw error goes
// to the operational log only.
func (p *Processor) fail(ctx context.Context, jobID uuid.UUID, retryCount int, err error, log zerolog.Logger) {
	log.Error().Err(err).Msg("job failed")
	p.resolveFailed(ctx, jobID, retryCount, sanitizeError(err), log)
}

func (p *Processor) resolveFailed(ctx context.Context, jobID uuid.UUID, retryCount int, message string, log zerolog.Logger) {
	now := time.Now()
	fields := postgres.JobFields{
		ErrorMessage: &message,
		CompletedAt:  &now,
		RetryCount:   &retryCount,
	}
	if err := p.jobs.UpdateStatus(ctx, jobID, domain.JobFailed, fields); err != nil {
		log.Error().Err(err).Msg("failed to mark job failed")
	}
}

func (p *Processor) finish(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, statementID uuid.UUID, errMsg *string, retryCount int, log zerolog.Logger) {
	now := time.Now()
	fields := postgres.JobFields{
		StatementID:  &statementID,
		ErrorMessage: errMsg,
		CompletedAt:  &now,
		RetryCount:   &retryCount,
	}
	if err := p.jobs.UpdateStatus(ctx, jobID, status, fields); err != nil {
		log.Error().Err(err).Msg("failed to finalize job")
	}
}

// applyRulesAsync triggers the rules engine after a successful or partial
// import. It runs detached from the job context and its failures never
// affect job status.
func (p *Processor) applyRulesAsync(userID, statementID uuid.UUID, log zerolog.Logger) {
	if p.rules == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		res, err := p.rules.ApplyRules(ctx, userID, statementID)
		if err != nil {
			log.Warn().Err(err).Str("statement_id", statementID.String()).Msg("rule application failed")
			return
		}
		log.Info().
			Str("statement_id", statementID.String()).
			Int("transactions_processed", res.TransactionsProcessed).
			Int("tags_applied", res.TagsApplied).
			Msg("rules applied")
	}()
}

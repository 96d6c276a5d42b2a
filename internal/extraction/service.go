package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Service runs one extraction pipeline attempt: OCR, prompt assembly,
// statement completion, validation. It is stateless across calls and never
// lets a provider error propagate; everything becomes a Result.
type Service struct {
	provider  Provider
	schema    *jsonschema.Schema
	log       zerolog.Logger
	timeout   time.Duration
	heartbeat time.Duration
}

// NewService creates an extraction service over one provider. timeout bounds
// each individual model call; heartbeat is the interval of the "still
// waiting" log while a call is in flight.
func NewService(provider Provider, log zerolog.Logger, timeout, heartbeat time.Duration) (*Service, error) {
	schema, err := compileStatementSchema()
	if err != nil {
		return nil, err
	}
	return &Service{
		provider:  provider,
		schema:    schema,
		log:       log,
		timeout:   timeout,
		heartbeat: heartbeat,
	}, nil
}

// ExtractStatement runs the pipeline pair at modelIndex against the PDF.
// Index 0 is the provider's primary pair; higher indexes are fallbacks. An
// out-of-range index is a terminal failure, not retried here.
func (s *Service) ExtractStatement(ctx context.Context, pdf []byte, modelIndex int) Result {
	pipelines := s.provider.Pipelines()
	if modelIndex < 0 || modelIndex >= len(pipelines) {
		return failure("no more models available", "none")
	}
	pair := pipelines[modelIndex]
	modelUsed := fmt.Sprintf("%s:%s+%s", s.provider.Name(), pair.OCRModel, pair.StatementModel)

	ocrRaw, err := callModel(ctx, s, "ocr", pair.OCRModel, func(ctx context.Context) ([]byte, error) {
		return s.provider.RunOCR(ctx, pair.OCRModel, pdf)
	})
	if err != nil {
		return failure(err.Error(), modelUsed)
	}

	var doc OCRDocument
	if err := json.Unmarshal(ocrRaw, &doc); err != nil {
		return failure(fmt.Sprintf("ocr payload is not valid JSON: %v", err), modelUsed)
	}
	if len(doc.Pages) == 0 {
		return failure("ocr payload has no pages", modelUsed)
	}

	// Re-marshal the normalized document so the statement prompt carries
	// only the pages payload, not whatever extras the provider emitted.
	pagesJSON, err := json.Marshal(doc)
	if err != nil {
		return failure(fmt.Sprintf("render ocr pages: %v", err), modelUsed)
	}
	prompt := BuildStatementPrompt(pagesJSON)

	rawText, err := callModel(ctx, s, "statement", pair.StatementModel, func(ctx context.Context) (string, error) {
		return s.provider.RunStatement(ctx, pair.StatementModel, prompt)
	})
	if err != nil {
		return failure(err.Error(), modelUsed)
	}

	return s.validateOutput(rawText, modelUsed)
}

// validateOutput classifies the raw completion text as success, partial or
// failure. Text that parses as JSON but fails schema validation is kept as a
// partial result for the best-effort import path.
func (s *Service) validateOutput(rawText, modelUsed string) Result {
	clean := stripFence(rawText)

	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(clean))
	if err != nil {
		return failure(fmt.Sprintf("model output is not valid JSON: %v", err), modelUsed)
	}

	if verr := s.schema.Validate(instance); verr != nil {
		errMsg := fmt.Sprintf("schema validation failed: %v", verr)
		switch v := instance.(type) {
		case map[string]any:
			return partial(v, errMsg, modelUsed)
		case []any:
			// Models sometimes emit a bare transaction array.
			return partial(map[string]any{"transactions": v}, errMsg, modelUsed)
		default:
			return failure(errMsg, modelUsed)
		}
	}

	var data ExtractedStatement
	if err := json.Unmarshal([]byte(clean), &data); err != nil {
		// Schema-valid but undecodable (e.g. a date the schema pattern lets
		// through that civil.Date rejects). Degrade to partial.
		if m, ok := instance.(map[string]any); ok {
			return partial(m, fmt.Sprintf("decode statement: %v", err), modelUsed)
		}
		return failure(fmt.Sprintf("decode statement: %v", err), modelUsed)
	}

	return success(&data, modelUsed)
}

// callModel invokes fn under the service timeout, logging a periodic "still
// waiting" line while the call is in flight.
func callModel[T any](ctx context.Context, s *Service, stage, model string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.log.Info().
					Str("stage", stage).
					Str("model", model).
					Dur("elapsed", time.Since(start)).
					Msg("still waiting on model response")
			}
		}
	}()

	return fn(ctx)
}

// Package extraction drives the two-stage LLM pipeline that turns a credit
// card statement PDF into structured data: an OCR transcription pass followed
// by a schema-constrained statement parsing pass.
package extraction

import (
	"context"
)

// PipelinePair is one (OCR model, statement model) combination tried as a
// unit during extraction.
type PipelinePair struct {
	OCRModel       string
	StatementModel string
}

// OCRPage is one transcribed page of the statement.
type OCRPage struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// OCRDocument is the payload every OCR capability must produce.
type OCRDocument struct {
	Pages []OCRPage `json:"pages"`
}

// Provider is a model backend capable of running both pipeline stages.
// Pipelines returns the ordered list of model pairs: index 0 is the primary,
// index 1 the first fallback, and so on.
//
// RunOCR returns the raw JSON payload of an OCRDocument; how the provider
// gets text out of the PDF (direct submission, rasterization) is its own
// business. RunStatement returns the model's raw completion text, which may
// still be wrapped in a Markdown code fence.
type Provider interface {
	Name() string
	Pipelines() []PipelinePair
	RunOCR(ctx context.Context, model string, pdf []byte) ([]byte, error)
	RunStatement(ctx context.Context, model string, prompt string) (string, error)
}

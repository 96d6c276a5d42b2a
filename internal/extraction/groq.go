package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqProvider runs pipeline stages on Groq-hosted models. Groq has no
// native PDF input, so the OCR stage ships the document as a base64 block
// for the model to transcribe.
type GroqProvider struct {
	client *chatClient
}

func NewGroqProvider(apiKey string) *GroqProvider {
	return &GroqProvider{client: newChatClient(groqBaseURL, apiKey)}
}

func (p *GroqProvider) Name() string { return "groq" }

func (p *GroqProvider) Pipelines() []PipelinePair {
	return []PipelinePair{
		{OCRModel: "meta-llama/llama-4-scout-17b-16e-instruct", StatementModel: "llama-3.3-70b-versatile"},
		{OCRModel: "meta-llama/llama-4-maverick-17b-128e-instruct", StatementModel: "deepseek-r1-distill-llama-70b"},
	}
}

func (p *GroqProvider) RunOCR(ctx context.Context, model string, pdf []byte) ([]byte, error) {
	encoded := base64.StdEncoding.EncodeToString(pdf)
	messages := []chatMessage{
		{
			Role: "user",
			Content: []map[string]any{
				{"type": "text", "text": ocrPrompt},
				{"type": "text", "text": "PDF document, base64 encoded:\n" + encoded},
			},
		},
	}

	text, err := p.client.complete(ctx, model, messages)
	if err != nil {
		return nil, fmt.Errorf("groq ocr: %w", err)
	}
	return []byte(stripFence(text)), nil
}

func (p *GroqProvider) RunStatement(ctx context.Context, model string, prompt string) (string, error) {
	messages := []chatMessage{{Role: "user", Content: prompt}}
	text, err := p.client.complete(ctx, model, messages)
	if err != nil {
		return "", fmt.Errorf("groq statement: %w", err)
	}
	return text, nil
}

var _ Provider = (*GroqProvider)(nil)

package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider routes pipeline stages through OpenRouter. OCR models
// receive the PDF as a file part; OpenRouter handles the document natively
// for models that support it.
type OpenRouterProvider struct {
	client *chatClient
}

func NewOpenRouterProvider(apiKey string) *OpenRouterProvider {
	return &OpenRouterProvider{client: newChatClient(openRouterBaseURL, apiKey)}
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }

func (p *OpenRouterProvider) Pipelines() []PipelinePair {
	return []PipelinePair{
		{OCRModel: "google/gemini-2.5-flash", StatementModel: "openai/gpt-4o"},
		{OCRModel: "openai/gpt-4o-mini", StatementModel: "meta-llama/llama-3.3-70b-instruct"},
	}
}

func (p *OpenRouterProvider) RunOCR(ctx context.Context, model string, pdf []byte) ([]byte, error) {
	encoded := base64.StdEncoding.EncodeToString(pdf)
	messages := []chatMessage{
		{
			Role: "user",
			Content: []map[string]any{
				{"type": "text", "text": ocrPrompt},
				{
					"type": "file",
					"file": map[string]any{
						"filename":  "statement.pdf",
						"file_data": "data:application/pdf;base64," + encoded,
					},
				},
			},
		},
	}

	text, err := p.client.complete(ctx, model, messages)
	if err != nil {
		return nil, fmt.Errorf("openrouter ocr: %w", err)
	}
	return []byte(stripFence(text)), nil
}

func (p *OpenRouterProvider) RunStatement(ctx context.Context, model string, prompt string) (string, error) {
	messages := []chatMessage{{Role: "user", Content: prompt}}
	text, err := p.client.complete(ctx, model, messages)
	if err != nil {
		return "", fmt.Errorf("openrouter statement: %w", err)
	}
	return text, nil
}

var _ Provider = (*OpenRouterProvider)(nil)

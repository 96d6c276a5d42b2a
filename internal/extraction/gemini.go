package extraction

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider runs both pipeline stages against the Gemini API. The PDF
// is submitted directly; Gemini reads it natively, no rasterization needed.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini-backed provider. Credentials come from
// the environment (GEMINI_API_KEY or application default credentials).
func NewGeminiProvider(ctx context.Context) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Pipelines() []PipelinePair {
	return []PipelinePair{
		{OCRModel: "gemini-2.5-flash", StatementModel: "gemini-2.5-pro"},
		{OCRModel: "gemini-2.0-flash", StatementModel: "gemini-2.5-flash"},
	}
}

func (p *GeminiProvider) RunOCR(ctx context.Context, model string, pdf []byte) ([]byte, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: ocrPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdf,
					},
				},
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini ocr: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini ocr: empty response from model")
	}
	return []byte(stripFence(text)), nil
}

func (p *GeminiProvider) RunStatement(ctx context.Context, model string, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini statement: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini statement: empty response from model")
	}
	return text, nil
}

var _ Provider = (*GeminiProvider)(nil)

package marketing

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// geminiCaller is the production modelCaller backed by the genai SDK.
type geminiCaller struct {
	client *genai.Client
}

func (g *geminiCaller) generateJSON(ctx context.Context, model, prompt string, schema *genai.Schema) (string, error) {
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generateJSON: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("generateJSON: empty response from model")
	}
	return text, nil
}

func (g *geminiCaller) generateImage(ctx context.Context, model, prompt string) ([]byte, error) {
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generateImage: generate content: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, nil
}

package extraction

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiCaller is the production modelCaller backed by the genai SDK.
type geminiCaller struct {
	client *genai.Client
}

func (g *geminiCaller) generateJSON(ctx context.Context, parts []*genai.Part, schema *genai.Schema) (string, error) {
	contents := []*genai.Content{
		{Role: "user", Parts: parts},
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := g.client.Models.GenerateContent(ctx, ModelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generateJSON: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("generateJSON: empty response from model")
	}
	return text, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk if the model
// ignored the structured-output instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Extra safety: keep only from the first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

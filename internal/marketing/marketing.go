// Package marketing generates promotional posters from a free-text topic
// using two independent generative calls (copy and image).
package marketing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/khatalens/internal/domain"
)

// Model names for the two generation calls.
const (
	CopyModelName  = "gemini-3-flash-preview"
	ImageModelName = "gemini-2.5-flash-image"
)

// Copy is the text content of a poster.
type Copy struct {
	Headline   string `json:"headline"`
	Subline    string `json:"subline"`
	Body       string `json:"body"`
	ColorTheme string `json:"colorTheme"`
}

// modelCaller is the seam around the generative model.
type modelCaller interface {
	generateJSON(ctx context.Context, model, prompt string, schema *genai.Schema) (string, error)
	generateImage(ctx context.Context, model, prompt string) ([]byte, error)
}

// Client produces marketing posters.
type Client struct {
	caller modelCaller
	clock  func() time.Time
	log    zerolog.Logger
}

// NewClient creates a marketing client backed by the Gemini API.
func NewClient(ctx context.Context, apiKey string, log zerolog.Logger) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}
	return &Client{
		caller: &geminiCaller{client: gc},
		clock:  time.Now,
		log:    log,
	}, nil
}

// fallbackCopy is the deterministic static default when the copy call fails.
func fallbackCopy(shop domain.ShopType) Copy {
	return Copy{
		Headline:   "Big Sale!",
		Subline:    "Limited time offer",
		Body:       fmt.Sprintf("Best deals at your local %s. Don't miss out!", shop.Label()),
		ColorTheme: "#3b82f6",
	}
}

func copySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"headline":   {Type: genai.TypeString},
			"subline":    {Type: genai.TypeString},
			"body":       {Type: genai.TypeString},
			"colorTheme": {Type: genai.TypeString},
		},
	}
}

func copyPrompt(topic string, shop domain.ShopType) string {
	return fmt.Sprintf(`Generate marketing poster content for a %s running a promotion on: %q.
Return a JSON object with:
- headline: A catchy, short title (max 5 words).
- subline: A supporting sub-headline (max 8 words).
- body: A short persuasive paragraph for WhatsApp sharing (max 20 words).
- colorTheme: A CSS hex code string for the background color that fits the vibe.`, shop.Label(), topic)
}

func imagePrompt(topic string, shop domain.ShopType) string {
	return fmt.Sprintf(`A professional, high-quality promotional image for a %s advertisement about: %s.
Minimalist, bright, clean background, suitable for a poster. No text in the image.`, shop.Label(), topic)
}

// GenerateCopy produces poster text for the topic. On any failure it returns
// the static fallback copy rather than an error.
func (c *Client) GenerateCopy(ctx context.Context, topic string, shop domain.ShopType) Copy {
	raw, err := c.caller.generateJSON(ctx, CopyModelName, copyPrompt(topic, shop), copySchema())
	if err != nil {
		c.log.Error().Err(err).Msg("Marketing copy generation failed")
		return fallbackCopy(shop)
	}

	var result Copy
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.log.Error().Err(err).Str("raw", raw).Msg("Marketing copy response is not valid JSON")
		return fallbackCopy(shop)
	}
	return result
}

// GenerateImage produces a poster image for the topic. A nil result means no
// image is available, which is a valid outcome, not an error.
func (c *Client) GenerateImage(ctx context.Context, topic string, shop domain.ShopType) []byte {
	data, err := c.caller.generateImage(ctx, ImageModelName, imagePrompt(topic, shop))
	if err != nil {
		c.log.Error().Err(err).Msg("Marketing image generation failed")
		return nil
	}
	return data
}

// GeneratePoster issues the copy and image calls concurrently, joins the
// results and composes a displayable poster. Either or both calls may fail;
// per-field defaults guarantee a usable poster regardless.
func (c *Client) GeneratePoster(ctx context.Context, topic string, shop domain.ShopType) (domain.Poster, error) {
	if strings.TrimSpace(topic) == "" {
		return domain.Poster{}, fmt.Errorf("GeneratePoster: topic is empty")
	}

	var (
		wg    sync.WaitGroup
		text  Copy
		image []byte
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		text = c.GenerateCopy(ctx, topic, shop)
	}()
	go func() {
		defer wg.Done()
		image = c.GenerateImage(ctx, topic, shop)
	}()
	wg.Wait()

	poster := domain.Poster{
		ID:         uuid.NewString(),
		Headline:   text.Headline,
		Subline:    text.Subline,
		Body:       text.Body,
		ColorTheme: text.ColorTheme,
		ImageData:  image,
		CreatedAt:  c.clock(),
	}
	if poster.Headline == "" {
		poster.Headline = "Special Offer"
	}
	if poster.Subline == "" {
		poster.Subline = "Limited Time"
	}
	if poster.Body == "" {
		poster.Body = "Visit us today!"
	}
	if poster.ColorTheme == "" {
		poster.ColorTheme = "#3b82f6"
	}

	c.log.Info().
		Str("poster_id", poster.ID).
		Bool("has_image", len(poster.ImageData) > 0).
		Msg("Poster generated")
	return poster, nil
}

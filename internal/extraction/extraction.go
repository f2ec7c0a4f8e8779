// Package extraction turns a photographed ledger page into typed line items
// using a hosted generative model.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/khatalens/internal/domain"
)

// ModelName is the Gemini model used for ledger extraction.
const ModelName = "gemini-3-flash-preview"

// Sentinel values for a failed extraction. The client never surfaces an
// error to the caller; a failure degrades to exactly one visible placeholder
// item so the verification screen always has something to show.
const (
	sentinelDate        = "2023-10-25"
	sentinelDescription = "Error Reading Image"
	defaultDescription  = "Unknown Item"
)

// allowedMediaTypes is the upload allow-list.
var allowedMediaTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// modelCaller is the narrow seam around the generative model, so tests can
// simulate remote failures and canned responses.
type modelCaller interface {
	generateJSON(ctx context.Context, parts []*genai.Part, schema *genai.Schema) (string, error)
}

// Client extracts line items from ledger images.
type Client struct {
	caller modelCaller
	clock  func() time.Time
	log    zerolog.Logger
}

// NewClient creates an extraction client backed by the Gemini API. The API
// key may be empty, in which case the genai SDK falls back to its own
// environment lookup.
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

// itemsSchema constrains the model to the exact response shape we parse.
func itemsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"date":        {Type: genai.TypeString, Description: "Date of transaction in YYYY-MM-DD format"},
						"description": {Type: genai.TypeString, Description: "Name of the item or description of transaction"},
						"amount":      {Type: genai.TypeNumber, Description: "Cost or amount of the transaction"},
					},
					Required: []string{"date", "description", "amount"},
				},
			},
		},
	}
}

func buildPrompt(shop domain.ShopType) string {
	return "Analyze this handwritten Khata (ledger) receipt or page.\n" +
		"Context: This is a " + shop.Label() + ". Ensure extracted items make sense for this domain.\n" +
		"Extract the transaction items.\n" +
		"For each item, identify the Date, Description (Item name), and Amount.\n" +
		"If the date is implied or missing, use today's date (YYYY-MM-DD).\n" +
		"Return the data as a JSON list."
}

// rawItem mirrors the model's response element before defaulting.
type rawItem struct {
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Amount      *float64 `json:"amount"`
}

// Extract sends the image to the model and maps the structured response into
// line items. It never returns an error: any failure (bad media type, empty
// payload, remote error, malformed JSON) yields a single sentinel item with
// description "Error Reading Image" and amount 0.
func (c *Client) Extract(ctx context.Context, image []byte, mediaType string, shop domain.ShopType) []domain.LineItem {
	if len(image) == 0 {
		c.log.Warn().Msg("Extraction called with empty image payload")
		return c.sentinelItems()
	}
	if !allowedMediaTypes[mediaType] {
		c.log.Warn().Str("media_type", mediaType).Msg("Extraction called with unsupported media type")
		return c.sentinelItems()
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mediaType, Data: image}},
		{Text: buildPrompt(shop)},
	}

	raw, err := c.caller.generateJSON(ctx, parts, itemsSchema())
	if err != nil {
		c.log.Error().Err(err).Msg("Gemini extraction failed")
		return c.sentinelItems()
	}

	var payload struct {
		Items []rawItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &payload); err != nil {
		c.log.Error().Err(err).Str("raw", raw).Msg("Extraction response is not valid JSON")
		return c.sentinelItems()
	}

	today := c.clock().Format("2006-01-02")
	items := make([]domain.LineItem, 0, len(payload.Items))
	for _, r := range payload.Items {
		item := domain.LineItem{
			ID:          uuid.NewString(),
			Date:        r.Date,
			Description: r.Description,
		}
		if item.Date == "" {
			item.Date = today
		}
		if item.Description == "" {
			item.Description = defaultDescription
		}
		if r.Amount != nil {
			item.Amount = *r.Amount
		}
		items = append(items, item)
	}

	c.log.Info().Int("items", len(items)).Str("shop_type", string(shop)).Msg("Extraction completed")
	return items
}

// sentinelItems is the degraded placeholder result for any failure.
func (c *Client) sentinelItems() []domain.LineItem {
	return []domain.LineItem{
		{
			ID:          uuid.NewString(),
			Date:        sentinelDate,
			Description: sentinelDescription,
			Amount:      0,
		},
	}
}

package extraction

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/khatalens/internal/domain"
	"github.com/dvloznov/khatalens/internal/logger"
)

// mockCaller is a modelCaller returning a canned response or error.
type mockCaller struct {
	response string
	err      error
	calls    int
}

func (m *mockCaller) generateJSON(ctx context.Context, parts []*genai.Part, schema *genai.Schema) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func newTestClient(caller *mockCaller) *Client {
	return &Client{
		caller: caller,
		clock:  func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		log:    logger.NewWithWriter(io.Discard),
	}
}

func TestExtract_Success(t *testing.T) {
	caller := &mockCaller{
		response: `{"items":[
			{"date":"2024-01-01","description":"Rice","amount":100},
			{"date":"2024-01-02","description":"Dal","amount":55.5}
		]}`,
	}
	c := newTestClient(caller)

	items := c.Extract(context.Background(), []byte("img"), "image/jpeg", domain.ShopGrocery)

	if len(items) != 2 {
		t.Fatalf("Extract returned %d items, want 2", len(items))
	}
	if items[0].Description != "Rice" || items[0].Amount != 100 || items[0].Date != "2024-01-01" {
		t.Errorf("first item = %+v", items[0])
	}
	if items[0].ID == "" || items[1].ID == "" || items[0].ID == items[1].ID {
		t.Errorf("items must get fresh unique IDs, got %q and %q", items[0].ID, items[1].ID)
	}
}

func TestExtract_DefaultsMissingFields(t *testing.T) {
	caller := &mockCaller{
		response: `{"items":[{"date":"","description":"","amount":null}]}`,
	}
	c := newTestClient(caller)

	items := c.Extract(context.Background(), []byte("img"), "image/png", domain.ShopGeneral)

	if len(items) != 1 {
		t.Fatalf("Extract returned %d items, want 1", len(items))
	}
	if items[0].Date != "2024-06-01" {
		t.Errorf("missing date defaulted to %q, want today", items[0].Date)
	}
	if items[0].Description != "Unknown Item" {
		t.Errorf("missing description defaulted to %q", items[0].Description)
	}
	if items[0].Amount != 0 {
		t.Errorf("missing amount defaulted to %v, want 0", items[0].Amount)
	}
}

func TestExtract_RemoteFailureYieldsSentinel(t *testing.T) {
	caller := &mockCaller{err: fmt.Errorf("rpc: connection refused")}
	c := newTestClient(caller)

	items := c.Extract(context.Background(), []byte("img"), "image/jpeg", domain.ShopGeneral)

	if len(items) != 1 {
		t.Fatalf("Extract returned %d items, want exactly 1 sentinel", len(items))
	}
	if items[0].Description != "Error Reading Image" || items[0].Amount != 0 {
		t.Errorf("sentinel item = %+v", items[0])
	}
	if items[0].Date != "2023-10-25" {
		t.Errorf("sentinel date = %q, want fixed sentinel", items[0].Date)
	}
}

func TestExtract_MalformedJSONYieldsSentinel(t *testing.T) {
	caller := &mockCaller{response: "sure! here are your items: rice, dal"}
	c := newTestClient(caller)

	items := c.Extract(context.Background(), []byte("img"), "image/jpeg", domain.ShopGeneral)

	if len(items) != 1 || items[0].Description != "Error Reading Image" {
		t.Errorf("Extract on malformed JSON = %+v, want sentinel", items)
	}
}

func TestExtract_InputValidation(t *testing.T) {
	tests := []struct {
		name      string
		image     []byte
		mediaType string
	}{
		{"empty payload", nil, "image/jpeg"},
		{"unsupported media type", []byte("img"), "image/gif"},
		{"no media type", []byte("img"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &mockCaller{response: `{"items":[]}`}
			c := newTestClient(caller)

			items := c.Extract(context.Background(), tt.image, tt.mediaType, domain.ShopGeneral)

			if caller.calls != 0 {
				t.Errorf("model was called %d times, want 0", caller.calls)
			}
			if len(items) != 1 || items[0].Description != "Error Reading Image" {
				t.Errorf("Extract = %+v, want sentinel", items)
			}
		})
	}
}

func TestExtract_FencedResponseStillParses(t *testing.T) {
	caller := &mockCaller{
		response: "```json\n{\"items\":[{\"date\":\"2024-01-01\",\"description\":\"Oil\",\"amount\":12}]}\n```",
	}
	c := newTestClient(caller)

	items := c.Extract(context.Background(), []byte("img"), "application/pdf", domain.ShopGeneral)

	if len(items) != 1 || items[0].Description != "Oil" {
		t.Errorf("Extract on fenced response = %+v", items)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"items":[]}`, `{"items":[]}`},
		{"fenced", "```json\n{\"items\":[]}\n```", `{"items":[]}`},
		{"fenced no lang", "```\n{\"items\":[]}\n```", `{"items":[]}`},
		{"leading prose", "Here you go: {\"items\":[]}", `{"items":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.in); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

package reports

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/khatalens/internal/domain"
)

func historyFixture() []domain.LedgerRecord {
	return []domain.LedgerRecord{
		{
			ID:        "b2c3d4e5",
			CreatedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
			Items: []domain.LineItem{
				{Description: "Sugar", Amount: 50},
				{Description: "Tea, loose", Amount: 150},
			},
			Tax: domain.TaxBreakdown{Subtotal: 200, CGST: 18, SGST: 18, Total: 236},
		},
		{
			ID:        "a1b2c3d4",
			CreatedAt: time.Date(2024, 5, 30, 18, 0, 0, 0, time.UTC),
			Items: []domain.LineItem{
				{Description: "Rice", Amount: 100},
			},
			Tax: domain.TaxBreakdown{Subtotal: 100, CGST: 9, SGST: 9, Total: 118},
		},
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	s := Summarize(historyFixture(), now)

	if s.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", s.RecordCount)
	}
	if s.TotalRevenue != 354 {
		t.Errorf("TotalRevenue = %v, want 354", s.TotalRevenue)
	}
	if s.TodayRevenue != 236 {
		t.Errorf("TodayRevenue = %v, want today's record only (236)", s.TodayRevenue)
	}
	if s.TaxLiability != 54 {
		t.Errorf("TaxLiability = %v, want 54", s.TaxLiability)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, time.Now())
	if s != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero summary", s)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, historyFixture()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("CSV has %d lines, want header + 2 rows:\n%s", len(lines), buf.String())
	}

	if lines[0] != "Date,Transaction ID,Items,Subtotal,Tax,Total" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `2024-06-01,b2c3d4e5,"Sugar; Tea, loose",200.00,36.00,236.00` {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != `2024-05-30,a1b2c3d4,"Rice",100.00,18.00,118.00` {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestWriteCSV_EscapesQuotes(t *testing.T) {
	history := []domain.LedgerRecord{
		{
			ID:        "r1",
			CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Items:     []domain.LineItem{{Description: `5kg "premium" atta`, Amount: 10}},
			Tax:       domain.TaxBreakdown{Subtotal: 10, CGST: 0.9, SGST: 0.9, Total: 11.8},
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, history); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"5kg ""premium"" atta"`) {
		t.Errorf("quotes not doubled:\n%s", buf.String())
	}
}

func TestWriteCSV_EmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if strings.TrimRight(buf.String(), "\n") != "Date,Transaction ID,Items,Subtotal,Tax,Total" {
		t.Errorf("empty history should yield header only, got:\n%s", buf.String())
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := WritePDF(&buf, historyFixture(), domain.ShopGrocery, now); err != nil {
		t.Fatalf("WritePDF failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Error("output is not a PDF document")
	}
}

func TestWritePDF_EmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, nil, domain.ShopGeneral, time.Now()); err != nil {
		t.Fatalf("WritePDF on empty history failed: %v", err)
	}
}

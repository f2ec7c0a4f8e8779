// Package reports produces compliance-ready summaries and exports of the
// saved ledger history.
package reports

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dvloznov/khatalens/internal/domain"
	"github.com/dvloznov/khatalens/internal/tax"
)

// Summary aggregates the headline numbers shown on the dashboard.
type Summary struct {
	TotalRevenue float64 `json:"total_revenue"`
	TodayRevenue float64 `json:"today_revenue"`
	TaxLiability float64 `json:"tax_liability"` // CGST + SGST across all records
	RecordCount  int     `json:"record_count"`
}

// Summarize computes the summary over the record history. "Today" is defined
// by now's calendar date in its own location.
func Summarize(history []domain.LedgerRecord, now time.Time) Summary {
	s := Summary{RecordCount: len(history)}
	today := now.Format("2006-01-02")

	for _, r := range history {
		s.TotalRevenue += r.Tax.Total
		s.TaxLiability += r.Tax.CGST + r.Tax.SGST
		if r.CreatedAt.Format("2006-01-02") == today {
			s.TodayRevenue += r.Tax.Total
		}
	}
	return s
}

// csvHeader is the fixed export header.
const csvHeader = "Date,Transaction ID,Items,Subtotal,Tax,Total"

// WriteCSV writes the record history as CSV. The Items column joins the item
// descriptions with "; " and is always quoted; amounts are rendered with two
// decimals.
func WriteCSV(w io.Writer, history []domain.LedgerRecord) error {
	if _, err := fmt.Fprintln(w, csvHeader); err != nil {
		return fmt.Errorf("WriteCSV: write header: %w", err)
	}

	for _, r := range history {
		descriptions := make([]string, 0, len(r.Items))
		for _, item := range r.Items {
			descriptions = append(descriptions, item.Description)
		}
		items := strings.ReplaceAll(strings.Join(descriptions, "; "), `"`, `""`)

		row := fmt.Sprintf("%s,%s,\"%s\",%.2f,%.2f,%.2f\n",
			r.CreatedAt.Format("2006-01-02"),
			r.ID,
			items,
			tax.Round2(r.Tax.Subtotal),
			tax.Round2(r.Tax.CGST+r.Tax.SGST),
			tax.Round2(r.Tax.Total),
		)
		if _, err := io.WriteString(w, row); err != nil {
			return fmt.Errorf("WriteCSV: write row: %w", err)
		}
	}
	return nil
}

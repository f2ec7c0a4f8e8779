package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/dvloznov/khatalens/internal/domain"
	"github.com/dvloznov/khatalens/internal/tax"
)

// WritePDF renders the record history as a printable A4 report: a summary
// block followed by the transaction ledger table.
func WritePDF(w io.Writer, history []domain.LedgerRecord, shop domain.ShopType, now time.Time) error {
	summary := Summarize(history, now)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "KhataLens Financial Report")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 8, fmt.Sprintf("Shop type: %s", shop.Label()))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", now.Format("2006-01-02")))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Total revenue: %.2f across %d transactions", tax.Round2(summary.TotalRevenue), summary.RecordCount))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Today's revenue: %.2f", tax.Round2(summary.TodayRevenue)))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Estimated GST payable: %.2f", tax.Round2(summary.TaxLiability)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Transaction Ledger")
	pdf.Ln(8)

	// Table header
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(25, 7, "Date", "1", 0, "", false, 0, "")
	pdf.CellFormat(45, 7, "Transaction ID", "1", 0, "", false, 0, "")
	pdf.CellFormat(35, 7, "Taxable Value", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "GST", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Total", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, r := range history {
		id := r.ID
		if len(id) > 18 {
			id = id[:18] + "..."
		}
		pdf.CellFormat(25, 7, r.CreatedAt.Format("2006-01-02"), "1", 0, "", false, 0, "")
		pdf.CellFormat(45, 7, id, "1", 0, "", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", tax.Round2(r.Tax.Subtotal)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", tax.Round2(r.Tax.CGST+r.Tax.SGST)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", tax.Round2(r.Tax.Total)), "1", 1, "R", false, 0, "")
	}
	if len(history) == 0 {
		pdf.CellFormat(175, 7, "No transactions recorded yet.", "1", 1, "C", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("WritePDF: render: %w", err)
	}
	return nil
}

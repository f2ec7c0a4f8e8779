// Package tax computes the fixed-rate GST split for a list of line items.
package tax

import (
	"math"

	"github.com/dvloznov/khatalens/internal/domain"
)

// Rate is the fixed per-component GST rate. CGST and SGST each apply this
// rate to the subtotal, so the effective combined rate is 18%.
const Rate = 0.09

// Compute returns the tax breakdown for the given items. The subtotal is
// accumulated without intermediate rounding; an empty or nil list yields an
// all-zero breakdown. There are no error conditions.
func Compute(items []domain.LineItem) domain.TaxBreakdown {
	var subtotal float64
	for _, item := range items {
		subtotal += item.Amount
	}

	cgst := subtotal * Rate
	sgst := subtotal * Rate

	return domain.TaxBreakdown{
		Subtotal: subtotal,
		CGST:     cgst,
		SGST:     sgst,
		Total:    subtotal + cgst + sgst,
	}
}

// Round2 rounds v to two decimal places for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

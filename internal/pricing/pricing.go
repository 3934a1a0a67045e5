// Package pricing derives subtotal, tax and total from priced line items.
// Checkout and cancellation both price through this package so the two paths
// can never disagree on an order's total.
package pricing

import "math"

// epsilon absorbs binary float noise before rounding, so that values such as
// 1.005 round half-up to 1.01.
const epsilon = 1e-9

// RoundCurrency rounds to the cent using round-half-up.
func RoundCurrency(v float64) float64 {
	return math.Round((v+epsilon)*100) / 100
}

// Line is one priced order line. Quantity is the quantity being priced; for
// recomputation after cancellations callers pass the still-active quantity.
type Line struct {
	Price    float64
	Quantity int
}

type Quote struct {
	Subtotal  float64
	TaxAmount float64
	Total     float64
}

// Calculate prices the given lines at the given tax rate (a fraction,
// e.g. 0.08).
func Calculate(lines []Line, taxRate float64) Quote {
	var subtotal float64
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		subtotal += line.Price * float64(line.Quantity)
	}
	subtotal = RoundCurrency(subtotal)

	taxAmount := RoundCurrency(subtotal * taxRate)
	total := RoundCurrency(subtotal + taxAmount)

	return Quote{
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     total,
	}
}

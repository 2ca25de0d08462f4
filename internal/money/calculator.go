// Package money holds the line-level tax and discount arithmetic shared by
// invoices, quotations and customer balances.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount reports a caller-correctable numeric input.
var ErrInvalidAmount = errors.New("money: invalid amount")

var hundred = decimal.NewFromInt(100)

// LineResult is the rounded breakdown of a single line item.
type LineResult struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxableAmount  decimal.Decimal `json:"taxable_amount"`
	GSTAmount      decimal.Decimal `json:"gst_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

// Round2 rounds half away from zero to two decimal places. All ledger values
// are non-negative so this is half-up.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// ComputeLine derives discount, taxable amount, GST and line total. Every
// derived value is rounded before it feeds the next derivation so that the
// printed figures always add up.
func ComputeLine(unitPrice decimal.Decimal, quantity int, discountPercent, gstRatePercent decimal.Decimal) (LineResult, error) {
	if unitPrice.IsNegative() {
		return LineResult{}, fmt.Errorf("%w: unit price %s is negative", ErrInvalidAmount, unitPrice)
	}
	if quantity <= 0 {
		return LineResult{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidAmount, quantity)
	}
	discountPercent = ClampPercent(discountPercent, hundred)
	gstRatePercent = ClampPercent(gstRatePercent, decimal.Decimal{})

	subtotal := Round2(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
	discount := Round2(subtotal.Mul(discountPercent).Div(hundred))
	taxable := subtotal.Sub(discount)
	gst := Round2(taxable.Mul(gstRatePercent).Div(hundred))

	return LineResult{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxableAmount:  taxable,
		GSTAmount:      gst,
		LineTotal:      taxable.Add(gst),
	}, nil
}

// ClampPercent bounds a percentage to [0, upper]. A zero upper leaves the
// value unbounded above.
func ClampPercent(p, upper decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if upper.IsPositive() && p.GreaterThan(upper) {
		return upper
	}
	return p
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// Totals accumulates already-rounded line values into document aggregates.
type Totals struct {
	Subtotal           decimal.Decimal `json:"subtotal"`
	TotalDiscount      decimal.Decimal `json:"total_discount"`
	DiscountedSubtotal decimal.Decimal `json:"discounted_subtotal"`
	TotalGST           decimal.Decimal `json:"total_gst"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
}

// Add folds one line into the aggregates.
func (t *Totals) Add(line LineResult) {
	t.Subtotal = t.Subtotal.Add(line.Subtotal)
	t.TotalDiscount = t.TotalDiscount.Add(line.DiscountAmount)
	t.DiscountedSubtotal = t.DiscountedSubtotal.Add(line.TaxableAmount)
	t.TotalGST = t.TotalGST.Add(line.GSTAmount)
	t.TotalAmount = t.TotalAmount.Add(line.LineTotal)
}

// BalanceDue is max(0, total - paid).
func BalanceDue(total, paid decimal.Decimal) decimal.Decimal {
	due := Round2(total.Sub(paid))
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

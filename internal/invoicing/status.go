package invoicing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/money"
)

// DeriveStatus maps the amount paid against the total to a status and the
// amount that should be stored. A non-positive amount is stored as zero and
// anything at or above the total is pinned to exactly the total.
func DeriveStatus(paid, total decimal.Decimal) (PaymentStatus, decimal.Decimal) {
	paid = money.Round2(paid)
	total = money.Round2(total)
	switch {
	case !paid.IsPositive():
		return StatusUnpaid, decimal.Zero
	case paid.LessThan(total):
		return StatusPartiallyPaid, paid
	default:
		return StatusFullyPaid, total
	}
}

// ResolveCheckout turns the status declared at checkout into the stored
// status and amount paid. Partial amounts are clamped into [0, total] and
// the status is derived again from the clamped value, so a partial payment
// of the full total becomes Fully Paid and a zero one becomes Unpaid.
func ResolveCheckout(declared string, amount *decimal.Decimal, total decimal.Decimal) (PaymentStatus, decimal.Decimal) {
	status, known := ParseStatus(declared)
	switch {
	case known && status == StatusFullyPaid:
		return DeriveStatus(total, total)
	case known && status == StatusUnpaid:
		return StatusUnpaid, decimal.Zero
	case amount == nil:
		return StatusUnpaid, decimal.Zero
	default:
		clamped := money.Clamp(money.Round2(*amount), decimal.Zero, total)
		return DeriveStatus(clamped, total)
	}
}

// Application is the outcome of adding a payment to a running balance.
type Application struct {
	Requested  decimal.Decimal
	Applied    decimal.Decimal
	Clamped    decimal.Decimal
	AmountPaid decimal.Decimal
	Status     PaymentStatus
}

// ApplyPayment adds amount to paid, capping the result at total. The part
// of the request that did not fit is reported as Clamped.
func ApplyPayment(paid, total, amount decimal.Decimal) (Application, error) {
	requested := money.Round2(amount)
	if !requested.IsPositive() {
		return Application{}, fmt.Errorf("payment amount %s: %w", amount, money.ErrInvalidAmount)
	}
	sum := money.Round2(paid.Add(requested))
	if sum.GreaterThan(total) {
		sum = total
	}
	status, stored := DeriveStatus(sum, total)
	applied := stored.Sub(money.Round2(paid))
	if applied.IsNegative() {
		applied = decimal.Zero
	}
	return Application{
		Requested:  requested,
		Applied:    applied,
		Clamped:    requested.Sub(applied),
		AmountPaid: stored,
		Status:     status,
	}, nil
}

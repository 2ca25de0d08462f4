package invoicing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/shared"
)

var (
	// ErrEmptyCart rejects a checkout without items.
	ErrEmptyCart = fmt.Errorf("invoicing: empty cart: %w", shared.ErrValidation)
	// ErrInvoiceNotFound is returned for unknown invoice numbers.
	ErrInvoiceNotFound = fmt.Errorf("invoicing: invoice %w", shared.ErrNotFound)
	// ErrConcurrencyConflict asks the caller to reread and resubmit.
	ErrConcurrencyConflict = fmt.Errorf("invoicing: %w", shared.ErrConflict)
)

// PaymentStatus is derived from amount paid against the invoice total.
type PaymentStatus string

const (
	StatusUnpaid        PaymentStatus = "Unpaid"
	StatusPartiallyPaid PaymentStatus = "Partially Paid"
	StatusFullyPaid     PaymentStatus = "Fully Paid"
)

// ParseStatus accepts the canonical labels case-insensitively plus a few
// shorthands. Unknown input yields "" and false.
func ParseStatus(s string) (PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unpaid":
		return StatusUnpaid, true
	case "partially paid", "partially_paid", "partial":
		return StatusPartiallyPaid, true
	case "fully paid", "fully_paid", "paid":
		return StatusFullyPaid, true
	default:
		return "", false
	}
}

// InvoiceType classifies what was sold.
type InvoiceType string

const (
	TypeProduct     InvoiceType = "product"
	TypeService     InvoiceType = "service"
	TypeCombination InvoiceType = "combination"
)

// Customer is the billed party, denormalised onto the invoice.
type Customer struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	GSTIN   string `json:"gstin,omitempty"`
}

// CartItem is one requested line before calculation.
type CartItem struct {
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	HSN             string          `json:"hsn,omitempty"`
	ItemType        InvoiceType     `json:"item_type,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	GSTRatePercent  decimal.Decimal `json:"gst_rate_percent"`
}

// Line is a persisted, calculated invoice row.
type Line struct {
	ID              int64           `json:"-"`
	Position        int             `json:"position"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	HSN             string          `json:"hsn"`
	ItemType        InvoiceType     `json:"item_type"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	GSTRatePercent  decimal.Decimal `json:"gst_rate_percent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxableAmount   decimal.Decimal `json:"taxable_amount"`
	GSTAmount       decimal.Decimal `json:"gst_amount"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// Invoice is the ledger header plus its lines.
type Invoice struct {
	ID                 int64           `json:"-"`
	Number             string          `json:"invoice_number"`
	Date               time.Time       `json:"date"`
	Customer           Customer        `json:"customer"`
	PaymentMethod      string          `json:"payment_method"`
	Type               InvoiceType     `json:"invoice_type"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TotalDiscount      decimal.Decimal `json:"total_discount"`
	DiscountedSubtotal decimal.Decimal `json:"discounted_subtotal"`
	TotalGST           decimal.Decimal `json:"total_gst"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	Status             PaymentStatus   `json:"payment_status"`
	Lines              []Line          `json:"items"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// BalanceDue is what remains to be paid.
func (inv *Invoice) BalanceDue() decimal.Decimal {
	return inv.TotalAmount.Sub(inv.AmountPaid)
}

// Payment is append-only evidence of money received.
type Payment struct {
	ID        int64           `json:"-"`
	InvoiceID int64           `json:"-"`
	Reference uuid.UUID       `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Notes     string          `json:"notes,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
}

// CheckoutInput is a cart ready to be invoiced.
type CheckoutInput struct {
	Date          time.Time
	Customer      Customer
	Items         []CartItem
	PaymentMethod string
	// Status is the declared payment status; AmountPaid is read for
	// partial payments only.
	Status     string
	AmountPaid *decimal.Decimal
	Type       InvoiceType
	// BeforeCommit runs inside the checkout transaction after the invoice
	// is stored. An error rolls the whole checkout back.
	BeforeCommit func(ctx context.Context, inv *Invoice) error
}

// PaymentInput is one payment request.
type PaymentInput struct {
	Amount         decimal.Decimal
	Method         string
	Notes          string
	PaidAt         time.Time
	IdempotencyKey string
}

// PaymentResult reports what a payment request actually did.
type PaymentResult struct {
	Invoice   *Invoice
	Payment   *Payment
	Requested decimal.Decimal
	Applied   decimal.Decimal
	// Clamped is the part of the request above the balance due.
	Clamped decimal.Decimal
}

// CorrectionInput edits an existing invoice. Nil fields are left alone;
// a non-nil Items replaces every line and recomputes the aggregates.
type CorrectionInput struct {
	Date          *time.Time
	Customer      *Customer
	PaymentMethod *string
	Items         []CartItem
}

// ListFilter narrows List.
type ListFilter struct {
	Status  PaymentStatus
	Search  string
	Page    int
	PerPage int
}

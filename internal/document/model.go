// Package document lays out and draws paginated invoice and quotation PDFs
// and keeps the rendered files on disk.
package document

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is wrapped by loaders when the source record no longer exists.
var ErrNotFound = errors.New("document: source not found")

// ErrRender wraps failures raised while drawing.
var ErrRender = errors.New("document: render failed")

// Kind selects the document family.
type Kind string

const (
	KindInvoice   Kind = "invoice"
	KindQuotation Kind = "quotation"
)

// Folder is the storage sub-directory for the kind.
func (k Kind) Folder() string {
	switch k {
	case KindQuotation:
		return "quotations"
	default:
		return "invoices"
	}
}

// Title is the human label printed on the document.
func (k Kind) Title() string {
	switch k {
	case KindQuotation:
		return "Quotation"
	default:
		return "Invoice"
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindInvoice || k == KindQuotation
}

// Company is the issuing business printed in the header block.
type Company struct {
	Name    string
	GSTIN   string
	Address []string
	Phone   string
}

// Party is the customer block.
type Party struct {
	Name    string
	Address string
	Phone   string
	Email   string
	GSTIN   string
}

// Row is one printed item line.
type Row struct {
	Code            string
	Name            string
	HSN             string
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	GSTRatePercent  decimal.Decimal
	GSTAmount       decimal.Decimal
	Total           decimal.Decimal
}

// Badge selects the colour of the payment status line.
type Badge int

const (
	BadgeNone Badge = iota
	BadgePaid
	BadgePartial
	BadgeUnpaid
)

// Summary is drawn once, below the final row on the last page.
type Summary struct {
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Taxable       decimal.Decimal
	GST           decimal.Decimal
	Total         decimal.Decimal
	AmountPaid    decimal.Decimal
	BalanceDue    decimal.Decimal
	Badge         Badge
	PaymentMethod string
}

// Document is the render-ready view of an invoice or quotation.
type Document struct {
	Kind     Kind
	Number   string
	Date     time.Time
	Company  Company
	Customer Party
	// Remarks are printed under the customer block on the first page.
	Remarks []string
	Rows    []Row
	Summary Summary
}

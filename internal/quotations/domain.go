// Package quotations issues priced quotations and converts accepted ones
// into invoices.
package quotations

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/shared"
)

var (
	// ErrNotFound is returned for unknown quotation numbers.
	ErrNotFound = fmt.Errorf("quotations: quotation %w", shared.ErrNotFound)
	// ErrEmptyQuotation rejects a quotation without items.
	ErrEmptyQuotation = fmt.Errorf("quotations: no items: %w", shared.ErrValidation)
	// ErrAlreadyConverted is returned when a quotation already produced an invoice.
	ErrAlreadyConverted = fmt.Errorf("quotations: already converted: %w", shared.ErrConflict)
)

// Customer is the enquiring party.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Item is a priced quotation row. Quotations carry no discount.
type Item struct {
	ID             int64                 `json:"-"`
	Position       int                   `json:"position"`
	Code           string                `json:"code"`
	Name           string                `json:"name"`
	ItemType       invoicing.InvoiceType `json:"item_type"`
	UnitPrice      decimal.Decimal       `json:"unit_price"`
	Quantity       int                   `json:"quantity"`
	GSTRatePercent decimal.Decimal       `json:"gst_rate_percent"`
	GSTAmount      decimal.Decimal       `json:"gst_amount"`
	LineTotal      decimal.Decimal       `json:"line_total"`
}

// Quotation is an offer that has not been billed.
type Quotation struct {
	ID          int64           `json:"-"`
	Number      string          `json:"quotation_number"`
	Date        time.Time       `json:"date"`
	Customer    Customer        `json:"customer"`
	AskedAbout  string          `json:"asked_about,omitempty"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TotalGST    decimal.Decimal `json:"total_gst"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	// ConvertedTo is the invoice number produced by Convert.
	ConvertedTo string    `json:"converted_to,omitempty"`
	Items       []Item    `json:"items"`
	CreatedAt   time.Time `json:"created_at"`
}

// ItemInput is one requested quotation row.
type ItemInput struct {
	Code           string
	Name           string
	ItemType       invoicing.InvoiceType
	UnitPrice      decimal.Decimal
	Quantity       int
	GSTRatePercent decimal.Decimal
}

// CreateInput describes a new quotation.
type CreateInput struct {
	Date       time.Time
	Customer   Customer
	AskedAbout string
	Items      []ItemInput
}

// ListFilter narrows List.
type ListFilter struct {
	Search  string
	Page    int
	PerPage int
}

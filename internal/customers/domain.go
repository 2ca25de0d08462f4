// Package customers keeps per-customer running balances that are settled
// outside of invoices.
package customers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/shared"
)

var (
	// ErrNotFound is returned for unknown customer codes.
	ErrNotFound = fmt.Errorf("customers: customer %w", shared.ErrNotFound)
	// ErrConcurrencyConflict asks the caller to retry a contended update.
	ErrConcurrencyConflict = fmt.Errorf("customers: %w", shared.ErrConflict)
)

// Customer is a balance record.
type Customer struct {
	ID                 int64                   `json:"-"`
	Code               string                  `json:"customer_code"`
	Date               time.Time               `json:"date"`
	Name               string                  `json:"name"`
	Phone              string                  `json:"phone,omitempty"`
	Address            string                  `json:"address,omitempty"`
	ProductDescription string                  `json:"product_description,omitempty"`
	PaymentMethod      string                  `json:"payment_method,omitempty"`
	TotalAmount        decimal.Decimal         `json:"total_amount"`
	AmountPaid         decimal.Decimal         `json:"amount_paid"`
	Status             invoicing.PaymentStatus `json:"payment_status"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// BalanceDue is what the customer still owes.
func (c *Customer) BalanceDue() decimal.Decimal {
	return c.TotalAmount.Sub(c.AmountPaid)
}

// Payment is one receipt against a customer balance.
type Payment struct {
	ID         int64           `json:"-"`
	CustomerID int64           `json:"-"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Notes      string          `json:"notes,omitempty"`
	PaidAt     time.Time       `json:"paid_at"`
}

// CreateInput describes a new customer balance.
type CreateInput struct {
	Date               time.Time
	Name               string
	Phone              string
	Address            string
	ProductDescription string
	PaymentMethod      string
	TotalAmount        decimal.Decimal
	AmountPaid         decimal.Decimal
}

// UpdateInput edits a customer. Nil fields are left alone.
type UpdateInput struct {
	Name               *string
	Phone              *string
	Address            *string
	ProductDescription *string
	PaymentMethod      *string
	TotalAmount        *decimal.Decimal
}

// PaymentInput is one payment request.
type PaymentInput struct {
	Amount decimal.Decimal
	Method string
	Notes  string
	PaidAt time.Time
}

// PaymentResult reports what a payment request did.
type PaymentResult struct {
	Customer  *Customer
	Payment   *Payment
	Requested decimal.Decimal
	Applied   decimal.Decimal
	Clamped   decimal.Decimal
}

// ListFilter narrows List. Search matches code, name and phone.
type ListFilter struct {
	Search  string
	Page    int
	PerPage int
}

package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/money"
	"github.com/sunmax/ledger/internal/shared"
)

// DefaultHSN is printed for lines without a tax classification code.
const DefaultHSN = "N/A"

// Assemble prices a cart and resolves the checkout payment status. The
// invoice number is left empty for the numbering step.
func Assemble(in CheckoutInput) (*Invoice, error) {
	lines, totals, err := BuildLines(in.Items)
	if err != nil {
		return nil, err
	}
	status, paid := ResolveCheckout(in.Status, in.AmountPaid, totals.TotalAmount)

	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	invType := in.Type
	if invType == "" {
		invType = inferType(lines)
	}
	return &Invoice{
		Date:               date,
		Customer:           in.Customer,
		PaymentMethod:      strings.TrimSpace(in.PaymentMethod),
		Type:               invType,
		Subtotal:           totals.Subtotal,
		TotalDiscount:      totals.TotalDiscount,
		DiscountedSubtotal: totals.DiscountedSubtotal,
		TotalGST:           totals.TotalGST,
		TotalAmount:        totals.TotalAmount,
		AmountPaid:         paid,
		Status:             status,
		Lines:              lines,
	}, nil
}

// BuildLines runs every cart item through the calculator and sums the
// rounded results.
func BuildLines(items []CartItem) ([]Line, money.Totals, error) {
	var totals money.Totals
	if len(items) == 0 {
		return nil, totals, ErrEmptyCart
	}
	lines := make([]Line, 0, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, money.Totals{}, fmt.Errorf("%w: item %d has no name", shared.ErrValidation, i+1)
		}
		res, err := money.ComputeLine(item.UnitPrice, item.Quantity, item.DiscountPercent, item.GSTRatePercent)
		if err != nil {
			return nil, money.Totals{}, fmt.Errorf("invoicing: item %d: %w", i+1, err)
		}
		totals.Add(res)

		hsn := strings.TrimSpace(item.HSN)
		if hsn == "" {
			hsn = DefaultHSN
		}
		itemType := item.ItemType
		if itemType == "" {
			itemType = TypeProduct
		}
		lines = append(lines, Line{
			Position:        i + 1,
			Code:            strings.TrimSpace(item.Code),
			Name:            strings.TrimSpace(item.Name),
			HSN:             hsn,
			ItemType:        itemType,
			UnitPrice:       item.UnitPrice,
			Quantity:        item.Quantity,
			DiscountPercent: money.ClampPercent(item.DiscountPercent, decimal.NewFromInt(100)),
			GSTRatePercent:  money.ClampPercent(item.GSTRatePercent, decimal.Zero),
			Subtotal:        res.Subtotal,
			DiscountAmount:  res.DiscountAmount,
			TaxableAmount:   res.TaxableAmount,
			GSTAmount:       res.GSTAmount,
			LineTotal:       res.LineTotal,
		})
	}
	return lines, totals, nil
}

func inferType(lines []Line) InvoiceType {
	var products, services int
	for _, l := range lines {
		switch l.ItemType {
		case TypeService:
			services++
		default:
			products++
		}
	}
	switch {
	case services == 0:
		return TypeProduct
	case products == 0:
		return TypeService
	default:
		return TypeCombination
	}
}

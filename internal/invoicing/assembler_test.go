package invoicing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunmax/ledger/internal/money"
	"github.com/sunmax/ledger/internal/shared"
)

func panelItem() CartItem {
	return CartItem{
		Code:            "SUN001",
		Name:            "Mono PERC Panel 540W",
		UnitPrice:       d("1000"),
		Quantity:        2,
		DiscountPercent: d("10"),
		GSTRatePercent:  d("18"),
	}
}

func TestAssembleSingleLine(t *testing.T) {
	inv, err := Assemble(CheckoutInput{
		Customer: Customer{Name: "Asha Traders"},
		Items:    []CartItem{panelItem()},
		Status:   "Unpaid",
	})
	require.NoError(t, err)
	require.Len(t, inv.Lines, 1)

	line := inv.Lines[0]
	assert.True(t, line.DiscountAmount.Equal(d("200")))
	assert.True(t, line.TaxableAmount.Equal(d("1800")))
	assert.True(t, line.GSTAmount.Equal(d("324")))
	assert.True(t, line.LineTotal.Equal(d("2124")))
	assert.Equal(t, DefaultHSN, line.HSN)
	assert.Equal(t, TypeProduct, line.ItemType)

	assert.True(t, inv.Subtotal.Equal(d("2000")))
	assert.True(t, inv.TotalDiscount.Equal(d("200")))
	assert.True(t, inv.DiscountedSubtotal.Equal(d("1800")))
	assert.True(t, inv.TotalGST.Equal(d("324")))
	assert.True(t, inv.TotalAmount.Equal(d("2124")))
	assert.Equal(t, StatusUnpaid, inv.Status)
	assert.True(t, inv.AmountPaid.IsZero())
}

func TestAssembleTotalsAreSumOfRoundedLines(t *testing.T) {
	items := []CartItem{
		{Name: "Cable 4mm", UnitPrice: d("33.335"), Quantity: 3, GSTRatePercent: d("18")},
		{Name: "MC4 connector", UnitPrice: d("12.49"), Quantity: 7, DiscountPercent: d("12.5"), GSTRatePercent: d("12")},
		{Name: "Installation", ItemType: TypeService, UnitPrice: d("1499.99"), Quantity: 1, GSTRatePercent: d("18")},
	}
	inv, err := Assemble(CheckoutInput{Customer: Customer{Name: "Ravi"}, Items: items})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, l := range inv.Lines {
		assert.True(t, l.LineTotal.Equal(l.TaxableAmount.Add(l.GSTAmount)))
		assert.True(t, l.LineTotal.Equal(money.Round2(l.LineTotal)))
		sum = sum.Add(l.LineTotal)
	}
	assert.True(t, inv.TotalAmount.Equal(sum), "total %s sum %s", inv.TotalAmount, sum)
	assert.Equal(t, TypeCombination, inv.Type)
}

func TestAssembleRejectsEmptyCart(t *testing.T) {
	_, err := Assemble(CheckoutInput{Customer: Customer{Name: "Ravi"}})
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestAssemblePropagatesInvalidAmount(t *testing.T) {
	item := panelItem()
	item.Quantity = 0
	_, err := Assemble(CheckoutInput{Customer: Customer{Name: "Ravi"}, Items: []CartItem{item}})
	require.ErrorIs(t, err, money.ErrInvalidAmount)

	item = panelItem()
	item.UnitPrice = d("-1")
	_, err = Assemble(CheckoutInput{Customer: Customer{Name: "Ravi"}, Items: []CartItem{item}})
	require.ErrorIs(t, err, money.ErrInvalidAmount)
}

func TestAssembleDemotesZeroPartialPayment(t *testing.T) {
	inv, err := Assemble(CheckoutInput{
		Customer:   Customer{Name: "Ravi"},
		Items:      []CartItem{panelItem()},
		Status:     "Partially Paid",
		AmountPaid: dp("0"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusUnpaid, inv.Status)
	assert.True(t, inv.AmountPaid.IsZero())
}

func TestAssembleInfersServiceType(t *testing.T) {
	inv, err := Assemble(CheckoutInput{
		Customer: Customer{Name: "Ravi"},
		Items:    []CartItem{{Name: "AMC visit", ItemType: TypeService, UnitPrice: d("500"), Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, TypeService, inv.Type)
}

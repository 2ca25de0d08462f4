package invoicing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunmax/ledger/internal/money"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		paid, total string
		status      PaymentStatus
		stored      string
	}{
		{"0", "1000", StatusUnpaid, "0"},
		{"-5", "1000", StatusUnpaid, "0"},
		{"0.01", "1000", StatusPartiallyPaid, "0.01"},
		{"999.99", "1000", StatusPartiallyPaid, "999.99"},
		{"1000", "1000", StatusFullyPaid, "1000"},
		{"1000.004", "1000", StatusFullyPaid, "1000"},
		{"1500", "1000", StatusFullyPaid, "1000"},
		{"0", "0", StatusUnpaid, "0"},
	}
	for _, tc := range cases {
		status, stored := DeriveStatus(d(tc.paid), d(tc.total))
		assert.Equal(t, tc.status, status, "paid=%s total=%s", tc.paid, tc.total)
		assert.True(t, d(tc.stored).Equal(stored), "paid=%s total=%s stored=%s", tc.paid, tc.total, stored)

		again, storedAgain := DeriveStatus(stored, d(tc.total))
		assert.Equal(t, status, again)
		assert.True(t, stored.Equal(storedAgain))
	}
}

func TestResolveCheckout(t *testing.T) {
	total := d("2124")

	status, paid := ResolveCheckout("Fully Paid", nil, total)
	assert.Equal(t, StatusFullyPaid, status)
	assert.True(t, paid.Equal(total))

	status, paid = ResolveCheckout("Unpaid", dp("500"), total)
	assert.Equal(t, StatusUnpaid, status)
	assert.True(t, paid.IsZero())

	status, paid = ResolveCheckout("Partially Paid", dp("500"), total)
	assert.Equal(t, StatusPartiallyPaid, status)
	assert.True(t, paid.Equal(d("500")))

	// A declared partial payment of zero is demoted.
	status, paid = ResolveCheckout("Partially Paid", dp("0"), total)
	assert.Equal(t, StatusUnpaid, status)
	assert.True(t, paid.IsZero())

	// A partial payment covering the total is promoted and clamped.
	status, paid = ResolveCheckout("partial", dp("5000"), total)
	assert.Equal(t, StatusFullyPaid, status)
	assert.True(t, paid.Equal(total))

	status, paid = ResolveCheckout("Partially Paid", dp("-20"), total)
	assert.Equal(t, StatusUnpaid, status)
	assert.True(t, paid.IsZero())

	status, _ = ResolveCheckout("Partially Paid", nil, total)
	assert.Equal(t, StatusUnpaid, status)

	status, _ = ResolveCheckout("Fully Paid", nil, decimal.Zero)
	assert.Equal(t, StatusUnpaid, status)
}

func TestApplyPaymentSequenceClampsOverpayment(t *testing.T) {
	total := d("1000")

	first, err := ApplyPayment(decimal.Zero, total, d("300"))
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyPaid, first.Status)
	assert.True(t, first.AmountPaid.Equal(d("300")))
	assert.True(t, first.Applied.Equal(d("300")))
	assert.True(t, first.Clamped.IsZero())

	second, err := ApplyPayment(first.AmountPaid, total, d("800"))
	require.NoError(t, err)
	assert.Equal(t, StatusFullyPaid, second.Status)
	assert.True(t, second.AmountPaid.Equal(total))
	assert.True(t, second.Requested.Equal(d("800")))
	assert.True(t, second.Applied.Equal(d("700")))
	assert.True(t, second.Clamped.Equal(d("100")))
}

func TestApplyPaymentSettlesExactTotal(t *testing.T) {
	app, err := ApplyPayment(decimal.Zero, d("2124"), d("2124"))
	require.NoError(t, err)
	assert.Equal(t, StatusFullyPaid, app.Status)
	assert.True(t, money.BalanceDue(d("2124"), app.AmountPaid).IsZero())
}

func TestApplyPaymentOnSettledInvoiceAppliesNothing(t *testing.T) {
	app, err := ApplyPayment(d("1000"), d("1000"), d("50"))
	require.NoError(t, err)
	assert.True(t, app.Applied.IsZero())
	assert.True(t, app.Clamped.Equal(d("50")))
	assert.Equal(t, StatusFullyPaid, app.Status)
}

func TestApplyPaymentRejectsNonPositive(t *testing.T) {
	for _, amount := range []string{"0", "-1", "0.004"} {
		_, err := ApplyPayment(decimal.Zero, d("100"), d(amount))
		assert.ErrorIs(t, err, money.ErrInvalidAmount, amount)
	}
}

func TestParseStatus(t *testing.T) {
	status, ok := ParseStatus(" fully paid ")
	assert.True(t, ok)
	assert.Equal(t, StatusFullyPaid, status)

	_, ok = ParseStatus("refunded")
	assert.False(t, ok)
}

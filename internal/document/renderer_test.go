package document

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestRenderer() *Renderer {
	return NewRenderer(RendererConfig{PageCapacity: 20, DisableCompression: true})
}

func createTestDocument(kind Kind, rows int) Document {
	doc := Document{
		Kind:   kind,
		Number: "INV07",
		Date:   time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		Company: Company{
			Name:    "Sunmax Renewables",
			GSTIN:   "37FUWPS9742A1ZT",
			Address: []string{"B.V.Nagar, NGO Colony", "Nellore 524004"},
			Phone:   "9381488225",
		},
		Customer: Party{Name: "Ravi Kumar", Phone: "9000000000", Address: "Kavali"},
		Summary: Summary{
			Subtotal:      decimal.NewFromInt(2000),
			Discount:      decimal.NewFromInt(200),
			Taxable:       decimal.NewFromInt(1800),
			GST:           decimal.NewFromInt(324),
			Total:         decimal.NewFromInt(2124),
			AmountPaid:    decimal.NewFromInt(300),
			BalanceDue:    decimal.NewFromInt(1824),
			Badge:         BadgePartial,
			PaymentMethod: "UPI",
		},
	}
	if kind == KindQuotation {
		doc.Number = "QN004"
	}
	for i := 0; i < rows; i++ {
		doc.Rows = append(doc.Rows, Row{
			Code:           fmt.Sprintf("SUN%03d", i+1),
			Name:           fmt.Sprintf("Solar Panel %d", i+1),
			HSN:            "8541",
			Quantity:       1,
			UnitPrice:      decimal.NewFromInt(100),
			GSTRatePercent: decimal.NewFromInt(18),
			GSTAmount:      decimal.NewFromInt(18),
			Total:          decimal.NewFromInt(118),
		})
	}
	return doc
}

func shown(pdf []byte, text string) int {
	return strings.Count(string(pdf), "("+text+") Tj")
}

// ---------------------------------------------------------------------------
// Render
// ---------------------------------------------------------------------------

func TestRenderPaginatesRowsAcrossPages(t *testing.T) {
	out, err := newTestRenderer().Render(createTestDocument(KindInvoice, 45))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "%PDF-"))

	assert.Equal(t, 3, strings.Count(string(out), "<</Type /Page\n"))
	assert.Equal(t, 1, shown(out, "Page 1 of 3"))
	assert.Equal(t, 1, shown(out, "Page 3 of 3"))
	assert.Equal(t, 2, shown(out, ContinuedNotice))
	assert.Equal(t, 2, shown(out, "Invoice INV07 - Continued"))
	assert.Equal(t, 1, shown(out, "Customer Details:"))
	assert.Equal(t, 3, shown(out, "Invoice Items"))
	assert.Equal(t, 1, shown(out, "Balance Due:"))
	assert.Equal(t, 1, shown(out, "Solar Panel 45"))
	assert.Equal(t, 1, shown(out, "Solar Panel 1"))
	assert.Equal(t, 1, shown(out, "Payment Status: PARTIALLY \\(Rs.300.00\\)"))
	assert.Equal(t, 1, shown(out, "Rs.2,124.00"))
	assert.Equal(t, 1, shown(out, "Rs.1,824.00"))
	assert.Zero(t, shown(out, "Rs.2124.00"))
}

func TestRenderSinglePageHasNoContinuation(t *testing.T) {
	out, err := newTestRenderer().Render(createTestDocument(KindInvoice, 0))
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(string(out), "<</Type /Page\n"))
	assert.Equal(t, 1, shown(out, "Page 1 of 1"))
	assert.Zero(t, shown(out, ContinuedNotice))
	assert.Equal(t, 1, shown(out, "This is a computer-generated invoice and does not require a signature."))
	assert.Equal(t, 1, shown(out, "Total Amount:"))
}

func TestRenderQuotationLayout(t *testing.T) {
	out, err := newTestRenderer().Render(createTestDocument(KindQuotation, 21))
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(string(out), "<</Type /Page\n"))
	assert.Equal(t, 1, shown(out, "Quotation Number:"))
	assert.Equal(t, 1, shown(out, "Quotation QN004 - Continued"))
	assert.Equal(t, 1, shown(out, "Quotation Validity: 15 days from the date of issue"))
	assert.Zero(t, shown(out, "Balance Due:"))
	assert.Zero(t, shown(out, "HSN"))
}

func TestRenderTruncatesLongItemNames(t *testing.T) {
	doc := createTestDocument(KindInvoice, 1)
	doc.Rows[0].Name = "Monocrystalline Bifacial Half Cut Solar Module 540W"
	out, err := newTestRenderer().Render(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, shown(out, "Monocrystalline Bifacial Half Cu..."))
}

func TestRenderedDocumentExceedsRegenerationThreshold(t *testing.T) {
	out, err := NewRenderer(RendererConfig{}).Render(createTestDocument(KindInvoice, 20))
	require.NoError(t, err)
	assert.Greater(t, len(out), 1000)
}

// ---------------------------------------------------------------------------
// Failure handling
// ---------------------------------------------------------------------------

func TestRenderRejectsUnknownKind(t *testing.T) {
	doc := createTestDocument(Kind("memo"), 1)
	_, err := newTestRenderer().Render(doc)
	require.ErrorIs(t, err, ErrRender)
}

func TestRenderRecoversFromPanics(t *testing.T) {
	r := newTestRenderer()
	r.onPage = func(p Page) {
		if p.Number == 2 {
			panic("font table exhausted")
		}
	}
	_, err := r.Render(createTestDocument(KindInvoice, 30))
	require.ErrorIs(t, err, ErrRender)
	assert.Contains(t, err.Error(), "font table exhausted")
}

func TestRenderOrFallbackProducesErrorPage(t *testing.T) {
	r := newTestRenderer()
	r.onPage = func(Page) { panic("boom") }

	out, fallback, err := r.RenderOrFallback(createTestDocument(KindInvoice, 5))
	require.NoError(t, err)
	assert.True(t, fallback)
	require.NotEmpty(t, out)
	assert.True(t, strings.HasPrefix(string(out), "%PDF-"))
	assert.Equal(t, 1, shown(out, "Error Generating Invoice PDF"))
	assert.Equal(t, 1, shown(out, "Invoice Number: INV07"))
	assert.Contains(t, string(out), "boom")
}

func TestRenderOrFallbackPassesThroughSuccess(t *testing.T) {
	out, fallback, err := newTestRenderer().RenderOrFallback(createTestDocument(KindInvoice, 2))
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Zero(t, shown(out, "Error Generating Invoice PDF"))
}

package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/money"
)

const (
	marginX     = 40.0
	rowHeight   = 17.0
	headerTop   = 40.0
	boxTop      = 110.0
	boxHeight   = 90.0
	footerInset = 30.0
	maxRemarks  = 3
	maxNameLen  = 35
)

type rgb struct{ r, g, b int }

var (
	colorBlack     = rgb{0, 0, 0}
	colorWhite     = rgb{255, 255, 255}
	colorLightGray = rgb{230, 230, 230}
	colorHeader    = rgb{128, 0, 128}
	colorGreen     = rgb{0, 128, 0}
	colorOrange    = rgb{255, 165, 0}
	colorRed       = rgb{255, 0, 0}
)

type column struct {
	title string
	x     float64
	value func(Row) string
}

var invoiceColumns = []column{
	{"Item", 45, func(r Row) string { return truncate(r.Name, maxNameLen) }},
	{"HSN", 225, func(r Row) string { return r.HSN }},
	{"Qty", 285, func(r Row) string { return fmt.Sprintf("%d", r.Quantity) }},
	{"Price", 335, func(r Row) string { return money.Format(r.UnitPrice) }},
	{"Discount", 395, func(r Row) string { return money.FormatPercent(r.DiscountPercent) }},
	{"GST", 445, func(r Row) string {
		return fmt.Sprintf("%s (%s)", money.FormatPercent(r.GSTRatePercent), money.Format(r.GSTAmount))
	}},
	{"Total", 510, func(r Row) string { return money.Format(r.Total) }},
}

var quotationColumns = []column{
	{"Item", 45, func(r Row) string { return truncate(r.Name, maxNameLen) }},
	{"Quantity", 265, func(r Row) string { return fmt.Sprintf("%d", r.Quantity) }},
	{"Price", 335, func(r Row) string { return money.Format(r.UnitPrice) }},
	{"GST", 410, func(r Row) string {
		return fmt.Sprintf("%s (%s)", money.FormatPercent(r.GSTRatePercent), money.Format(r.GSTAmount))
	}},
	{"Total", 505, func(r Row) string { return money.Format(r.Total) }},
}

// RendererConfig tunes the PDF output.
type RendererConfig struct {
	PageCapacity       int
	DisableCompression bool
}

// Renderer draws a Document page plan with gofpdf.
type Renderer struct {
	capacity int
	compress bool
	onPage   func(Page)
}

// NewRenderer constructs a Renderer.
func NewRenderer(cfg RendererConfig) *Renderer {
	capacity := cfg.PageCapacity
	if capacity <= 0 {
		capacity = DefaultPageCapacity
	}
	return &Renderer{capacity: capacity, compress: !cfg.DisableCompression}
}

// Capacity reports the rows per page.
func (r *Renderer) Capacity() int {
	return r.capacity
}

// Render draws doc and returns the PDF bytes. Panics raised by the drawing
// backend are converted into ErrRender.
func (r *Renderer) Render(doc Document) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrRender, p)
		}
	}()
	if !doc.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrRender, doc.Kind)
	}

	pdf := r.newPDF(fmt.Sprintf("%s %s", doc.Kind.Title(), doc.Number))
	p := painter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	for _, page := range Plan(doc.Kind, len(doc.Rows), r.capacity).Pages {
		if r.onPage != nil {
			r.onPage(page)
		}
		p.page(doc, page)
		if pdf.Err() {
			return nil, fmt.Errorf("%w: page %d: %v", ErrRender, page.Number, pdf.Error())
		}
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// RenderOrFallback renders doc and, when that fails, a single error page
// naming the document and the failure. fallback reports which one was
// produced; err is only set when even the error page could not be drawn.
func (r *Renderer) RenderOrFallback(doc Document) (data []byte, fallback bool, err error) {
	data, renderErr := r.Render(doc)
	if renderErr == nil {
		return data, false, nil
	}
	data, err = r.ErrorPage(doc.Kind, doc.Number, renderErr)
	if err != nil {
		return nil, true, fmt.Errorf("%w (error page: %v)", renderErr, err)
	}
	return data, true, nil
}

// ErrorPage draws a minimal one page PDF describing a render failure.
func (r *Renderer) ErrorPage(kind Kind, number string, cause error) ([]byte, error) {
	pdf := r.newPDF(fmt.Sprintf("%s %s - Error", kind.Title(), number))
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Text(50, 100, tr(fmt.Sprintf("Error Generating %s PDF", kind.Title())))
	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(50, 150, tr(fmt.Sprintf("%s Number: %s", kind.Title(), number)))
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	pdf.Text(50, 180, tr("Error: "+truncate(msg, 80)))
	pdf.SetFont("Helvetica", "", 9)
	pdf.Text(50, 210, tr("The document will be generated again the next time it is requested."))
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Renderer) newPDF(title string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(r.compress)
	pdf.SetTitle(title, true)
	pdf.SetCreator("sunmax ledger", true)
	return pdf
}

type painter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (p painter) page(doc Document, page Page) {
	p.pdf.AddPage()
	w, h := p.pdf.GetPageSize()

	var y float64
	if page.Header {
		y = p.header(doc, w)
	} else {
		y = p.continuation(doc)
	}
	y = p.table(doc, page, w, y)
	if page.Summary {
		p.summary(doc, w, y)
	}

	p.text(colorBlack, "Helvetica", "", 8, marginX, h-footerInset, page.Footer)
	p.text(colorBlack, "Helvetica", "", 8, w-100, h-footerInset, page.Label())
}

func (p painter) header(doc Document, w float64) float64 {
	title := doc.Kind.Title()
	p.text(colorBlack, "Helvetica", "B", 18, marginX, headerTop+10, doc.Company.Name)

	labels := []string{title + " Number:", "Date:", "GST Number:"}
	values := []string{doc.Number, doc.Date.Format("02-01-2006"), doc.Company.GSTIN}
	for i := range labels {
		y := headerTop + float64(i)*20
		p.text(colorBlack, "Helvetica", "B", 10, w-200, y, labels[i])
		p.text(colorBlack, "Helvetica", "", 10, w-100, y, values[i])
	}

	boxWidth := (w-2*marginX)/2 - 5
	rightX := marginX + (w-2*marginX)/2 + 5
	p.box(marginX, boxTop, boxWidth, boxHeight)
	p.box(rightX, boxTop, boxWidth, boxHeight)

	company := append([]string{doc.Company.Name}, doc.Company.Address...)
	if doc.Company.Phone != "" {
		company = append(company, "Phone: "+doc.Company.Phone)
	}
	p.block(marginX+10, boxTop, "Company Details:", company)

	customer := []string{"Name: " + doc.Customer.Name}
	if doc.Customer.Address != "" {
		customer = append(customer, "Address: "+doc.Customer.Address)
	}
	if doc.Customer.Phone != "" {
		customer = append(customer, "Phone: "+doc.Customer.Phone)
	}
	if doc.Customer.Email != "" {
		customer = append(customer, "Email: "+doc.Customer.Email)
	}
	if doc.Customer.GSTIN != "" {
		customer = append(customer, "GST: "+doc.Customer.GSTIN)
	}
	p.block(rightX+10, boxTop, "Customer Details:", customer)

	y := boxTop + boxHeight + 18
	for i, line := range doc.Remarks {
		if i == maxRemarks {
			break
		}
		p.text(colorBlack, "Helvetica", "", 10, marginX, y, truncate(line, 100))
		y += 14
	}
	return y + 10
}

func (p painter) block(x, top float64, title string, lines []string) {
	p.text(colorBlack, "Helvetica", "B", 10, x, top+18, title)
	y := top + 32
	for _, line := range lines {
		if y > top+boxHeight-4 {
			return
		}
		p.text(colorBlack, "Helvetica", "", 8, x, y, truncate(line, 48))
		y += 11
	}
}

func (p painter) continuation(doc Document) float64 {
	p.text(colorBlack, "Helvetica", "B", 14, marginX, 60, fmt.Sprintf("%s %s - Continued", doc.Kind.Title(), doc.Number))
	return 90
}

func (p painter) table(doc Document, page Page, w, y float64) float64 {
	cols := invoiceColumns
	if doc.Kind == KindQuotation {
		cols = quotationColumns
	}

	p.text(colorBlack, "Helvetica", "B", 12, marginX, y, doc.Kind.Title()+" Items")
	y += 8

	p.fill(colorHeader)
	p.pdf.Rect(marginX, y, w-2*marginX, rowHeight, "F")
	for _, c := range cols {
		p.text(colorWhite, "Helvetica", "B", 9, c.x, y+12, c.title)
	}
	y += rowHeight

	for i := page.Start; i < page.End; i++ {
		if (i-page.Start)%2 == 0 {
			p.fill(colorWhite)
		} else {
			p.fill(colorLightGray)
		}
		p.pdf.Rect(marginX, y, w-2*marginX, rowHeight, "F")
		row := doc.Rows[i]
		for _, c := range cols {
			p.text(colorBlack, "Helvetica", "", 8, c.x, y+12, c.value(row))
		}
		y += rowHeight
	}
	return y
}

type summaryLine struct {
	label string
	value decimal.Decimal
	bold  bool
	color rgb
}

func (p painter) summary(doc Document, w, y float64) {
	s := doc.Summary
	var lines []summaryLine
	if doc.Kind == KindQuotation {
		lines = []summaryLine{
			{"Subtotal:", s.Subtotal, false, colorBlack},
			{"GST Amount:", s.GST, false, colorBlack},
			{"Total Amount:", s.Total, true, colorBlack},
		}
	} else {
		due := colorGreen
		if s.BalanceDue.IsPositive() {
			due = colorRed
		}
		lines = []summaryLine{
			{"Subtotal:", s.Subtotal, false, colorBlack},
			{"Discount:", s.Discount, false, colorBlack},
			{"Taxable Amount:", s.Taxable, false, colorBlack},
			{"GST Amount:", s.GST, false, colorBlack},
			{"Total Amount:", s.Total, true, colorBlack},
			{"Amount Paid:", s.AmountPaid, false, colorBlack},
			{"Balance Due:", s.BalanceDue, true, due},
		}
	}

	top := y + 15
	height := float64(len(lines))*16 + 12
	p.box(w-250, top, 210, height)
	for i, line := range lines {
		ly := top + 18 + float64(i)*16
		style := ""
		if line.bold {
			style = "B"
		}
		p.text(colorBlack, "Helvetica", "B", 10, w-240, ly, line.label)
		p.text(line.color, "Helvetica", style, 10, w-140, ly, money.Format(line.value))
	}

	if doc.Kind == KindQuotation {
		note := top + height + 20
		p.text(colorBlack, "Helvetica", "I", 9, marginX, note, "Note: This is just a quotation, not an invoice. Prices may vary at the time of purchase.")
		p.text(colorBlack, "Helvetica", "", 9, marginX, note+14, "Quotation Validity: 15 days from the date of issue")
		return
	}

	status, color := badgeText(s)
	p.text(color, "Helvetica", "B", 11, marginX, top+18, "Payment Status: "+status)
	if s.PaymentMethod != "" {
		p.text(colorBlack, "Helvetica", "", 10, marginX, top+36, "Payment Method: "+s.PaymentMethod)
	}
}

func badgeText(s Summary) (string, rgb) {
	switch s.Badge {
	case BadgePaid:
		return "PAID", colorGreen
	case BadgePartial:
		return fmt.Sprintf("PARTIALLY (%s)", money.Format(s.AmountPaid)), colorOrange
	default:
		return "UNPAID", colorRed
	}
}

func (p painter) box(x, y, w, h float64) {
	p.fill(colorLightGray)
	p.pdf.SetDrawColor(colorBlack.r, colorBlack.g, colorBlack.b)
	p.pdf.Rect(x, y, w, h, "FD")
}

func (p painter) fill(c rgb) {
	p.pdf.SetFillColor(c.r, c.g, c.b)
}

func (p painter) text(c rgb, family, style string, size, x, y float64, s string) {
	p.pdf.SetTextColor(c.r, c.g, c.b)
	p.pdf.SetFont(family, style, size)
	p.pdf.Text(x, y, p.tr(s))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

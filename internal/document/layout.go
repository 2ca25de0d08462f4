package document

import "fmt"

// DefaultPageCapacity is the number of item rows printed per page.
const DefaultPageCapacity = 20

// ContinuedNotice replaces the closing footer on every page but the last.
const ContinuedNotice = "Continued on next page..."

// Page is the plan for one physical page.
type Page struct {
	Number int
	Total  int
	// Rows [Start, End) of the document are printed on this page.
	Start int
	End   int
	// Header draws the company, number and customer blocks.
	Header bool
	// Continuation draws the "<Title> <number> - Continued" banner.
	Continuation bool
	Summary      bool
	Footer       string
}

// Label is the page number footer.
func (p Page) Label() string {
	return fmt.Sprintf("Page %d of %d", p.Number, p.Total)
}

// Last reports whether p is the final page.
func (p Page) Last() bool {
	return p.Number == p.Total
}

// Layout is the full page plan for a document.
type Layout struct {
	Capacity int
	Pages    []Page
}

// PageCount returns ceil(rows/capacity) with a floor of one page.
func PageCount(rows, capacity int) int {
	if capacity <= 0 {
		capacity = DefaultPageCapacity
	}
	if rows <= 0 {
		return 1
	}
	return (rows + capacity - 1) / capacity
}

// Plan splits rows into pages of capacity rows each.
func Plan(kind Kind, rows, capacity int) Layout {
	if capacity <= 0 {
		capacity = DefaultPageCapacity
	}
	if rows < 0 {
		rows = 0
	}
	total := PageCount(rows, capacity)
	pages := make([]Page, 0, total)
	for i := 0; i < total; i++ {
		start := i * capacity
		end := min(start+capacity, rows)
		p := Page{
			Number:       i + 1,
			Total:        total,
			Start:        start,
			End:          end,
			Header:       i == 0,
			Continuation: i > 0,
			Summary:      i == total-1,
			Footer:       ContinuedNotice,
		}
		if p.Summary {
			p.Footer = closingNote(kind)
		}
		pages = append(pages, p)
	}
	return Layout{Capacity: capacity, Pages: pages}
}

func closingNote(kind Kind) string {
	switch kind {
	case KindQuotation:
		return "This is a computer-generated quotation and does not require a signature."
	default:
		return "This is a computer-generated invoice and does not require a signature."
	}
}

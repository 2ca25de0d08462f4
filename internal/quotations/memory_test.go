package quotations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/numbering"
)

type memoryRepo struct {
	mu         sync.Mutex
	quotations map[string]*Quotation
	nextID     int64
	// seeded is returned by LastCode while the store is empty.
	seeded string
	// claimErr fails the next MarkConverted.
	claimErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quotations: make(map[string]*Quotation)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) LastCode(_ context.Context, _ numbering.Scheme) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *Quotation
	for _, q := range r.quotations {
		if last == nil || q.ID > last.ID {
			last = q
		}
	}
	if last == nil {
		return r.seeded, nil
	}
	return last.Number, nil
}

func (r *memoryRepo) Create(_ context.Context, q *Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.quotations[q.Number]; taken {
		return fmt.Errorf("quotation %s: %w", q.Number, numbering.ErrConflict)
	}
	r.nextID++
	q.ID = r.nextID
	cp := *q
	r.quotations[q.Number] = &cp
	return nil
}

func (r *memoryRepo) InsertItems(_ context.Context, quotationID int64, items []Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.quotations {
		if q.ID == quotationID {
			q.Items = append([]Item(nil), items...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepo) Get(_ context.Context, number string) (*Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotations[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, number)
	}
	cp := *q
	cp.Items = append([]Item(nil), q.Items...)
	return &cp, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Quotation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Quotation
	needle := strings.ToLower(filter.Search)
	for _, q := range r.quotations {
		if needle != "" && !strings.Contains(strings.ToLower(q.Number+" "+q.Customer.Name+" "+q.AskedAbout), needle) {
			continue
		}
		matched = append(matched, *q)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	start := min((filter.Page-1)*filter.PerPage, total)
	end := min(start+filter.PerPage, total)
	return matched[start:end], total, nil
}

func (r *memoryRepo) MarkConverted(_ context.Context, quotationID int64, invoiceNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claimErr; err != nil {
		r.claimErr = nil
		return err
	}
	for _, q := range r.quotations {
		if q.ID == quotationID {
			if q.ConvertedTo != "" {
				return ErrAlreadyConverted
			}
			q.ConvertedTo = invoiceNumber
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepo) Delete(_ context.Context, quotationID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for number, q := range r.quotations {
		if q.ID == quotationID {
			delete(r.quotations, number)
			return nil
		}
	}
	return ErrNotFound
}

type fakeInvoices struct {
	mu     sync.Mutex
	inputs []invoicing.CheckoutInput
	err    error
	// gate holds every checkout until all expected callers have arrived.
	gate *sync.WaitGroup
}

func (f *fakeInvoices) Checkout(ctx context.Context, in invoicing.CheckoutInput) (*invoicing.Invoice, error) {
	if f.gate != nil {
		f.gate.Done()
		f.gate.Wait()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	lines, totals, err := invoicing.BuildLines(in.Items)
	if err != nil {
		return nil, err
	}
	inv := &invoicing.Invoice{
		Number:        fmt.Sprintf("INV%02d", len(f.inputs)+1),
		Customer:      in.Customer,
		PaymentMethod: in.PaymentMethod,
		Type:          in.Type,
		Lines:         lines,
		TotalAmount:   totals.TotalAmount,
		Status:        invoicing.StatusUnpaid,
	}
	if in.BeforeCommit != nil {
		if err := in.BeforeCommit(ctx, inv); err != nil {
			return nil, err
		}
	}
	f.inputs = append(f.inputs, in)
	return inv, nil
}

var errBusy = errors.New("busy")

type stubLocker struct {
	keys []string
	err  error
}

func (l *stubLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

package invoicing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/sunmax/ledger/internal/numbering"
	"github.com/sunmax/ledger/internal/shared"
)

type memoryInvoiceRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	invoices map[string]*Invoice
	lines    map[int64][]Line
	payments map[int64][]Payment

	nextID      int64
	nextLine    int64
	nextPayment int64

	// conflicts makes the next CreateInvoice calls lose the number to a
	// competing writer whose insert survives our rollback.
	conflicts int
	competing []string
	// failAfterLines fails the transaction once lines are written.
	failAfterLines error
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{
		invoices: make(map[string]*Invoice),
		lines:    make(map[int64][]Line),
		payments: make(map[int64][]Payment),
	}
}

type memorySnapshot struct {
	invoices                      map[string]*Invoice
	lines                         map[int64][]Line
	payments                      map[int64][]Payment
	nextID, nextLine, nextPayment int64
}

func (r *memoryInvoiceRepo) snapshot() memorySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := memorySnapshot{
		invoices:    make(map[string]*Invoice, len(r.invoices)),
		lines:       make(map[int64][]Line, len(r.lines)),
		payments:    make(map[int64][]Payment, len(r.payments)),
		nextID:      r.nextID,
		nextLine:    r.nextLine,
		nextPayment: r.nextPayment,
	}
	for k, v := range r.invoices {
		cp := *v
		snap.invoices[k] = &cp
	}
	for k, v := range r.lines {
		snap.lines[k] = append([]Line(nil), v...)
	}
	for k, v := range r.payments {
		snap.payments[k] = append([]Payment(nil), v...)
	}
	return snap
}

func (r *memoryInvoiceRepo) restore(s memorySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices, r.lines, r.payments = s.invoices, s.lines, s.payments
	r.nextID, r.nextLine, r.nextPayment = s.nextID, s.nextLine, s.nextPayment
}

func (r *memoryInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	snap := r.snapshot()
	if err := fn(ctx, r); err != nil {
		r.restore(snap)
		r.commitCompeting()
		return err
	}
	return nil
}

func (r *memoryInvoiceRepo) commitCompeting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, number := range r.competing {
		r.nextID++
		r.invoices[number] = &Invoice{ID: r.nextID, Number: number, Status: StatusUnpaid}
	}
	r.competing = nil
}

func (r *memoryInvoiceRepo) LastCode(_ context.Context, _ numbering.Scheme) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *Invoice
	for _, inv := range r.invoices {
		if last == nil || inv.ID > last.ID {
			last = inv
		}
	}
	if last == nil {
		return "", nil
	}
	return last.Number, nil
}

func (r *memoryInvoiceRepo) CreateInvoice(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		r.competing = append(r.competing, inv.Number)
		return fmt.Errorf("invoice %s: %w", inv.Number, numbering.ErrConflict)
	}
	if _, taken := r.invoices[inv.Number]; taken {
		return fmt.Errorf("invoice %s: %w", inv.Number, numbering.ErrConflict)
	}
	r.nextID++
	inv.ID = r.nextID
	cp := *inv
	cp.Lines = nil
	r.invoices[inv.Number] = &cp
	return nil
}

func (r *memoryInvoiceRepo) InsertLines(_ context.Context, invoiceID int64, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range lines {
		r.nextLine++
		lines[i].ID = r.nextLine
	}
	r.lines[invoiceID] = append(r.lines[invoiceID], lines...)
	if r.failAfterLines != nil {
		return r.failAfterLines
	}
	return nil
}

func (r *memoryInvoiceRepo) DeleteLines(_ context.Context, invoiceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lines, invoiceID)
	return nil
}

func (r *memoryInvoiceRepo) InsertPayment(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextPayment++
	p.ID = r.nextPayment
	r.payments[p.InvoiceID] = append(r.payments[p.InvoiceID], *p)
	return nil
}

func (r *memoryInvoiceRepo) Get(_ context.Context, number string) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, number)
	}
	cp := *inv
	cp.Lines = append([]Line(nil), r.lines[inv.ID]...)
	return &cp, nil
}

func (r *memoryInvoiceRepo) GetForUpdate(ctx context.Context, number string) (*Invoice, error) {
	return r.Get(ctx, number)
}

func (r *memoryInvoiceRepo) UpdateHeader(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[inv.Number]; !ok {
		return ErrInvoiceNotFound
	}
	cp := *inv
	cp.Lines = nil
	r.invoices[inv.Number] = &cp
	return nil
}

func (r *memoryInvoiceRepo) List(_ context.Context, filter ListFilter) ([]Invoice, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Invoice
	for _, inv := range r.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if s := strings.ToLower(filter.Search); s != "" &&
			!strings.Contains(strings.ToLower(inv.Number), s) &&
			!strings.Contains(strings.ToLower(inv.Customer.Name), s) {
			continue
		}
		matched = append(matched, *inv)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	page := shared.NewPagination(filter.Page, filter.PerPage, len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (r *memoryInvoiceRepo) ListPayments(_ context.Context, invoiceID int64) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payment(nil), r.payments[invoiceID]...), nil
}

func (r *memoryInvoiceRepo) Delete(_ context.Context, invoiceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for number, inv := range r.invoices {
		if inv.ID == invoiceID {
			delete(r.invoices, number)
			delete(r.lines, invoiceID)
			delete(r.payments, invoiceID)
			return nil
		}
	}
	return ErrInvoiceNotFound
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *recordingLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func() {}, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{seen: make(map[string]bool)}
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.seen[module+":"+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, module+":"+key)
	return nil
}

type recordingRegenerator struct {
	mu     sync.Mutex
	queued []string
}

func (r *recordingRegenerator) EnqueueDocumentRegenerate(_ context.Context, kind, number string) (*asynq.TaskInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued = append(r.queued, kind+":"+number)
	return &asynq.TaskInfo{ID: kind + ":" + number}, nil
}

type countingStats struct {
	mu    sync.Mutex
	bumps int
}

func (s *countingStats) Bump(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumps++
	return nil
}

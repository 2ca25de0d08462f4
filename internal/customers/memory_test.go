package customers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sunmax/ledger/internal/numbering"
)

type memoryRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	customers map[string]*Customer
	payments  map[int64][]Payment
	nextID    int64
	nextPay   int64
	// failPayment fails InsertPayment so the surrounding transaction rolls back.
	failPayment error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		customers: make(map[string]*Customer),
		payments:  make(map[int64][]Payment),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	customers := make(map[string]*Customer, len(r.customers))
	for k, v := range r.customers {
		cp := *v
		customers[k] = &cp
	}
	payments := make(map[int64][]Payment, len(r.payments))
	for k, v := range r.payments {
		payments[k] = append([]Payment(nil), v...)
	}
	nextID, nextPay := r.nextID, r.nextPay
	r.mu.Unlock()

	if err := fn(ctx, r); err != nil {
		r.mu.Lock()
		r.customers, r.payments, r.nextID, r.nextPay = customers, payments, nextID, nextPay
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepo) LastCode(_ context.Context, _ numbering.Scheme) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *Customer
	for _, c := range r.customers {
		if last == nil || c.ID > last.ID {
			last = c
		}
	}
	if last == nil {
		return "", nil
	}
	return last.Code, nil
}

func (r *memoryRepo) Create(_ context.Context, c *Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.customers[c.Code]; taken {
		return fmt.Errorf("customer %s: %w", c.Code, numbering.ErrConflict)
	}
	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.customers[c.Code] = &cp
	return nil
}

func (r *memoryRepo) Get(_ context.Context, code string) (*Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	cp := *c
	return &cp, nil
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, code string) (*Customer, error) {
	return r.Get(ctx, code)
}

func (r *memoryRepo) Update(_ context.Context, c *Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[c.Code]; !ok {
		return ErrNotFound
	}
	cp := *c
	r.customers[c.Code] = &cp
	return nil
}

func (r *memoryRepo) InsertPayment(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPayment != nil {
		return r.failPayment
	}
	r.nextPay++
	p.ID = r.nextPay
	r.payments[p.CustomerID] = append(r.payments[p.CustomerID], *p)
	return nil
}

func (r *memoryRepo) ListPayments(_ context.Context, customerID int64) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payment(nil), r.payments[customerID]...), nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Customer, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	needle := strings.ToLower(filter.Search)
	var matched []Customer
	for _, c := range r.customers {
		if needle != "" && !strings.Contains(strings.ToLower(c.Code+" "+c.Name+" "+c.Phone), needle) {
			continue
		}
		matched = append(matched, *c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	start := min((filter.Page-1)*filter.PerPage, total)
	end := min(start+filter.PerPage, total)
	return matched[start:end], total, nil
}

func (r *memoryRepo) Delete(_ context.Context, customerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, c := range r.customers {
		if c.ID == customerID {
			delete(r.customers, code)
			delete(r.payments, customerID)
			return nil
		}
	}
	return ErrNotFound
}

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

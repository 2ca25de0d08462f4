package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/money"
	"github.com/sunmax/ledger/internal/numbering"
	"github.com/sunmax/ledger/internal/observability"
	"github.com/sunmax/ledger/internal/platform/lock"
	"github.com/sunmax/ledger/internal/shared"
)

// InitialPaymentNote labels the payment recorded at creation.
const InitialPaymentNote = "Initial payment"

// Repository is the customer store.
type Repository interface {
	numbering.LastCodeSource
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	// Create inserts the customer and sets ID. A duplicate code is reported
	// as numbering.ErrConflict.
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, code string) (*Customer, error)
	GetForUpdate(ctx context.Context, code string) (*Customer, error)
	Update(ctx context.Context, c *Customer) error
	InsertPayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, customerID int64) ([]Payment, error)
	List(ctx context.Context, filter ListFilter) ([]Customer, int, error)
	Delete(ctx context.Context, customerID int64) error
}

// Locker serializes balance updates of one customer.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// ServiceConfig wires optional collaborators.
type ServiceConfig struct {
	Locker         Locker
	Metrics        *observability.Metrics
	Logger         *slog.Logger
	NumberAttempts int
	Now            func() time.Time
}

// Service maintains customer balances.
type Service struct {
	repo     Repository
	locker   Locker
	metrics  *observability.Metrics
	logger   *slog.Logger
	attempts int
	now      func() time.Time
}

// NewService builds a Service.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		locker:   cfg.Locker,
		metrics:  cfg.Metrics,
		logger:   logger.With(slog.String("component", "customers")),
		attempts: cfg.NumberAttempts,
		now:      now,
	}
}

// Create stores a customer under the next CUST code. The opening amount
// paid is clamped into [0, total] and recorded as the first payment.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: customer name required", shared.ErrValidation)
	}
	total := money.Round2(in.TotalAmount)
	if total.IsNegative() {
		return nil, fmt.Errorf("customers: total %s: %w", in.TotalAmount, money.ErrInvalidAmount)
	}
	paid := money.Clamp(money.Round2(in.AmountPaid), decimal.Zero, total)
	status, paid := invoicing.DeriveStatus(paid, total)

	now := s.now()
	c := &Customer{
		Date:               in.Date,
		Name:               name,
		Phone:              strings.TrimSpace(in.Phone),
		Address:            strings.TrimSpace(in.Address),
		ProductDescription: strings.TrimSpace(in.ProductDescription),
		PaymentMethod:      strings.TrimSpace(in.PaymentMethod),
		TotalAmount:        total,
		AmountPaid:         paid,
		Status:             status,
	}
	if c.Date.IsZero() {
		c.Date = now
	}

	_, err := numbering.Issue(ctx, s.repo, numbering.Customer, s.attempts, func(ctx context.Context, code string) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			c.Code = code
			if err := tx.Create(ctx, c); err != nil {
				return err
			}
			if !paid.IsPositive() {
				return nil
			}
			method := c.PaymentMethod
			if method == "" {
				method = "Cash"
			}
			return tx.InsertPayment(ctx, &Payment{
				CustomerID: c.ID,
				Amount:     paid,
				Method:     method,
				Notes:      InitialPaymentNote,
				PaidAt:     now,
			})
		})
	})
	if errors.Is(err, numbering.ErrConflict) {
		return nil, fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer created", slog.String("customer", c.Code), slog.String("status", string(c.Status)))
	return c, nil
}

// AddPayment adds a receipt to the balance with the same clamping rules as
// invoice payments.
func (s *Service) AddPayment(ctx context.Context, code string, in PaymentInput) (*PaymentResult, error) {
	if !money.Round2(in.Amount).IsPositive() {
		return nil, fmt.Errorf("customers: payment amount %s: %w", in.Amount, money.ErrInvalidAmount)
	}
	release, err := s.acquire(ctx, code)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *PaymentResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		c, err := tx.GetForUpdate(ctx, code)
		if err != nil {
			return err
		}
		app, err := invoicing.ApplyPayment(c.AmountPaid, c.TotalAmount, in.Amount)
		if err != nil {
			return err
		}
		result = &PaymentResult{Customer: c, Requested: app.Requested, Applied: app.Applied, Clamped: app.Clamped}
		if !app.Applied.IsPositive() {
			return nil
		}
		method := strings.TrimSpace(in.Method)
		if method == "" {
			method = c.PaymentMethod
		}
		paidAt := in.PaidAt
		if paidAt.IsZero() {
			paidAt = s.now()
		}
		p := &Payment{
			CustomerID: c.ID,
			Amount:     app.Applied,
			Method:     method,
			Notes:      strings.TrimSpace(in.Notes),
			PaidAt:     paidAt,
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		c.AmountPaid = app.AmountPaid
		c.Status = app.Status
		if err := tx.Update(ctx, c); err != nil {
			return err
		}
		result.Payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Applied.IsPositive() {
		s.metrics.ObservePayment(result.Clamped.IsPositive())
	}
	s.logger.Info("customer payment",
		slog.String("customer", code),
		slog.String("applied", result.Applied.StringFixed(2)),
		slog.String("status", string(result.Customer.Status)))
	return result, nil
}

// Update edits a customer. A new total re-derives the status and may not
// drop below what was already paid.
func (s *Service) Update(ctx context.Context, code string, in UpdateInput) (*Customer, error) {
	release, err := s.acquire(ctx, code)
	if err != nil {
		return nil, err
	}
	defer release()

	var out *Customer
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		c, err := tx.GetForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("%w: customer name required", shared.ErrValidation)
			}
			c.Name = name
		}
		if in.Phone != nil {
			c.Phone = strings.TrimSpace(*in.Phone)
		}
		if in.Address != nil {
			c.Address = strings.TrimSpace(*in.Address)
		}
		if in.ProductDescription != nil {
			c.ProductDescription = strings.TrimSpace(*in.ProductDescription)
		}
		if in.PaymentMethod != nil {
			c.PaymentMethod = strings.TrimSpace(*in.PaymentMethod)
		}
		if in.TotalAmount != nil {
			total := money.Round2(*in.TotalAmount)
			if total.IsNegative() || total.LessThan(c.AmountPaid) {
				return fmt.Errorf("customers: total %s below amount paid %s: %w",
					total.StringFixed(2), c.AmountPaid.StringFixed(2), money.ErrInvalidAmount)
			}
			c.TotalAmount = total
		}
		c.Status, c.AmountPaid = invoicing.DeriveStatus(c.AmountPaid, c.TotalAmount)
		if err := tx.Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, code string) (*Customer, error) {
	return s.repo.Get(ctx, code)
}

// List returns one page of customers, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Customer, shared.Pagination, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page, filter.PerPage = page.Page, page.PerPage
	customers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return customers, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Payments lists the receipts of one customer in payment order.
func (s *Service) Payments(ctx context.Context, code string) ([]Payment, error) {
	c, err := s.repo.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, c.ID)
}

// Delete removes a customer and its payments.
func (s *Service) Delete(ctx context.Context, code string) error {
	c, err := s.repo.Get(ctx, code)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, c.ID); err != nil {
		return err
	}
	s.logger.Info("customer deleted", slog.String("customer", code))
	return nil
}

func (s *Service) acquire(ctx context.Context, code string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, shared.CustomerLockKey(code))
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	}
	if err != nil {
		return nil, err
	}
	return release, nil
}

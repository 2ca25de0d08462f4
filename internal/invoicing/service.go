package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/sunmax/ledger/internal/document"
	"github.com/sunmax/ledger/internal/money"
	"github.com/sunmax/ledger/internal/numbering"
	"github.com/sunmax/ledger/internal/observability"
	"github.com/sunmax/ledger/internal/platform/lock"
	"github.com/sunmax/ledger/internal/shared"
)

const idempotencyModule = "invoice-payments"

// Repository is the invoice store. Methods called inside WithTx run in one
// transaction; GetForUpdate holds a row lock until it ends.
type Repository interface {
	numbering.LastCodeSource
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	// CreateInvoice inserts the header and sets ID. A duplicate number is
	// reported as numbering.ErrConflict.
	CreateInvoice(ctx context.Context, inv *Invoice) error
	InsertLines(ctx context.Context, invoiceID int64, lines []Line) error
	DeleteLines(ctx context.Context, invoiceID int64) error
	InsertPayment(ctx context.Context, p *Payment) error
	Get(ctx context.Context, number string) (*Invoice, error)
	GetForUpdate(ctx context.Context, number string) (*Invoice, error)
	UpdateHeader(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	Delete(ctx context.Context, invoiceID int64) error
}

// Locker serializes payment application across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Idempotency remembers payment request keys.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Regenerator queues a background re-render of a stored document.
type Regenerator interface {
	EnqueueDocumentRegenerate(ctx context.Context, kind, number string) (*asynq.TaskInfo, error)
}

// StatsInvalidator drops cached aggregates after a ledger change.
type StatsInvalidator interface {
	Bump(ctx context.Context) error
}

// ServiceConfig carries the optional collaborators of a Service.
type ServiceConfig struct {
	Documents      *document.Store
	Regenerator    Regenerator
	Stats          StatsInvalidator
	Locker         Locker
	Idempotency    Idempotency
	Metrics        *observability.Metrics
	Logger         *slog.Logger
	Company        document.Company
	NumberAttempts int
	Now            func() time.Time
}

// Service implements checkout, the payment ledger and invoice maintenance.
type Service struct {
	repo        Repository
	documents   *document.Store
	regenerator Regenerator
	stats       StatsInvalidator
	locker      Locker
	idempotency Idempotency
	metrics     *observability.Metrics
	logger      *slog.Logger
	company     document.Company
	attempts    int
	now         func() time.Time
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
		repo:        repo,
		documents:   cfg.Documents,
		regenerator: cfg.Regenerator,
		stats:       cfg.Stats,
		locker:      cfg.Locker,
		idempotency: cfg.Idempotency,
		metrics:     cfg.Metrics,
		logger:      logger.With(slog.String("component", "invoicing")),
		company:     cfg.Company,
		attempts:    cfg.NumberAttempts,
		now:         now,
	}
}

// Checkout prices the cart, issues the next invoice number and stores the
// invoice, its lines and any initial payment in one transaction.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*Invoice, error) {
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	if strings.TrimSpace(in.Customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name required", shared.ErrValidation)
	}
	inv, err := Assemble(in)
	if err != nil {
		return nil, err
	}

	number, err := numbering.Issue(ctx, s.repo, numbering.Invoice, s.attempts, func(ctx context.Context, code string) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			inv.Number = code
			if err := tx.CreateInvoice(ctx, inv); err != nil {
				return err
			}
			if err := tx.InsertLines(ctx, inv.ID, inv.Lines); err != nil {
				return err
			}
			if inv.AmountPaid.IsPositive() {
				err := tx.InsertPayment(ctx, &Payment{
					InvoiceID: inv.ID,
					Reference: uuid.New(),
					Amount:    inv.AmountPaid,
					Method:    inv.PaymentMethod,
					Notes:     "Payment at checkout",
					PaidAt:    s.now(),
				})
				if err != nil {
					return err
				}
			}
			if in.BeforeCommit != nil {
				return in.BeforeCommit(ctx, inv)
			}
			return nil
		})
	})
	if errors.Is(err, numbering.ErrConflict) {
		return nil, fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveCheckout()
	s.logger.Info("invoice created",
		slog.String("invoice", number),
		slog.String("total", inv.TotalAmount.StringFixed(2)),
		slog.String("status", string(inv.Status)))
	s.afterMutation(ctx, number)
	return inv, nil
}

// ApplyPayment records a payment against an invoice. Amounts above the
// balance due are clamped; a request against a settled invoice applies
// nothing and records no payment.
func (s *Service) ApplyPayment(ctx context.Context, number string, in PaymentInput) (*PaymentResult, error) {
	if !money.Round2(in.Amount).IsPositive() {
		return nil, fmt.Errorf("invoicing: payment amount %s: %w", in.Amount, money.ErrInvalidAmount)
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return nil, err
		}
	}

	res, err := s.applyPayment(ctx, number, in)
	if err != nil {
		if key != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, key, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return nil, err
	}

	if res.Applied.IsPositive() {
		s.metrics.ObservePayment(res.Clamped.IsPositive())
		s.afterMutation(ctx, number)
	}
	s.logger.Info("payment applied",
		slog.String("invoice", number),
		slog.String("requested", res.Requested.StringFixed(2)),
		slog.String("applied", res.Applied.StringFixed(2)),
		slog.String("status", string(res.Invoice.Status)))
	return res, nil
}

func (s *Service) applyPayment(ctx context.Context, number string, in PaymentInput) (*PaymentResult, error) {
	release, err := s.acquire(ctx, shared.InvoiceLockKey(number))
	if err != nil {
		return nil, err
	}
	defer release()

	var result *PaymentResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := tx.GetForUpdate(ctx, number)
		if err != nil {
			return err
		}
		app, err := ApplyPayment(inv.AmountPaid, inv.TotalAmount, in.Amount)
		if err != nil {
			return err
		}
		result = &PaymentResult{Invoice: inv, Requested: app.Requested, Applied: app.Applied, Clamped: app.Clamped}
		if !app.Applied.IsPositive() {
			return nil
		}

		method := strings.TrimSpace(in.Method)
		if method == "" {
			method = inv.PaymentMethod
		}
		paidAt := in.PaidAt
		if paidAt.IsZero() {
			paidAt = s.now()
		}
		payment := &Payment{
			InvoiceID: inv.ID,
			Reference: uuid.New(),
			Amount:    app.Applied,
			Method:    method,
			Notes:     strings.TrimSpace(in.Notes),
			PaidAt:    paidAt,
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		inv.AmountPaid = app.AmountPaid
		inv.Status = app.Status
		if err := tx.UpdateHeader(ctx, inv); err != nil {
			return err
		}
		result.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Correct edits an invoice. Replacing the items recomputes every aggregate;
// a new total below the amount already paid is rejected.
func (s *Service) Correct(ctx context.Context, number string, in CorrectionInput) (*Invoice, error) {
	var lines []Line
	var totals money.Totals
	if in.Items != nil {
		var err error
		if lines, totals, err = BuildLines(in.Items); err != nil {
			return nil, err
		}
	}
	if in.Customer != nil && strings.TrimSpace(in.Customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name required", shared.ErrValidation)
	}

	release, err := s.acquire(ctx, shared.InvoiceLockKey(number))
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := tx.GetForUpdate(ctx, number)
		if err != nil {
			return err
		}
		if in.Date != nil {
			inv.Date = *in.Date
		}
		if in.Customer != nil {
			inv.Customer = *in.Customer
		}
		if in.PaymentMethod != nil {
			inv.PaymentMethod = strings.TrimSpace(*in.PaymentMethod)
		}
		if lines != nil {
			if totals.TotalAmount.LessThan(inv.AmountPaid) {
				return fmt.Errorf("invoicing: corrected total %s is below amount paid %s: %w",
					totals.TotalAmount.StringFixed(2), inv.AmountPaid.StringFixed(2), money.ErrInvalidAmount)
			}
			if err := tx.DeleteLines(ctx, inv.ID); err != nil {
				return err
			}
			if err := tx.InsertLines(ctx, inv.ID, lines); err != nil {
				return err
			}
			inv.Lines = lines
			inv.Type = inferType(lines)
			inv.Subtotal = totals.Subtotal
			inv.TotalDiscount = totals.TotalDiscount
			inv.DiscountedSubtotal = totals.DiscountedSubtotal
			inv.TotalGST = totals.TotalGST
			inv.TotalAmount = totals.TotalAmount
		}
		inv.Status, inv.AmountPaid = DeriveStatus(inv.AmountPaid, inv.TotalAmount)
		if err := tx.UpdateHeader(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice corrected", slog.String("invoice", number), slog.String("status", string(updated.Status)))
	s.afterMutation(ctx, number)
	return updated, nil
}

// Delete removes an invoice with its lines, payments and stored document.
func (s *Service) Delete(ctx context.Context, number string) error {
	release, err := s.acquire(ctx, shared.InvoiceLockKey(number))
	if err != nil {
		return err
	}
	defer release()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := tx.GetForUpdate(ctx, number)
		if err != nil {
			return err
		}
		return tx.Delete(ctx, inv.ID)
	})
	if err != nil {
		return err
	}
	if s.documents != nil {
		if err := s.documents.Remove(document.KindInvoice, number); err != nil {
			s.logger.Warn("remove invoice document", slog.String("invoice", number), slog.Any("error", err))
		}
	}
	s.logger.Info("invoice deleted", slog.String("invoice", number))
	s.bumpStats(ctx)
	return nil
}

// Get returns one invoice with its lines.
func (s *Service) Get(ctx context.Context, number string) (*Invoice, error) {
	return s.repo.Get(ctx, number)
}

// List returns one page of invoices, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, shared.Pagination, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page, filter.PerPage = page.Page, page.PerPage
	invoices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return invoices, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Payments returns the payment history of an invoice, oldest first.
func (s *Service) Payments(ctx context.Context, number string) ([]Payment, error) {
	inv, err := s.repo.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, inv.ID)
}

// Document returns the stored PDF for an invoice, rendering it when the file
// is missing or undersized.
func (s *Service) Document(ctx context.Context, number string) ([]byte, document.File, error) {
	if s.documents == nil {
		return nil, document.File{}, errors.New("invoicing: document store not configured")
	}
	data, file, err := s.documents.Read(ctx, document.KindInvoice, number, s.DocumentFor)
	if errors.Is(err, document.ErrNotFound) {
		return nil, document.File{}, ErrInvoiceNotFound
	}
	return data, file, err
}

// DocumentFor loads the committed state of an invoice as a render model.
func (s *Service) DocumentFor(ctx context.Context, number string) (document.Document, error) {
	inv, err := s.repo.Get(ctx, number)
	if errors.Is(err, ErrInvoiceNotFound) {
		return document.Document{}, fmt.Errorf("%w: %w", document.ErrNotFound, err)
	}
	if err != nil {
		return document.Document{}, err
	}
	return ToDocument(inv, s.company), nil
}

// ToDocument maps an invoice onto the render model.
func ToDocument(inv *Invoice, company document.Company) document.Document {
	rows := make([]document.Row, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		rows = append(rows, document.Row{
			Code:            l.Code,
			Name:            l.Name,
			HSN:             l.HSN,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			GSTRatePercent:  l.GSTRatePercent,
			GSTAmount:       l.GSTAmount,
			Total:           l.LineTotal,
		})
	}
	return document.Document{
		Kind:    document.KindInvoice,
		Number:  inv.Number,
		Date:    inv.Date,
		Company: company,
		Customer: document.Party{
			Name:    inv.Customer.Name,
			Address: inv.Customer.Address,
			Phone:   inv.Customer.Phone,
			Email:   inv.Customer.Email,
			GSTIN:   inv.Customer.GSTIN,
		},
		Rows: rows,
		Summary: document.Summary{
			Subtotal:      inv.Subtotal,
			Discount:      inv.TotalDiscount,
			Taxable:       inv.DiscountedSubtotal,
			GST:           inv.TotalGST,
			Total:         inv.TotalAmount,
			AmountPaid:    inv.AmountPaid,
			BalanceDue:    money.BalanceDue(inv.TotalAmount, inv.AmountPaid),
			Badge:         badgeFor(inv.Status),
			PaymentMethod: inv.PaymentMethod,
		},
	}
}

func badgeFor(status PaymentStatus) document.Badge {
	switch status {
	case StatusFullyPaid:
		return document.BadgePaid
	case StatusPartiallyPaid:
		return document.BadgePartial
	default:
		return document.BadgeUnpaid
	}
}

func (s *Service) acquire(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, key)
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	}
	if err != nil {
		return nil, err
	}
	return release, nil
}

// afterMutation marks the stored document stale, queues a re-render and
// drops cached statistics. Failures here never undo the committed change.
func (s *Service) afterMutation(ctx context.Context, number string) {
	if s.documents != nil {
		if err := s.documents.Invalidate(document.KindInvoice, number); err != nil {
			s.logger.Warn("invalidate invoice document", slog.String("invoice", number), slog.Any("error", err))
		}
	}
	if s.regenerator != nil {
		if _, err := s.regenerator.EnqueueDocumentRegenerate(ctx, string(document.KindInvoice), number); err != nil {
			s.logger.Warn("enqueue document regenerate", slog.String("invoice", number), slog.Any("error", err))
		}
	}
	s.bumpStats(ctx)
}

func (s *Service) bumpStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Bump(ctx); err != nil {
		s.logger.Warn("bump stats cache", slog.Any("error", err))
	}
}

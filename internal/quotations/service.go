package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/document"
	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/money"
	"github.com/sunmax/ledger/internal/numbering"
	"github.com/sunmax/ledger/internal/platform/lock"
	"github.com/sunmax/ledger/internal/shared"
)

// Conversion defaults applied to invoices created from a quotation.
const (
	ConvertedPaymentMethod = "Cash"
	ConvertedHSN           = invoicing.DefaultHSN
)

// Repository is the quotation store.
type Repository interface {
	numbering.LastCodeSource
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	// Create inserts the header and sets ID. A duplicate number is reported
	// as numbering.ErrConflict.
	Create(ctx context.Context, q *Quotation) error
	InsertItems(ctx context.Context, quotationID int64, items []Item) error
	Get(ctx context.Context, number string) (*Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	// MarkConverted claims an unconverted quotation for invoiceNumber and
	// reports ErrAlreadyConverted when another conversion got there first.
	MarkConverted(ctx context.Context, quotationID int64, invoiceNumber string) error
	Delete(ctx context.Context, quotationID int64) error
}

// InvoiceCreator turns a cart into a stored invoice, running the cart's
// BeforeCommit hook inside its transaction.
type InvoiceCreator interface {
	Checkout(ctx context.Context, in invoicing.CheckoutInput) (*invoicing.Invoice, error)
}

// Locker serializes conversion of one quotation.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// ServiceConfig wires optional collaborators.
type ServiceConfig struct {
	Invoices       InvoiceCreator
	Documents      *document.Store
	Locker         Locker
	Logger         *slog.Logger
	Company        document.Company
	NumberAttempts int
	Now            func() time.Time
}

// Service manages quotations.
type Service struct {
	repo      Repository
	invoices  InvoiceCreator
	documents *document.Store
	locker    Locker
	logger    *slog.Logger
	company   document.Company
	attempts  int
	now       func() time.Time
}

// NewService constructs the quotation service.
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
		repo:      repo,
		invoices:  cfg.Invoices,
		documents: cfg.Documents,
		locker:    cfg.Locker,
		logger:    logger.With(slog.String("component", "quotations")),
		company:   cfg.Company,
		attempts:  cfg.NumberAttempts,
		now:       now,
	}
}

// Create prices the items and stores the quotation under the next QN number.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Quotation, error) {
	if strings.TrimSpace(in.Customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name required", shared.ErrValidation)
	}
	q, err := Price(in.Items)
	if err != nil {
		return nil, err
	}
	q.Date = in.Date
	if q.Date.IsZero() {
		q.Date = s.now()
	}
	q.Customer = Customer{
		Name:    strings.TrimSpace(in.Customer.Name),
		Phone:   strings.TrimSpace(in.Customer.Phone),
		Email:   strings.TrimSpace(in.Customer.Email),
		Address: strings.TrimSpace(in.Customer.Address),
	}
	q.AskedAbout = strings.TrimSpace(in.AskedAbout)

	_, err = numbering.Issue(ctx, s.repo, numbering.Quotation, s.attempts, func(ctx context.Context, code string) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			q.Number = code
			if err := tx.Create(ctx, q); err != nil {
				return err
			}
			return tx.InsertItems(ctx, q.ID, q.Items)
		})
	})
	if errors.Is(err, numbering.ErrConflict) {
		return nil, fmt.Errorf("quotations: %w: %w", shared.ErrConflict, err)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("quotation created", slog.String("quotation", q.Number), slog.String("total", q.TotalAmount.StringFixed(2)))
	return q, nil
}

// Price computes every row with the shared calculator, without discount.
func Price(items []ItemInput) (*Quotation, error) {
	if len(items) == 0 {
		return nil, ErrEmptyQuotation
	}
	q := &Quotation{Items: make([]Item, 0, len(items))}
	var totals money.Totals
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("%w: item %d has no name", shared.ErrValidation, i+1)
		}
		res, err := money.ComputeLine(it.UnitPrice, it.Quantity, decimal.Zero, it.GSTRatePercent)
		if err != nil {
			return nil, fmt.Errorf("quotations: item %d: %w", i+1, err)
		}
		totals.Add(res)
		itemType := it.ItemType
		if itemType == "" {
			itemType = invoicing.TypeProduct
		}
		q.Items = append(q.Items, Item{
			Position:       i + 1,
			Code:           strings.TrimSpace(it.Code),
			Name:           strings.TrimSpace(it.Name),
			ItemType:       itemType,
			UnitPrice:      it.UnitPrice,
			Quantity:       it.Quantity,
			GSTRatePercent: money.ClampPercent(it.GSTRatePercent, decimal.Zero),
			GSTAmount:      res.GSTAmount,
			LineTotal:      res.LineTotal,
		})
	}
	q.Subtotal = totals.Subtotal
	q.TotalGST = totals.TotalGST
	q.TotalAmount = totals.TotalAmount
	return q, nil
}

// Get returns one quotation with its items.
func (s *Service) Get(ctx context.Context, number string) (*Quotation, error) {
	return s.repo.Get(ctx, number)
}

// List returns one page of quotations, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quotation, shared.Pagination, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page, filter.PerPage = page.Page, page.PerPage
	quotations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return quotations, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Delete removes a quotation and its stored document.
func (s *Service) Delete(ctx context.Context, number string) error {
	q, err := s.repo.Get(ctx, number)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, q.ID); err != nil {
		return err
	}
	if s.documents != nil {
		if err := s.documents.Remove(document.KindQuotation, number); err != nil {
			s.logger.Warn("remove quotation document", slog.String("quotation", number), slog.Any("error", err))
		}
	}
	s.logger.Info("quotation deleted", slog.String("quotation", number))
	return nil
}

// Convert bills a quotation as an unpaid cash invoice. Each quotation
// converts at most once.
func (s *Service) Convert(ctx context.Context, number string) (*invoicing.Invoice, error) {
	if s.invoices == nil {
		return nil, errors.New("quotations: invoice service not configured")
	}
	release := func() {}
	if s.locker != nil {
		var err error
		release, err = s.locker.Acquire(ctx, shared.QuotationLockKey(number))
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, fmt.Errorf("quotations: %w: %w", shared.ErrConflict, err)
		}
		if err != nil {
			return nil, err
		}
	}
	defer release()

	q, err := s.repo.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if q.ConvertedTo != "" {
		return nil, fmt.Errorf("%w: %s became %s", ErrAlreadyConverted, number, q.ConvertedTo)
	}

	// The claim commits with the invoice, so a concurrent convert either
	// waits on the quotation row and finds it taken or rolls back.
	in := CheckoutInput(q)
	in.BeforeCommit = func(ctx context.Context, inv *invoicing.Invoice) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			return tx.MarkConverted(ctx, q.ID, inv.Number)
		})
	}
	inv, err := s.invoices.Checkout(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("quotations: convert %s: %w", number, err)
	}
	s.logger.Info("quotation converted", slog.String("quotation", number), slog.String("invoice", inv.Number))
	return inv, nil
}

// CheckoutInput maps a quotation onto an unpaid product invoice cart.
func CheckoutInput(q *Quotation) invoicing.CheckoutInput {
	items := make([]invoicing.CartItem, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, invoicing.CartItem{
			Code:           it.Code,
			Name:           it.Name,
			HSN:            ConvertedHSN,
			ItemType:       it.ItemType,
			UnitPrice:      it.UnitPrice,
			Quantity:       it.Quantity,
			GSTRatePercent: it.GSTRatePercent,
		})
	}
	return invoicing.CheckoutInput{
		Customer: invoicing.Customer{
			Name:    q.Customer.Name,
			Address: q.Customer.Address,
			Phone:   q.Customer.Phone,
			Email:   q.Customer.Email,
		},
		Items:         items,
		PaymentMethod: ConvertedPaymentMethod,
		Status:        string(invoicing.StatusUnpaid),
		Type:          invoicing.TypeProduct,
	}
}

// Document returns the stored quotation PDF, rendering it when needed.
func (s *Service) Document(ctx context.Context, number string) ([]byte, document.File, error) {
	if s.documents == nil {
		return nil, document.File{}, errors.New("quotations: document store not configured")
	}
	data, file, err := s.documents.Read(ctx, document.KindQuotation, number, s.DocumentFor)
	if errors.Is(err, document.ErrNotFound) {
		return nil, document.File{}, ErrNotFound
	}
	return data, file, err
}

// DocumentFor loads a quotation as a render model.
func (s *Service) DocumentFor(ctx context.Context, number string) (document.Document, error) {
	q, err := s.repo.Get(ctx, number)
	if errors.Is(err, ErrNotFound) {
		return document.Document{}, fmt.Errorf("%w: %w", document.ErrNotFound, err)
	}
	if err != nil {
		return document.Document{}, err
	}
	return ToDocument(q, s.company), nil
}

// ToDocument maps a quotation onto the render model.
func ToDocument(q *Quotation, company document.Company) document.Document {
	rows := make([]document.Row, 0, len(q.Items))
	for _, it := range q.Items {
		rows = append(rows, document.Row{
			Code:           it.Code,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			GSTRatePercent: it.GSTRatePercent,
			GSTAmount:      it.GSTAmount,
			Total:          it.LineTotal,
		})
	}
	var remarks []string
	if q.AskedAbout != "" {
		remarks = append(remarks, "Enquiry: "+q.AskedAbout)
	}
	return document.Document{
		Kind:    document.KindQuotation,
		Number:  q.Number,
		Date:    q.Date,
		Company: company,
		Customer: document.Party{
			Name:    q.Customer.Name,
			Address: q.Customer.Address,
			Phone:   q.Customer.Phone,
			Email:   q.Customer.Email,
		},
		Remarks: remarks,
		Rows:    rows,
		Summary: document.Summary{
			Subtotal: q.Subtotal,
			GST:      q.TotalGST,
			Total:    q.TotalAmount,
			Badge:    document.BadgeNone,
		},
	}
}

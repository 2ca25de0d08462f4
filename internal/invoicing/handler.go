package invoicing

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/money"
	"github.com/sunmax/ledger/internal/platform/httpx"
	"github.com/sunmax/ledger/internal/shared"
)

// IdempotencyHeader carries the client key for payment requests.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the invoice ledger over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.checkout)
	r.Route("/{number}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.correct)
		r.Delete("/", h.delete)
		r.Get("/payments", h.payments)
		r.Post("/payments", h.applyPayment)
		r.Get("/pdf", h.pdf)
	})
}

type customerDTO struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"max=500"`
	Phone   string `json:"phone" validate:"max=30"`
	Email   string `json:"email" validate:"omitempty,email"`
	GSTIN   string `json:"gstin" validate:"omitempty,len=15"`
}

func (c customerDTO) toDomain() Customer {
	return Customer{
		Name:    strings.TrimSpace(c.Name),
		Address: strings.TrimSpace(c.Address),
		Phone:   strings.TrimSpace(c.Phone),
		Email:   strings.TrimSpace(c.Email),
		GSTIN:   strings.ToUpper(strings.TrimSpace(c.GSTIN)),
	}
}

type itemDTO struct {
	Code            string          `json:"code" validate:"max=50"`
	Name            string          `json:"name" validate:"required,max=200"`
	HSN             string          `json:"hsn" validate:"max=20"`
	ItemType        string          `json:"item_type" validate:"omitempty,oneof=product service"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	GSTRatePercent  decimal.Decimal `json:"gst_rate_percent"`
}

func toCartItems(items []itemDTO) []CartItem {
	if items == nil {
		return nil
	}
	out := make([]CartItem, 0, len(items))
	for _, it := range items {
		out = append(out, CartItem{
			Code:            it.Code,
			Name:            it.Name,
			HSN:             it.HSN,
			ItemType:        InvoiceType(it.ItemType),
			UnitPrice:       it.UnitPrice,
			Quantity:        it.Quantity,
			DiscountPercent: it.DiscountPercent,
			GSTRatePercent:  it.GSTRatePercent,
		})
	}
	return out
}

type checkoutRequest struct {
	Date          *time.Time       `json:"date"`
	Customer      customerDTO      `json:"customer"`
	Items         []itemDTO        `json:"items" validate:"dive"`
	PaymentMethod string           `json:"payment_method" validate:"max=50"`
	PaymentStatus string           `json:"payment_status"`
	AmountPaid    *decimal.Decimal `json:"amount_paid"`
	InvoiceType   string           `json:"invoice_type" validate:"omitempty,oneof=product service combination"`
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" validate:"max=50"`
	Notes  string          `json:"notes" validate:"max=500"`
	PaidAt *time.Time      `json:"paid_at"`
}

type correctionRequest struct {
	Date          *time.Time   `json:"date"`
	Customer      *customerDTO `json:"customer"`
	PaymentMethod *string      `json:"payment_method" validate:"omitempty,max=50"`
	Items         []itemDTO    `json:"items" validate:"omitempty,dive"`
}

type invoiceResponse struct {
	*Invoice
	BalanceDue decimal.Decimal `json:"balance_due"`
}

func newInvoiceResponse(inv *Invoice) invoiceResponse {
	return invoiceResponse{Invoice: inv, BalanceDue: money.BalanceDue(inv.TotalAmount, inv.AmountPaid)}
}

type paymentResponse struct {
	Invoice   invoiceResponse `json:"invoice"`
	Payment   *Payment        `json:"payment,omitempty"`
	Requested decimal.Decimal `json:"requested"`
	Applied   decimal.Decimal `json:"applied"`
	Clamped   decimal.Decimal `json:"clamped"`
}

type listResponse struct {
	Invoices   []invoiceResponse `json:"invoices"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := CheckoutInput{
		Customer:      req.Customer.toDomain(),
		Items:         toCartItems(req.Items),
		PaymentMethod: req.PaymentMethod,
		Status:        req.PaymentStatus,
		AmountPaid:    req.AmountPaid,
		Type:          InvoiceType(req.InvoiceType),
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	inv, err := h.service.Checkout(r.Context(), in)
	if err != nil {
		h.fail(w, "checkout", err)
		return
	}
	w.Header().Set("Location", "/invoices/"+inv.Number)
	httpx.JSON(w, http.StatusCreated, newInvoiceResponse(inv))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Search: strings.TrimSpace(q.Get("q"))}
	if raw := q.Get("status"); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			httpx.RespondError(w, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, raw))
			return
		}
		filter.Status = status
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	invoices, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	resp := listResponse{Invoices: make([]invoiceResponse, 0, len(invoices)), Pagination: page}
	for i := range invoices {
		resp.Invoices = append(resp.Invoices, newInvoiceResponse(&invoices[i]))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newInvoiceResponse(inv))
}

func (h *Handler) correct(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := CorrectionInput{Date: req.Date, PaymentMethod: req.PaymentMethod, Items: toCartItems(req.Items)}
	if req.Customer != nil {
		c := req.Customer.toDomain()
		in.Customer = &c
	}
	inv, err := h.service.Correct(r.Context(), chi.URLParam(r, "number"), in)
	if err != nil {
		h.fail(w, "correct invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newInvoiceResponse(inv))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "number")); err != nil {
		h.fail(w, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := PaymentInput{
		Amount:         req.Amount,
		Method:         req.Method,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	}
	if req.PaidAt != nil {
		in.PaidAt = *req.PaidAt
	}
	res, err := h.service.ApplyPayment(r.Context(), chi.URLParam(r, "number"), in)
	if err != nil {
		h.fail(w, "apply payment", err)
		return
	}
	status := http.StatusCreated
	if res.Payment == nil {
		status = http.StatusOK
	}
	httpx.JSON(w, status, paymentResponse{
		Invoice:   newInvoiceResponse(res.Invoice),
		Payment:   res.Payment,
		Requested: res.Requested,
		Applied:   res.Applied,
		Clamped:   res.Clamped,
	})
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.Payments(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, "list payments", err)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	data, file, err := h.service.Document(r.Context(), number)
	if err != nil {
		h.fail(w, "invoice document", err)
		return
	}
	httpx.ServeDocument(w, r, number+".pdf", data, file.ModTime)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

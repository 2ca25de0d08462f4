package customers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/platform/httpx"
	"github.com/sunmax/ledger/internal/shared"
)

// Handler exposes customer balances over JSON.
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

// MountRoutes registers customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{code}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Get("/payments", h.payments)
		r.Post("/payments", h.addPayment)
	})
}

type createRequest struct {
	Date               *time.Time      `json:"date"`
	Name               string          `json:"name" validate:"required,max=200"`
	Phone              string          `json:"phone" validate:"max=30"`
	Address            string          `json:"address" validate:"max=500"`
	ProductDescription string          `json:"product_description" validate:"max=1000"`
	PaymentMethod      string          `json:"payment_method" validate:"max=50"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
}

type updateRequest struct {
	Name               *string          `json:"name" validate:"omitempty,max=200"`
	Phone              *string          `json:"phone" validate:"omitempty,max=30"`
	Address            *string          `json:"address" validate:"omitempty,max=500"`
	ProductDescription *string          `json:"product_description" validate:"omitempty,max=1000"`
	PaymentMethod      *string          `json:"payment_method" validate:"omitempty,max=50"`
	TotalAmount        *decimal.Decimal `json:"total_amount"`
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" validate:"max=50"`
	Notes  string          `json:"notes" validate:"max=500"`
	PaidAt *time.Time      `json:"paid_at"`
}

type customerResponse struct {
	*Customer
	BalanceDue decimal.Decimal `json:"balance_due"`
}

func newCustomerResponse(c *Customer) customerResponse {
	return customerResponse{Customer: c, BalanceDue: c.BalanceDue()}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := CreateInput{
		Name:               req.Name,
		Phone:              req.Phone,
		Address:            req.Address,
		ProductDescription: req.ProductDescription,
		PaymentMethod:      req.PaymentMethod,
		TotalAmount:        req.TotalAmount,
		AmountPaid:         req.AmountPaid,
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	c, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create customer", err)
		return
	}
	w.Header().Set("Location", "/customers/"+c.Code)
	httpx.JSON(w, http.StatusCreated, newCustomerResponse(c))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Search: strings.TrimSpace(q.Get("q"))}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	customers, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list customers", err)
		return
	}
	out := make([]customerResponse, 0, len(customers))
	for i := range customers {
		out = append(out, newCustomerResponse(&customers[i]))
	}
	httpx.JSON(w, http.StatusOK, struct {
		Customers  []customerResponse `json:"customers"`
		Pagination shared.Pagination  `json:"pagination"`
	}{out, page})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCustomerResponse(c))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Update(r.Context(), chi.URLParam(r, "code"), UpdateInput{
		Name:               req.Name,
		Phone:              req.Phone,
		Address:            req.Address,
		ProductDescription: req.ProductDescription,
		PaymentMethod:      req.PaymentMethod,
		TotalAmount:        req.TotalAmount,
	})
	if err != nil {
		h.fail(w, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newCustomerResponse(c))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.fail(w, "delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := PaymentInput{Amount: req.Amount, Method: req.Method, Notes: req.Notes}
	if req.PaidAt != nil {
		in.PaidAt = *req.PaidAt
	}
	res, err := h.service.AddPayment(r.Context(), chi.URLParam(r, "code"), in)
	if err != nil {
		h.fail(w, "customer payment", err)
		return
	}
	status := http.StatusCreated
	if res.Payment == nil {
		status = http.StatusOK
	}
	httpx.JSON(w, status, struct {
		Customer  customerResponse `json:"customer"`
		Payment   *Payment         `json:"payment,omitempty"`
		Requested decimal.Decimal  `json:"requested"`
		Applied   decimal.Decimal  `json:"applied"`
		Clamped   decimal.Decimal  `json:"clamped"`
	}{newCustomerResponse(res.Customer), res.Payment, res.Requested, res.Applied, res.Clamped})
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.Payments(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "list customer payments", err)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

package quotations

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/platform/httpx"
	"github.com/sunmax/ledger/internal/shared"
)

// Handler exposes quotations over JSON.
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

// MountRoutes registers quotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{number}", h.get)
	r.Delete("/{number}", h.delete)
	r.Post("/{number}/convert", h.convert)
	r.Get("/{number}/pdf", h.pdf)
}

type createRequest struct {
	Date     *time.Time `json:"date"`
	Customer struct {
		Name    string `json:"name" validate:"required,max=200"`
		Phone   string `json:"phone" validate:"max=30"`
		Email   string `json:"email" validate:"omitempty,email"`
		Address string `json:"address" validate:"max=500"`
	} `json:"customer"`
	AskedAbout string `json:"asked_about" validate:"max=500"`
	Items      []struct {
		Code           string          `json:"code" validate:"max=50"`
		Name           string          `json:"name" validate:"required,max=200"`
		ItemType       string          `json:"item_type" validate:"omitempty,oneof=product service"`
		UnitPrice      decimal.Decimal `json:"unit_price"`
		Quantity       int             `json:"quantity"`
		GSTRatePercent decimal.Decimal `json:"gst_rate_percent"`
	} `json:"items" validate:"dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := CreateInput{
		Customer: Customer{
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Email:   req.Customer.Email,
			Address: req.Customer.Address,
		},
		AskedAbout: req.AskedAbout,
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, ItemInput{
			Code:           it.Code,
			Name:           it.Name,
			ItemType:       invoicing.InvoiceType(it.ItemType),
			UnitPrice:      it.UnitPrice,
			Quantity:       it.Quantity,
			GSTRatePercent: it.GSTRatePercent,
		})
	}
	q, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create quotation", err)
		return
	}
	w.Header().Set("Location", "/quotations/"+q.Number)
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	quotations, pagination, err := h.service.List(r.Context(), ListFilter{
		Search:  strings.TrimSpace(q.Get("q")),
		Page:    page,
		PerPage: min(perPage, 100),
	})
	if err != nil {
		h.fail(w, "list quotations", err)
		return
	}
	if quotations == nil {
		quotations = []Quotation{}
	}
	httpx.JSON(w, http.StatusOK, struct {
		Quotations []Quotation       `json:"quotations"`
		Pagination shared.Pagination `json:"pagination"`
	}{quotations, pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, "get quotation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "number")); err != nil {
		h.fail(w, "delete quotation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Convert(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, "convert quotation", err)
		return
	}
	w.Header().Set("Location", "/invoices/"+inv.Number)
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	data, file, err := h.service.Document(r.Context(), number)
	if err != nil {
		h.fail(w, "quotation document", err)
		return
	}
	httpx.ServeDocument(w, r, number+".pdf", data, file.ModTime)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

package customers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func newRouter() http.Handler {
	svc, _, _ := newTestService()
	r := chi.NewRouter()
	r.Route("/customers", NewHandler(nil, svc).MountRoutes)
	return r
}

func TestHandlerCustomerLifecycle(t *testing.T) {
	h := newRouter()

	rr := serve(h, http.MethodPost, "/customers", `{"name":"Govind Agro","total_amount":"1000","amount_paid":"250","payment_method":"Cash"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "/customers/CUST001", rr.Header().Get("Location"))

	var created map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "Partially Paid", created["payment_status"])
	assert.Equal(t, "750", created["balance_due"])

	rr = serve(h, http.MethodPost, "/customers/CUST001/payments", `{"amount":"1000"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var paid struct {
		Applied  string         `json:"applied"`
		Clamped  string         `json:"clamped"`
		Customer map[string]any `json:"customer"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &paid))
	assert.Equal(t, "750", paid.Applied)
	assert.Equal(t, "250", paid.Clamped)
	assert.Equal(t, "Fully Paid", paid.Customer["payment_status"])

	rr = serve(h, http.MethodPost, "/customers/CUST001/payments", `{"amount":"10"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, http.MethodGet, "/customers/CUST001/payments", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed struct {
		Payments []map[string]any `json:"payments"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	assert.Len(t, listed.Payments, 2)

	rr = serve(h, http.MethodPatch, "/customers/CUST001", `{"total_amount":"500"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid Amount")

	rr = serve(h, http.MethodPatch, "/customers/CUST001", `{"total_amount":"2000"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Partially Paid")

	rr = serve(h, http.MethodGet, "/customers?q=govind", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "CUST001")

	rr = serve(h, http.MethodDelete, "/customers/CUST001", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = serve(h, http.MethodGet, "/customers/CUST001", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerCreateRequiresName(t *testing.T) {
	h := newRouter()
	rr := serve(h, http.MethodPost, "/customers", `{"total_amount":"10"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Validation Failed")
}

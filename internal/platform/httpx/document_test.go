package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunmax/ledger/internal/shared"
)

func TestServeDocumentDisposition(t *testing.T) {
	data := []byte("%PDF-1.3 body")
	modTime := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rr := httptest.NewRecorder()
	ServeDocument(rr, httptest.NewRequest(http.MethodGet, "/invoices/INV01/pdf", nil), "INV01.pdf", data, modTime)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="INV01.pdf"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "Thu, 02 Jan 2025 03:04:05 GMT", rr.Header().Get("Last-Modified"))
	assert.Equal(t, data, rr.Body.Bytes())

	rr = httptest.NewRecorder()
	ServeDocument(rr, httptest.NewRequest(http.MethodGet, "/invoices/INV01/pdf?disposition=attachment", nil), "INV01.pdf", data, modTime)
	assert.Equal(t, `attachment; filename="INV01.pdf"`, rr.Header().Get("Content-Disposition"))
}

func TestServeDocumentNotModified(t *testing.T) {
	data := []byte("%PDF-1.3 body")
	req := httptest.NewRequest(http.MethodGet, "/invoices/INV01/pdf", nil)
	req.Header.Set("If-None-Match", ETag(data))

	rr := httptest.NewRecorder()
	ServeDocument(rr, req, "INV01.pdf", data, time.Time{})
	assert.Equal(t, http.StatusNotModified, rr.Code)
	assert.Empty(t, rr.Body.Bytes())

	assert.NotEqual(t, ETag(data), ETag([]byte("%PDF-1.3 other")))
}

func TestBindRunsValidateTags(t *testing.T) {
	type payload struct {
		Name  string `json:"name" validate:"required"`
		Count int    `json:"count" validate:"min=1"`
	}
	var p payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","count":0}`))
	err := Bind(req, &p)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "payload.Name failed required")
	assert.Contains(t, err.Error(), "payload.Count failed min")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","count":2}`))
	require.NoError(t, Bind(req, &p))
}

package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunmax/ledger/internal/document"
	"github.com/sunmax/ledger/internal/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.DocumentPageCapacity)
	assert.EqualValues(t, 1000, cfg.DocumentMinBytes)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsZeroCapacity(t *testing.T) {
	t.Setenv("DOCUMENT_PAGE_CAPACITY", "0")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "page capacity")
}

func TestCompanySplitsAddressLines(t *testing.T) {
	cfg := &Config{
		CompanyName:    " Sunmax Renewables ",
		CompanyGSTIN:   "27ABCDE1234F1Z5",
		CompanyAddress: "12 MG Road| Pune ||411001",
	}
	company := cfg.Company()
	assert.Equal(t, "Sunmax Renewables", company.Name)
	assert.Equal(t, []string{"12 MG Road", "Pune", "411001"}, company.Address)
	assert.Equal(t, "27ABCDE1234F1Z5", company.GSTIN)
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.DocumentDir = t.TempDir()
	return cfg
}

func TestNewServicesWiresLoaders(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	services := NewServices(ServiceDeps{
		Config: testConfig(t),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Redis:  client,
	})
	require.NotNil(t, services.Invoices)
	require.NotNil(t, services.Quotations)
	require.NotNil(t, services.Customers)
	require.NotNil(t, services.Stats)

	loaders := services.DocumentLoaders()
	assert.Len(t, loaders, 2)
	assert.Contains(t, loaders, document.KindInvoice)
	assert.Contains(t, loaders, document.KindQuotation)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:            testConfig(t),
		Metrics:           observability.NewMetrics(),
		DisableRequestLog: true,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ledger_http_requests_total")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "staging", LogFormat: "json", LogLevel: "warn"})

	logger.Info("dropped")
	require.Zero(t, buf.Len())

	logger.Warn("kept", slog.String("invoice", "INV07"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "staging", entry["env"])
	assert.Equal(t, "INV07", entry["invoice"])
}

func TestConfigQueueMirrorsRedis(t *testing.T) {
	cfg := &Config{RedisAddr: "redis:6379", RedisPassword: "secret", RedisDB: 2}
	assert.Equal(t, cfg.Redis().Addr, cfg.Queue().Addr)
	assert.Equal(t, "secret", cfg.Queue().Password)
	assert.Equal(t, 2, cfg.Redis().DB)
}

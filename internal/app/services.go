package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sunmax/ledger/internal/customers"
	"github.com/sunmax/ledger/internal/document"
	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/observability"
	"github.com/sunmax/ledger/internal/platform/lock"
	"github.com/sunmax/ledger/internal/quotations"
	"github.com/sunmax/ledger/internal/shared"
	"github.com/sunmax/ledger/internal/stats"
)

// ServiceDeps are the shared clients every binary opens.
type ServiceDeps struct {
	Config      *Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Redis       redis.UniversalClient
	Metrics     *observability.Metrics
	Regenerator invoicing.Regenerator
}

// Services is the wired domain layer.
type Services struct {
	Documents  *document.Store
	Invoices   *invoicing.Service
	Quotations *quotations.Service
	Customers  *customers.Service
	Stats      *stats.Service
}

// NewServices wires repositories, locks, caches and the document store.
func NewServices(deps ServiceDeps) *Services {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var locker *lock.Locker
	var idempotency *shared.IdempotencyStore
	var statsCache *stats.Cache
	if deps.Redis != nil {
		locker = lock.New(deps.Redis, lock.Config{TTL: cfg.PaymentLockTTL, Logger: logger})
		idempotency = shared.NewIdempotencyStore(deps.Redis, cfg.IdempotencyTTL)
		statsCache = stats.NewCache(deps.Redis, cfg.StatsCacheTTL)
	}

	documents := document.NewStore(document.StoreConfig{
		Dir:          cfg.DocumentDir,
		MinBytes:     cfg.DocumentMinBytes,
		WriteTimeout: cfg.DocumentWriteTimeout,
		Renderer:     document.NewRenderer(document.RendererConfig{PageCapacity: cfg.DocumentPageCapacity}),
		Logger:       logger,
		Metrics:      deps.Metrics,
	})

	statsService := stats.NewService(stats.NewRepository(deps.Pool), statsCache, logger)
	company := cfg.Company()

	invoiceCfg := invoicing.ServiceConfig{
		Documents:   documents,
		Regenerator: deps.Regenerator,
		Stats:       statsService,
		Metrics:     deps.Metrics,
		Logger:      logger,
		Company:     company,
	}
	// Interface fields stay nil rather than holding typed nil pointers.
	if locker != nil {
		invoiceCfg.Locker = locker
	}
	if idempotency != nil {
		invoiceCfg.Idempotency = idempotency
	}
	invoices := invoicing.NewService(invoicing.NewRepository(deps.Pool), invoiceCfg)

	quotationCfg := quotations.ServiceConfig{
		Invoices:  invoices,
		Documents: documents,
		Logger:    logger,
		Company:   company,
	}
	customerCfg := customers.ServiceConfig{Metrics: deps.Metrics, Logger: logger}
	if locker != nil {
		quotationCfg.Locker = locker
		customerCfg.Locker = locker
	}

	return &Services{
		Documents:  documents,
		Invoices:   invoices,
		Quotations: quotations.NewService(quotations.NewRepository(deps.Pool), quotationCfg),
		Customers:  customers.NewService(customers.NewRepository(deps.Pool), customerCfg),
		Stats:      statsService,
	}
}

// DocumentLoaders maps each document kind to the loader of its source record.
func (s *Services) DocumentLoaders() map[document.Kind]document.Loader {
	return map[document.Kind]document.Loader{
		document.KindInvoice:   s.Invoices.DocumentFor,
		document.KindQuotation: s.Quotations.DocumentFor,
	}
}

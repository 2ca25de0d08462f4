// Package stats derives sales statistics from committed invoices. Results
// are cached in redis but never treated as the source of truth.
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// TopN bounds the buyer and seller rankings.
const TopN = 5

// Totals are the ledger-wide sums.
type Totals struct {
	Invoices    int             `json:"total_sales"`
	Revenue     decimal.Decimal `json:"revenue"`
	Collected   decimal.Decimal `json:"collected"`
	Outstanding decimal.Decimal `json:"outstanding_balance"`
}

// ProductCount ranks an item by quantity sold.
type ProductCount struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Buyer ranks a customer by amount billed.
type Buyer struct {
	Name     string          `json:"name"`
	Phone    string          `json:"phone,omitempty"`
	Invoices int             `json:"invoices"`
	Total    decimal.Decimal `json:"total"`
}

// Summary is the dashboard payload.
type Summary struct {
	Totals
	ProductsSold int            `json:"products_sold"`
	MostPopular  *ProductCount  `json:"most_popular_product,omitempty"`
	TopBuyers    []Buyer        `json:"top_buyers"`
	TopSellers   []ProductCount `json:"top_sellers"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// Repository runs the aggregate queries.
type Repository interface {
	Totals(ctx context.Context) (Totals, error)
	ProductsSold(ctx context.Context) (int, error)
	TopProducts(ctx context.Context, limit int) ([]ProductCount, error)
	TopBuyers(ctx context.Context, limit int) ([]Buyer, error)
}

// Service assembles Summary values.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a Repository with a Cache helper. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger.With(slog.String("component", "stats")), now: time.Now}
}

// Summary returns the cached summary, computing it on a miss.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "ledger", "stats", "summary")
	if err != nil {
		s.logger.Warn("stats cache version", slog.Any("error", err))
		return s.Compute(ctx)
	}
	var out Summary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.Compute(ctx)
	})
	return out, err
}

// Compute runs every aggregate query concurrently against the store.
func (s *Service) Compute(ctx context.Context) (Summary, error) {
	var (
		totals  Totals
		sold    int
		sellers []ProductCount
		buyers  []Buyer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.repo.Totals(gctx)
		return err
	})
	g.Go(func() (err error) {
		sold, err = s.repo.ProductsSold(gctx)
		return err
	})
	g.Go(func() (err error) {
		sellers, err = s.repo.TopProducts(gctx, TopN)
		return err
	})
	g.Go(func() (err error) {
		buyers, err = s.repo.TopBuyers(gctx, TopN)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	out := Summary{
		Totals:       totals,
		ProductsSold: sold,
		TopBuyers:    buyers,
		TopSellers:   sellers,
		GeneratedAt:  s.now().UTC(),
	}
	if out.TopBuyers == nil {
		out.TopBuyers = []Buyer{}
	}
	if out.TopSellers == nil {
		out.TopSellers = []ProductCount{}
	}
	if len(sellers) > 0 {
		top := sellers[0]
		out.MostPopular = &top
	}
	return out, nil
}

// Bump drops cached summaries after a ledger change.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Reconcile discards the cached summary and warms a fresh one.
func (s *Service) Reconcile(ctx context.Context) error {
	if err := s.cache.Bump(ctx); err != nil {
		return err
	}
	_, err := s.Summary(ctx)
	return err
}

package stats

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres aggregate queries.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(amount_paid), 0),
		       COALESCE(SUM(total_amount - amount_paid), 0)
		FROM invoices`).Scan(&t.Invoices, &t.Revenue, &t.Collected, &t.Outstanding)
	return t, err
}

func (r *repository) ProductsSold(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)::int FROM invoice_items WHERE item_type = 'product'`).Scan(&n)
	return n, err
}

func (r *repository) TopProducts(ctx context.Context, limit int) ([]ProductCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT item_code, MIN(item_name), SUM(quantity)::int, SUM(total)
		FROM invoice_items
		WHERE item_type = 'product'
		GROUP BY item_code
		ORDER BY SUM(quantity) DESC, item_code
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ProductCount, error) {
		var p ProductCount
		err := row.Scan(&p.Code, &p.Name, &p.Quantity, &p.Revenue)
		return p, err
	})
}

func (r *repository) TopBuyers(ctx context.Context, limit int) ([]Buyer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT customer_name, MAX(customer_phone), COUNT(*)::int, SUM(total_amount)
		FROM invoices
		GROUP BY customer_name
		ORDER BY SUM(total_amount) DESC, customer_name
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Buyer, error) {
		var b Buyer
		err := row.Scan(&b.Name, &b.Phone, &b.Invoices, &b.Total)
		return b, err
	})
}

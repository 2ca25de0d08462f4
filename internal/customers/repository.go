package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/numbering"
	"github.com/sunmax/ledger/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres backed customer store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if _, inTx := r.db.(pgx.Tx); inTx {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) LastCode(ctx context.Context, _ numbering.Scheme) (string, error) {
	var code string
	err := r.db.QueryRow(ctx, `SELECT customer_code FROM customers ORDER BY id DESC LIMIT 1`).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return code, err
}

func (r *repository) Create(ctx context.Context, c *Customer) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO customers (
			customer_code, date, name, phone, address, product_description, payment_method,
			total_amount, amount_paid, payment_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		c.Code, c.Date, c.Name, c.Phone, c.Address, c.ProductDescription, c.PaymentMethod,
		c.TotalAmount, c.AmountPaid, string(c.Status),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("customer %s: %w", c.Code, numbering.ErrConflict)
	}
	return err
}

const customerColumns = `id, customer_code, date, name, phone, address, product_description, payment_method,
	total_amount, amount_paid, payment_status, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	var status string
	if err := row.Scan(&c.ID, &c.Code, &c.Date, &c.Name, &c.Phone, &c.Address, &c.ProductDescription,
		&c.PaymentMethod, &c.TotalAmount, &c.AmountPaid, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = invoicing.PaymentStatus(status)
	return &c, nil
}

func (r *repository) Get(ctx context.Context, code string) (*Customer, error) {
	return r.get(ctx, code, "")
}

func (r *repository) GetForUpdate(ctx context.Context, code string) (*Customer, error) {
	return r.get(ctx, code, " FOR UPDATE")
}

func (r *repository) get(ctx context.Context, code, suffix string) (*Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_code = $1`+suffix, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return c, err
}

func (r *repository) Update(ctx context.Context, c *Customer) error {
	err := r.db.QueryRow(ctx, `
		UPDATE customers SET
			name = $2, phone = $3, address = $4, product_description = $5, payment_method = $6,
			total_amount = $7, amount_paid = $8, payment_status = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Name, c.Phone, c.Address, c.ProductDescription, c.PaymentMethod,
		c.TotalAmount, c.AmountPaid, string(c.Status),
	).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repository) InsertPayment(ctx context.Context, p *Payment) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO customer_payments (customer_id, amount, payment_method, notes, payment_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.CustomerID, p.Amount, p.Method, p.Notes, p.PaidAt,
	).Scan(&p.ID)
}

func (r *repository) ListPayments(ctx context.Context, customerID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, customer_id, amount, payment_method, notes, payment_date
		FROM customer_payments WHERE customer_id = $1 ORDER BY payment_date, id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.Amount, &p.Method, &p.Notes, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	clause := "TRUE"
	var args []any
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		clause = "(customer_code ILIKE $1 OR name ILIKE $1 OR phone ILIKE $1)"
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * filter.PerPage
	}
	args = append(args, filter.PerPage, offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d`,
		customerColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *repository) Delete(ctx context.Context, customerID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, customerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

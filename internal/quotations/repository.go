package quotations

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

// NewRepository returns the Postgres backed quotation store.
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
	var number string
	err := r.db.QueryRow(ctx, `SELECT quotation_number FROM quotations ORDER BY id DESC LIMIT 1`).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (r *repository) Create(ctx context.Context, q *Quotation) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotations (
			quotation_number, date, customer_name, customer_address, customer_phone, customer_email,
			asked_about, subtotal, total_gst, total_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		q.Number, q.Date, q.Customer.Name, q.Customer.Address, q.Customer.Phone, q.Customer.Email,
		q.AskedAbout, q.Subtotal, q.TotalGST, q.TotalAmount,
	).Scan(&q.ID, &q.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("quotation %s: %w", q.Number, numbering.ErrConflict)
	}
	return err
}

func (r *repository) InsertItems(ctx context.Context, quotationID int64, items []Item) error {
	for i := range items {
		it := &items[i]
		if err := r.db.QueryRow(ctx, `
			INSERT INTO quotation_items (
				quotation_id, position, item_code, item_name, item_type, unit_price, quantity, gst_rate, gst_amount, total
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			quotationID, it.Position, it.Code, it.Name, string(it.ItemType), it.UnitPrice, it.Quantity,
			it.GSTRatePercent, it.GSTAmount, it.LineTotal,
		).Scan(&it.ID); err != nil {
			return fmt.Errorf("insert quotation item %d: %w", it.Position, err)
		}
	}
	return nil
}

const quotationColumns = `id, quotation_number, date, customer_name, customer_address, customer_phone, customer_email,
	asked_about, subtotal, total_gst, total_amount, converted_to, created_at`

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	if err := row.Scan(&q.ID, &q.Number, &q.Date, &q.Customer.Name, &q.Customer.Address, &q.Customer.Phone,
		&q.Customer.Email, &q.AskedAbout, &q.Subtotal, &q.TotalGST, &q.TotalAmount, &q.ConvertedTo, &q.CreatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *repository) Get(ctx context.Context, number string) (*Quotation, error) {
	q, err := scanQuotation(r.db.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE quotation_number = $1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, number)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, position, item_code, item_name, item_type, unit_price, quantity, gst_rate, gst_amount, total
		FROM quotation_items WHERE quotation_id = $1 ORDER BY position, id`, q.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		var itemType string
		if err := rows.Scan(&it.ID, &it.Position, &it.Code, &it.Name, &itemType, &it.UnitPrice, &it.Quantity,
			&it.GSTRatePercent, &it.GSTAmount, &it.LineTotal); err != nil {
			return nil, err
		}
		it.ItemType = invoicing.InvoiceType(itemType)
		q.Items = append(q.Items, it)
	}
	return q, rows.Err()
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	clause := "TRUE"
	var args []any
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		clause = "(quotation_number ILIKE $1 OR customer_name ILIKE $1 OR asked_about ILIKE $1)"
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quotations WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * filter.PerPage
	}
	args = append(args, filter.PerPage, offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM quotations WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		quotationColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *q)
	}
	return out, total, rows.Err()
}

func (r *repository) MarkConverted(ctx context.Context, quotationID int64, invoiceNumber string) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotations SET converted_to = $2 WHERE id = $1 AND converted_to = ''`, quotationID, invoiceNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyConverted
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, quotationID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotations WHERE id = $1`, quotationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

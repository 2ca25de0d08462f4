package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

// NewRepository returns the Postgres backed invoice store.
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

// LastCode returns the most recently created invoice number. Invoice numbers
// are ordered by insertion, not lexicographically.
func (r *repository) LastCode(ctx context.Context, _ numbering.Scheme) (string, error) {
	var number string
	err := r.db.QueryRow(ctx, `SELECT invoice_number FROM invoices ORDER BY id DESC LIMIT 1`).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (r *repository) CreateInvoice(ctx context.Context, inv *Invoice) error {
	const query = `
		INSERT INTO invoices (
			invoice_number, date, customer_name, customer_address, customer_phone, customer_email, customer_gstin,
			payment_method, invoice_type, subtotal, total_discount, discounted_subtotal, total_gst, total_amount,
			amount_paid, payment_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		inv.Number, inv.Date, inv.Customer.Name, inv.Customer.Address, inv.Customer.Phone, inv.Customer.Email,
		inv.Customer.GSTIN, inv.PaymentMethod, string(inv.Type), inv.Subtotal, inv.TotalDiscount,
		inv.DiscountedSubtotal, inv.TotalGST, inv.TotalAmount, inv.AmountPaid, string(inv.Status),
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("invoice %s: %w", inv.Number, numbering.ErrConflict)
	}
	return err
}

func (r *repository) InsertLines(ctx context.Context, invoiceID int64, lines []Line) error {
	const query = `
		INSERT INTO invoice_items (
			invoice_id, position, item_code, item_name, hsn_code, item_type, unit_price, quantity,
			discount_percent, gst_rate, subtotal, discount_amount, taxable_amount, gst_amount, total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`
	for i := range lines {
		l := &lines[i]
		if err := r.db.QueryRow(ctx, query,
			invoiceID, l.Position, l.Code, l.Name, l.HSN, string(l.ItemType), l.UnitPrice, l.Quantity,
			l.DiscountPercent, l.GSTRatePercent, l.Subtotal, l.DiscountAmount, l.TaxableAmount, l.GSTAmount, l.LineTotal,
		).Scan(&l.ID); err != nil {
			return fmt.Errorf("insert invoice line %d: %w", l.Position, err)
		}
	}
	return nil
}

func (r *repository) DeleteLines(ctx context.Context, invoiceID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID)
	return err
}

func (r *repository) InsertPayment(ctx context.Context, p *Payment) error {
	const query = `
		INSERT INTO payments (invoice_id, reference, amount, payment_method, notes, payment_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	return r.db.QueryRow(ctx, query, p.InvoiceID, p.Reference, p.Amount, p.Method, p.Notes, p.PaidAt).Scan(&p.ID)
}

const invoiceColumns = `
	id, invoice_number, date, customer_name, customer_address, customer_phone, customer_email, customer_gstin,
	payment_method, invoice_type, subtotal, total_discount, discounted_subtotal, total_gst, total_amount,
	amount_paid, payment_status, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var invType, status string
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.Date, &inv.Customer.Name, &inv.Customer.Address, &inv.Customer.Phone,
		&inv.Customer.Email, &inv.Customer.GSTIN, &inv.PaymentMethod, &invType, &inv.Subtotal, &inv.TotalDiscount,
		&inv.DiscountedSubtotal, &inv.TotalGST, &inv.TotalAmount, &inv.AmountPaid, &status,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Type = InvoiceType(invType)
	inv.Status = PaymentStatus(status)
	return &inv, nil
}

func (r *repository) Get(ctx context.Context, number string) (*Invoice, error) {
	return r.get(ctx, number, "")
}

func (r *repository) GetForUpdate(ctx context.Context, number string) (*Invoice, error) {
	return r.get(ctx, number, " FOR UPDATE")
}

func (r *repository) get(ctx context.Context, number, suffix string) (*Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`+suffix, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, number)
	}
	if err != nil {
		return nil, err
	}
	if inv.Lines, err = r.lines(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repository) lines(ctx context.Context, invoiceID int64) ([]Line, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, position, item_code, item_name, hsn_code, item_type, unit_price, quantity, discount_percent,
			gst_rate, subtotal, discount_amount, taxable_amount, gst_amount, total
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		var itemType string
		if err := rows.Scan(
			&l.ID, &l.Position, &l.Code, &l.Name, &l.HSN, &itemType, &l.UnitPrice, &l.Quantity, &l.DiscountPercent,
			&l.GSTRatePercent, &l.Subtotal, &l.DiscountAmount, &l.TaxableAmount, &l.GSTAmount, &l.LineTotal,
		); err != nil {
			return nil, err
		}
		l.ItemType = InvoiceType(itemType)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) UpdateHeader(ctx context.Context, inv *Invoice) error {
	const query = `
		UPDATE invoices SET
			date = $2, customer_name = $3, customer_address = $4, customer_phone = $5, customer_email = $6,
			customer_gstin = $7, payment_method = $8, invoice_type = $9, subtotal = $10, total_discount = $11,
			discounted_subtotal = $12, total_gst = $13, total_amount = $14, amount_paid = $15, payment_status = $16,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		inv.ID, inv.Date, inv.Customer.Name, inv.Customer.Address, inv.Customer.Phone, inv.Customer.Email,
		inv.Customer.GSTIN, inv.PaymentMethod, string(inv.Type), inv.Subtotal, inv.TotalDiscount,
		inv.DiscountedSubtotal, inv.TotalGST, inv.TotalAmount, inv.AmountPaid, string(inv.Status),
	).Scan(&inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrInvoiceNotFound, inv.Number)
	}
	return err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(invoice_number ILIKE $%d OR customer_name ILIKE $%d)", len(args), len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * perPage
	}
	args = append(args, perPage, offset)
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, clause, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

func (r *repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, reference, amount, payment_method, notes, payment_date
		FROM payments
		WHERE invoice_id = $1
		ORDER BY payment_date, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Reference, &p.Amount, &p.Method, &p.Notes, &p.PaidAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// Delete removes the invoice; lines and payments go with it through
// ON DELETE CASCADE.
func (r *repository) Delete(ctx context.Context, invoiceID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

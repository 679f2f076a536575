package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	portsrepo "github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	"github.com/SscSPs/hotel_billing/internal/models"
	"github.com/SscSPs/hotel_billing/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const invoiceColumns = `invoice_id, invoice_number, guest_ref, currency_code, line_items,
	subtotal, discount_percentage, discount_amount, service_charge_percentage, service_charge_amount,
	tax_rate, tax_amount, total, amount_paid, status, issued_date, due_date, cancelled_at,
	cancellation_reason, version, created_at, created_by, last_updated_at, last_updated_by`

type PgxInvoiceRepository struct {
	BaseRepository
}

func newPgxInvoiceRepository(pool *pgxpool.Pool) portsrepo.InvoiceRepositoryWithTx {
	return &PgxInvoiceRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.InvoiceRepositoryWithTx = (*PgxInvoiceRepository)(nil)

func scanInvoice(row pgx.Row) (models.Invoice, error) {
	var m models.Invoice
	err := row.Scan(
		&m.InvoiceID,
		&m.InvoiceNumber,
		&m.GuestRef,
		&m.CurrencyCode,
		&m.LineItems,
		&m.Subtotal,
		&m.DiscountPercentage,
		&m.DiscountAmount,
		&m.ServiceChargePercentage,
		&m.ServiceChargeAmount,
		&m.TaxRate,
		&m.TaxAmount,
		&m.Total,
		&m.AmountPaid,
		&m.Status,
		&m.IssuedDate,
		&m.DueDate,
		&m.CancelledAt,
		&m.CancellationReason,
		&m.Version,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	return m, err
}

// CreateInvoice inserts a new draft invoice.
func (r *PgxInvoiceRepository) CreateInvoice(ctx context.Context, invoice domain.Invoice) error {
	m := mapping.ToModelInvoice(invoice)
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24);
	`
	_, err := r.conn(ctx).Exec(ctx, query,
		m.InvoiceID, m.InvoiceNumber, m.GuestRef, m.CurrencyCode, m.LineItems,
		m.Subtotal, m.DiscountPercentage, m.DiscountAmount, m.ServiceChargePercentage, m.ServiceChargeAmount,
		m.TaxRate, m.TaxAmount, m.Total, m.AmountPaid, m.Status, m.IssuedDate, m.DueDate, m.CancelledAt,
		m.CancellationReason, m.Version, m.CreatedAt, m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: invoice %s", apperrors.ErrDuplicate, m.InvoiceNumber)
		}
		return fmt.Errorf("failed to insert invoice %s: %w", m.InvoiceID, err)
	}
	return nil
}

// UpdateInvoice writes every mutable column guarded by the version the
// caller read. A mismatch means someone else wrote first.
func (r *PgxInvoiceRepository) UpdateInvoice(ctx context.Context, invoice domain.Invoice) error {
	m := mapping.ToModelInvoice(invoice)
	query := `
		UPDATE invoices SET
			line_items = $3,
			subtotal = $4,
			discount_percentage = $5,
			discount_amount = $6,
			service_charge_percentage = $7,
			service_charge_amount = $8,
			tax_rate = $9,
			tax_amount = $10,
			total = $11,
			amount_paid = $12,
			status = $13,
			issued_date = $14,
			due_date = $15,
			cancelled_at = $16,
			cancellation_reason = $17,
			last_updated_at = $18,
			last_updated_by = $19,
			version = version + 1
		WHERE invoice_id = $1 AND version = $2;
	`
	tag, err := r.conn(ctx).Exec(ctx, query,
		m.InvoiceID, m.Version, m.LineItems,
		m.Subtotal, m.DiscountPercentage, m.DiscountAmount, m.ServiceChargePercentage, m.ServiceChargeAmount,
		m.TaxRate, m.TaxAmount, m.Total, m.AmountPaid, m.Status, m.IssuedDate, m.DueDate, m.CancelledAt,
		m.CancellationReason, m.LastUpdatedAt, m.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice %s: %w", m.InvoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, findErr := r.FindInvoiceByID(ctx, m.InvoiceID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("%w: invoice %s changed since version %d", apperrors.ErrStateConflict, m.InvoiceID, m.Version)
	}
	return nil
}

func (r *PgxInvoiceRepository) findOne(ctx context.Context, query, invoiceID string) (*domain.Invoice, error) {
	m, err := scanInvoice(r.conn(ctx).QueryRow(ctx, query, invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrInvoiceNotFound, invoiceID)
		}
		return nil, fmt.Errorf("failed to find invoice %s: %w", invoiceID, err)
	}
	d := mapping.ToDomainInvoice(m)
	return &d, nil
}

// FindInvoiceByID retrieves an invoice without locking it.
func (r *PgxInvoiceRepository) FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return r.findOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id = $1;`, invoiceID)
}

// FindInvoiceByIDForUpdate locks the invoice row until the transaction ends.
func (r *PgxInvoiceRepository) FindInvoiceByIDForUpdate(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	if !r.inTx(ctx) {
		return nil, notInTx("FindInvoiceByIDForUpdate")
	}
	return r.findOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id = $1 FOR UPDATE;`, invoiceID)
}

// ListInvoices lists invoices oldest first.
func (r *PgxInvoiceRepository) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	var (
		where []string
		args  []any
	)
	if filter.GuestRef != "" {
		args = append(args, filter.GuestRef)
		where = append(where, fmt.Sprintf("guest_ref = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, invoice_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	ms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Invoice, error) {
		return scanInvoice(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoices: %w", err)
	}
	return mapping.ToDomainInvoiceSlice(ms), nil
}

// ListOverdueCandidates returns unsettled invoices past their due date.
func (r *PgxInvoiceRepository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]string, error) {
	query := `
		SELECT invoice_id FROM invoices
		WHERE status IN ('ISSUED', 'PARTIALLY_PAID') AND due_date < $1
		ORDER BY due_date, invoice_id;
	`
	rows, err := r.conn(ctx).Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue invoices: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan overdue invoices: %w", err)
	}
	return ids, nil
}

package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	portsrepo "github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	"github.com/SscSPs/hotel_billing/internal/models"
	"github.com/SscSPs/hotel_billing/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const paymentColumns = `payment_id, guest_ref, invoice_id, amount, currency_code, method,
	is_deposit, reverses_payment_id, reference, paid_at, created_at, created_by`

// PgxPaymentRepository is the append-only payment ledger. It never issues
// UPDATE or DELETE against payments or payment_applications.
type PgxPaymentRepository struct {
	BaseRepository
}

func newPgxPaymentRepository(pool *pgxpool.Pool) portsrepo.PaymentRepositoryWithTx {
	return &PgxPaymentRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.PaymentRepositoryWithTx = (*PgxPaymentRepository)(nil)

func scanPayment(row pgx.Row) (models.Payment, error) {
	var m models.Payment
	err := row.Scan(
		&m.PaymentID,
		&m.GuestRef,
		&m.InvoiceID,
		&m.Amount,
		&m.CurrencyCode,
		&m.Method,
		&m.IsDeposit,
		&m.ReversesPaymentID,
		&m.Reference,
		&m.PaidAt,
		&m.CreatedAt,
		&m.CreatedBy,
	)
	return m, err
}

func (r *PgxPaymentRepository) SavePayment(ctx context.Context, payment domain.Payment) error {
	m := mapping.ToModelPayment(payment)
	query := `INSERT INTO payments (` + paymentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`
	_, err := r.conn(ctx).Exec(ctx, query,
		m.PaymentID, m.GuestRef, m.InvoiceID, m.Amount, m.CurrencyCode, m.Method,
		m.IsDeposit, m.ReversesPaymentID, m.Reference, m.PaidAt, m.CreatedAt, m.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err, "payments_reverses_payment_id_key") {
			return fmt.Errorf("%w: %s", apperrors.ErrPaymentAlreadyReversed, strVal(m.ReversesPaymentID))
		}
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: payment %s", apperrors.ErrDuplicate, m.PaymentID)
		}
		return fmt.Errorf("failed to insert payment %s: %w", m.PaymentID, err)
	}
	return nil
}

// SaveApplication relies on the unique payment_id to refuse double application.
func (r *PgxPaymentRepository) SaveApplication(ctx context.Context, application domain.PaymentApplication) error {
	m := mapping.ToModelPaymentApplication(application)
	query := `
		INSERT INTO payment_applications (payment_id, invoice_id, applied_amount, exchange_rate, applied_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.conn(ctx).Exec(ctx, query,
		m.PaymentID, m.InvoiceID, m.AppliedAmount, m.ExchangeRate, m.AppliedAt, m.CreatedBy)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: payment %s", apperrors.ErrDuplicatePaymentApplication, m.PaymentID)
		}
		return fmt.Errorf("failed to insert application of %s: %w", m.PaymentID, err)
	}
	return nil
}

func (r *PgxPaymentRepository) findOne(ctx context.Context, query string, arg any) (*domain.Payment, error) {
	m, err := scanPayment(r.conn(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	d := mapping.ToDomainPayment(m)
	return &d, nil
}

func (r *PgxPaymentRepository) FindPaymentByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	p, err := r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1;`, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrPaymentNotFound, paymentID)
		}
		return nil, fmt.Errorf("failed to find payment %s: %w", paymentID, err)
	}
	return p, nil
}

func (r *PgxPaymentRepository) FindReversalOf(ctx context.Context, paymentID string) (*domain.Payment, error) {
	p, err := r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reverses_payment_id = $1;`, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find reversal of %s: %w", paymentID, err)
	}
	return p, nil
}

func (r *PgxPaymentRepository) collect(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	ms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Payment, error) {
		return scanPayment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan payments: %w", err)
	}
	return mapping.ToDomainPaymentSlice(ms), nil
}

func (r *PgxPaymentRepository) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	var (
		where []string
		args  []any
	)
	if filter.GuestRef != "" {
		args = append(args, filter.GuestRef)
		where = append(where, fmt.Sprintf("p.guest_ref = $%d", len(args)))
	}
	if filter.InvoiceID != "" {
		args = append(args, filter.InvoiceID)
		where = append(where, fmt.Sprintf(
			"(p.invoice_id = $%[1]d OR EXISTS (SELECT 1 FROM payment_applications a WHERE a.payment_id = p.payment_id AND a.invoice_id = $%[1]d))",
			len(args)))
	}
	if filter.DepositsOnly {
		where = append(where, "p.is_deposit")
	}
	query := `SELECT ` + paymentColumns + ` FROM payments p`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY p.paid_at, p.payment_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.collect(ctx, query, args...)
}

// ListOrphanDeposits returns unapplied, unreversed deposits for a guest in
// capture order. PaidAt is client supplied and plays no part.
func (r *PgxPaymentRepository) ListOrphanDeposits(ctx context.Context, guestRef string) ([]domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + ` FROM payments p
		WHERE p.guest_ref = $1
		  AND p.is_deposit
		  AND p.reverses_payment_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM payment_applications a WHERE a.payment_id = p.payment_id)
		  AND NOT EXISTS (SELECT 1 FROM payments r WHERE r.reverses_payment_id = p.payment_id)
		ORDER BY p.created_at, p.payment_id;
	`
	return r.collect(ctx, query, guestRef)
}

func (r *PgxPaymentRepository) FindApplication(ctx context.Context, paymentID string) (*domain.PaymentApplication, error) {
	query := `
		SELECT payment_id, invoice_id, applied_amount, exchange_rate, applied_at, created_by
		FROM payment_applications WHERE payment_id = $1;
	`
	var m models.PaymentApplication
	err := r.conn(ctx).QueryRow(ctx, query, paymentID).Scan(
		&m.PaymentID, &m.InvoiceID, &m.AppliedAmount, &m.ExchangeRate, &m.AppliedAt, &m.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find application of %s: %w", paymentID, err)
	}
	d := mapping.ToDomainPaymentApplication(m)
	return &d, nil
}

func (r *PgxPaymentRepository) SumApplications(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(applied_amount), 0) FROM payment_applications WHERE invoice_id = $1;`,
		invoiceID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum applications for %s: %w", invoiceID, err)
	}
	return sum, nil
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	portsrepo "github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	"github.com/SscSPs/hotel_billing/internal/models"
	"github.com/SscSPs/hotel_billing/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// registryLockKey is the pg_advisory_xact_lock key for registry mutations.
const registryLockKey int64 = 0x6375727265 // "curre"

const currencyColumns = `currency_code, symbol, name, exchange_rate, is_default, is_system,
	created_at, created_by, last_updated_at, last_updated_by`

type PgxCurrencyRepository struct {
	BaseRepository
}

// newPgxCurrencyRepository creates a new repository for currency data.
func newPgxCurrencyRepository(pool *pgxpool.Pool) portsrepo.CurrencyRepositoryWithTx {
	return &PgxCurrencyRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

// Ensure implementation matches interface
var _ portsrepo.CurrencyRepositoryWithTx = (*PgxCurrencyRepository)(nil)

func scanCurrency(row pgx.Row) (models.Currency, error) {
	var c models.Currency
	err := row.Scan(
		&c.CurrencyCode,
		&c.Symbol,
		&c.Name,
		&c.ExchangeRate,
		&c.IsDefault,
		&c.IsSystem,
		&c.CreatedAt,
		&c.CreatedBy,
		&c.LastUpdatedAt,
		&c.LastUpdatedBy,
	)
	return c, err
}

// LockRegistry takes a transaction-scoped advisory lock so registry
// mutations never interleave.
func (r *PgxCurrencyRepository) LockRegistry(ctx context.Context) error {
	if !r.inTx(ctx) {
		return notInTx("LockRegistry")
	}
	if _, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, registryLockKey); err != nil {
		return fmt.Errorf("failed to lock currency registry: %w", err)
	}
	return nil
}

// SaveCurrency inserts or updates a currency.
func (r *PgxCurrencyRepository) SaveCurrency(ctx context.Context, currency domain.Currency) error {
	m := mapping.ToModelCurrency(currency)

	query := `
		INSERT INTO currencies (` + currencyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (currency_code) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			exchange_rate = EXCLUDED.exchange_rate,
			is_default = EXCLUDED.is_default,
			is_system = EXCLUDED.is_system,
			last_updated_at = EXCLUDED.last_updated_at,
			last_updated_by = EXCLUDED.last_updated_by;
	`
	_, err := r.conn(ctx).Exec(ctx, query,
		m.CurrencyCode,
		m.Symbol,
		m.Name,
		m.ExchangeRate,
		m.IsDefault,
		m.IsSystem,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err, "currencies_single_default") {
			return fmt.Errorf("%w: second default currency %s", apperrors.ErrStateConflict, m.CurrencyCode)
		}
		return fmt.Errorf("failed to save currency %s: %w", m.CurrencyCode, err)
	}
	return nil
}

// SaveCurrencies writes a rescaled registry. The default flag is cleared
// first so the single-default index never sees two rows.
func (r *PgxCurrencyRepository) SaveCurrencies(ctx context.Context, currencies []domain.Currency) error {
	if !r.inTx(ctx) {
		return notInTx("SaveCurrencies")
	}
	if _, err := r.conn(ctx).Exec(ctx, `UPDATE currencies SET is_default = FALSE WHERE is_default`); err != nil {
		return fmt.Errorf("failed to clear default currency: %w", err)
	}
	batch := &pgx.Batch{}
	for _, c := range currencies {
		batch.Queue(`
			UPDATE currencies
			SET exchange_rate = $2, is_default = $3, last_updated_at = $4, last_updated_by = $5
			WHERE currency_code = $1`,
			c.CurrencyCode, c.ExchangeRate, c.IsDefault, c.LastUpdatedAt, c.LastUpdatedBy)
	}
	tx := r.conn(ctx).(pgx.Tx)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to update currencies: %w", err)
	}
	return nil
}

// DeleteCurrency removes a currency row.
func (r *PgxCurrencyRepository) DeleteCurrency(ctx context.Context, currencyCode string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM currencies WHERE currency_code = $1`, currencyCode)
	if err != nil {
		return fmt.Errorf("failed to delete currency %s: %w", currencyCode, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrCurrencyNotFound, currencyCode)
	}
	return nil
}

// FindCurrencyByCode retrieves a currency by its 3-letter code.
func (r *PgxCurrencyRepository) FindCurrencyByCode(ctx context.Context, currencyCode string) (*domain.Currency, error) {
	query := `SELECT ` + currencyColumns + ` FROM currencies WHERE currency_code = $1;`
	m, err := scanCurrency(r.conn(ctx).QueryRow(ctx, query, currencyCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrCurrencyNotFound, currencyCode)
		}
		return nil, fmt.Errorf("failed to find currency by code %s: %w", currencyCode, err)
	}
	d := mapping.ToDomainCurrency(m)
	return &d, nil
}

// FindCurrenciesByCodes reads the requested rates in a single statement so
// they come from one snapshot.
func (r *PgxCurrencyRepository) FindCurrenciesByCodes(ctx context.Context, currencyCodes []string) (map[string]domain.Currency, error) {
	query := `SELECT ` + currencyColumns + ` FROM currencies WHERE currency_code = ANY($1);`
	rows, err := r.conn(ctx).Query(ctx, query, currencyCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	defer rows.Close()

	ms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Currency, error) {
		return scanCurrency(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan currencies: %w", err)
	}
	out := make(map[string]domain.Currency, len(ms))
	for _, m := range ms {
		out[m.CurrencyCode] = mapping.ToDomainCurrency(m)
	}
	return out, nil
}

// ListCurrencies retrieves all currencies.
func (r *PgxCurrencyRepository) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	query := `SELECT ` + currencyColumns + ` FROM currencies ORDER BY currency_code;`
	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	defer rows.Close()

	ms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Currency, error) {
		return scanCurrency(row)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []domain.Currency{}, nil
		}
		return nil, fmt.Errorf("failed to scan currencies: %w", err)
	}
	return mapping.ToDomainCurrencySlice(ms), nil
}

// IsCurrencyReferenced reports whether an invoice or payment uses the code.
func (r *PgxCurrencyRepository) IsCurrencyReferenced(ctx context.Context, currencyCode string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM invoices WHERE currency_code = $1)
		    OR EXISTS (SELECT 1 FROM payments WHERE currency_code = $1);
	`
	var referenced bool
	if err := r.conn(ctx).QueryRow(ctx, query, currencyCode).Scan(&referenced); err != nil {
		return false, fmt.Errorf("failed to check references to %s: %w", currencyCode, err)
	}
	return referenced, nil
}

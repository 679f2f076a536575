package pgsql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	Pool *pgxpool.Pool
}

// conn returns the transaction carried by ctx, or the pool.
func (r *BaseRepository) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.Pool
}

func (r *BaseRepository) inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// WithinTx runs fn in a transaction. Nested calls join the outer one.
func (r *BaseRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.inTx(ctx) {
		return fn(ctx)
	}
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return apperrors.NewAppError(500, "failed to begin transaction", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "Failed to rollback transaction", slog.String("error", rbErr.Error()))
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewAppError(500, "failed to commit transaction", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique_violation on constraint
// (any constraint if constraint is empty).
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func notInTx(op string) error {
	return fmt.Errorf("pgsql: %s requires a transaction", op)
}

package repositories

import "context"

// TransactionManager runs a unit of work atomically.
type TransactionManager interface {
	// WithinTx runs fn inside a single transaction carried by the context
	// passed to fn. Repository calls made with that context join the
	// transaction. Any error returned by fn rolls everything back.
	// Nested calls join the outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

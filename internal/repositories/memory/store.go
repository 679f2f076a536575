// Package memory is an in-process implementation of the repository ports,
// used by tests and by STORE=memory deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
)

type txKey struct{ store *Store }

// Store keeps every table in maps behind one mutex. A transaction holds the
// mutex for its whole duration and restores a snapshot if it fails, which
// gives the same serialisation the Postgres row and advisory locks give.
type Store struct {
	mu sync.Mutex

	currencies   map[string]domain.Currency
	invoices     map[string]domain.Invoice
	payments     map[string]domain.Payment
	applications map[string]domain.PaymentApplication // keyed by payment id
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		currencies:   make(map[string]domain.Currency),
		invoices:     make(map[string]domain.Invoice),
		payments:     make(map[string]domain.Payment),
		applications: make(map[string]domain.PaymentApplication),
	}
}

// Provider wires one store behind every repository port.
func (s *Store) Provider(idem repositories.IdempotencyStore) repositories.RepositoryProvider {
	return repositories.RepositoryProvider{
		CurrencyRepo: s,
		InvoiceRepo:  s,
		PaymentRepo:  s,
		Idempotency:  idem,
	}
}

func (s *Store) inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{s}).(bool)
	return v
}

// lock acquires the mutex unless ctx already runs inside one of our transactions.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	currencies   map[string]domain.Currency
	invoices     map[string]domain.Invoice
	payments     map[string]domain.Payment
	applications map[string]domain.PaymentApplication
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		currencies:   cloneMap(s.currencies),
		invoices:     cloneMap(s.invoices),
		payments:     cloneMap(s.payments),
		applications: cloneMap(s.applications),
	}
}

func (s *Store) restore(snap snapshot) {
	s.currencies = snap.currencies
	s.invoices = snap.invoices
	s.payments = snap.payments
	s.applications = snap.applications
}

// WithinTx implements repositories.TransactionManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{s}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sortByCreated[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return id(items[i]) < id(items[j])
	})
}

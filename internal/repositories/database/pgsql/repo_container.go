package pgsql

import (
	portsrepo "github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool, idem portsrepo.IdempotencyStore) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		CurrencyRepo: newPgxCurrencyRepository(dbPool),
		InvoiceRepo:  newPgxInvoiceRepository(dbPool),
		PaymentRepo:  newPgxPaymentRepository(dbPool),
		Idempotency:  idem,
	}
}

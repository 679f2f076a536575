package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
)

// InvoiceReader defines read operations for invoices
type InvoiceReader interface {
	// FindInvoiceByID returns apperrors.ErrInvoiceNotFound if absent.
	FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error)

	// FindInvoiceByIDForUpdate reads the invoice and holds its row lock until
	// the surrounding transaction ends.
	FindInvoiceByIDForUpdate(ctx context.Context, invoiceID string) (*domain.Invoice, error)

	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)

	// ListOverdueCandidates returns ids of Issued/PartiallyPaid invoices due before asOf.
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]string, error)
}

// InvoiceWriter defines write operations for invoices
type InvoiceWriter interface {
	CreateInvoice(ctx context.Context, invoice domain.Invoice) error

	// UpdateInvoice persists the invoice and bumps its version.
	UpdateInvoice(ctx context.Context, invoice domain.Invoice) error
}

// InvoiceRepositoryFacade combines all invoice-related repository interfaces
type InvoiceRepositoryFacade interface {
	InvoiceReader
	InvoiceWriter
}

// InvoiceRepositoryWithTx extends InvoiceRepositoryFacade with transaction capabilities
type InvoiceRepositoryWithTx interface {
	InvoiceRepositoryFacade
	TransactionManager
}

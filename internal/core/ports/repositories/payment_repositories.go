package repositories

import (
	"context"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/shopspring/decimal"
)

// PaymentReader defines read operations for the payment ledger
type PaymentReader interface {
	// FindPaymentByID returns apperrors.ErrPaymentNotFound if absent.
	FindPaymentByID(ctx context.Context, paymentID string) (*domain.Payment, error)

	// FindReversalOf returns the entry reversing paymentID, or nil.
	FindReversalOf(ctx context.Context, paymentID string) (*domain.Payment, error)

	// ListPayments with an InvoiceID matches payments captured against the
	// invoice and held payments later applied to it.
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)

	// ListOrphanDeposits returns the guest's deposits that are neither applied
	// nor reversed, in capture order (created_at, then payment id).
	ListOrphanDeposits(ctx context.Context, guestRef string) ([]domain.Payment, error)

	// FindApplication returns the application of paymentID, or nil.
	FindApplication(ctx context.Context, paymentID string) (*domain.PaymentApplication, error)

	// SumApplications replays the application ledger for an invoice.
	SumApplications(ctx context.Context, invoiceID string) (decimal.Decimal, error)
}

// PaymentWriter defines append-only write operations for the payment ledger
type PaymentWriter interface {
	SavePayment(ctx context.Context, payment domain.Payment) error

	// SaveApplication appends an application. Returns
	// apperrors.ErrDuplicatePaymentApplication if the payment was already applied.
	SaveApplication(ctx context.Context, application domain.PaymentApplication) error
}

// PaymentRepositoryFacade combines all payment-related repository interfaces
type PaymentRepositoryFacade interface {
	PaymentReader
	PaymentWriter
}

// PaymentRepositoryWithTx extends PaymentRepositoryFacade with transaction capabilities
type PaymentRepositoryWithTx interface {
	PaymentRepositoryFacade
	TransactionManager
}

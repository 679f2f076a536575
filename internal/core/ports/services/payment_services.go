package services

import (
	"context"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/dto"
)

// PaymentReaderSvc defines read operations for the payment ledger
type PaymentReaderSvc interface {
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
}

// PaymentWriterSvc defines capture and reconciliation operations
type PaymentWriterSvc interface {
	// RecordPayment appends a ledger entry and, when req.InvoiceID is set,
	// applies it in the same transaction. A non-empty idempotencyKey makes
	// retries return the original entry.
	RecordPayment(ctx context.Context, req dto.RecordPaymentRequest, idempotencyKey string, userID string) (*domain.PaymentResult, error)

	ApplyPayment(ctx context.Context, paymentID, invoiceID string, userID string) (*domain.PaymentResult, error)

	// ReconcileOrphanDeposits applies the guest's unattached deposits oldest first.
	ReconcileOrphanDeposits(ctx context.Context, guestRef, invoiceID string, userID string) (*domain.ReconciliationResult, error)

	ReversePayment(ctx context.Context, paymentID, reason string, userID string) (*domain.PaymentResult, error)
}

// PaymentSvcFacade combines all payment-related service interfaces
type PaymentSvcFacade interface {
	PaymentReaderSvc
	PaymentWriterSvc
}

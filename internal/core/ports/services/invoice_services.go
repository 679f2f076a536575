package services

import (
	"context"
	"time"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/dto"
)

// InvoiceReaderSvc defines read operations for invoices
type InvoiceReaderSvc interface {
	GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)

	// GetInvoiceBalance compares the cached amount paid with a replay of the
	// payment application ledger.
	GetInvoiceBalance(ctx context.Context, invoiceID string) (*domain.InvoiceBalance, error)
}

// InvoiceWriterSvc defines the lifecycle transitions of an invoice
type InvoiceWriterSvc interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest, userID string) (*domain.Invoice, error)
	UpdateInvoiceLines(ctx context.Context, invoiceID string, req dto.UpdateInvoiceLinesRequest, userID string) (*domain.Invoice, error)
	IssueInvoice(ctx context.Context, invoiceID string, req dto.IssueInvoiceRequest, userID string) (*domain.Invoice, error)
	CancelInvoice(ctx context.Context, invoiceID string, reason string, userID string) (*domain.Invoice, error)

	// MarkOverdue is idempotent; ineligible invoices are returned unchanged.
	MarkOverdue(ctx context.Context, invoiceID string, now time.Time, userID string) (*domain.Invoice, error)

	// SweepOverdue marks every eligible invoice, each in its own transaction.
	SweepOverdue(ctx context.Context, now time.Time, userID string) (*domain.OverdueSweepSummary, error)
}

// InvoiceSvcFacade combines all invoice-related service interfaces
type InvoiceSvcFacade interface {
	InvoiceReaderSvc
	InvoiceWriterSvc
}

package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
)

func copyInvoice(inv domain.Invoice) domain.Invoice {
	inv.LineItems = append([]domain.LineItem(nil), inv.LineItems...)
	return inv
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) error {
	defer s.lock(ctx)()
	if _, ok := s.invoices[invoice.InvoiceID]; ok {
		return fmt.Errorf("%w: invoice %s", apperrors.ErrDuplicate, invoice.InvoiceID)
	}
	for _, existing := range s.invoices {
		if existing.InvoiceNumber == invoice.InvoiceNumber {
			return fmt.Errorf("%w: invoice number %s", apperrors.ErrDuplicate, invoice.InvoiceNumber)
		}
	}
	s.invoices[invoice.InvoiceID] = copyInvoice(invoice)
	return nil
}

func (s *Store) UpdateInvoice(ctx context.Context, invoice domain.Invoice) error {
	defer s.lock(ctx)()
	current, ok := s.invoices[invoice.InvoiceID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrInvoiceNotFound, invoice.InvoiceID)
	}
	if current.Version != invoice.Version {
		return fmt.Errorf("%w: invoice %s version %d, have %d", apperrors.ErrStateConflict, invoice.InvoiceID, current.Version, invoice.Version)
	}
	invoice.Version++
	s.invoices[invoice.InvoiceID] = copyInvoice(invoice)
	return nil
}

func (s *Store) FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	defer s.lock(ctx)()
	inv, ok := s.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvoiceNotFound, invoiceID)
	}
	inv = copyInvoice(inv)
	return &inv, nil
}

// FindInvoiceByIDForUpdate is FindInvoiceByID; the transaction holds the store mutex.
func (s *Store) FindInvoiceByIDForUpdate(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.FindInvoiceByID(ctx, invoiceID)
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	defer s.lock(ctx)()
	out := make([]domain.Invoice, 0)
	for _, inv := range s.invoices {
		if filter.GuestRef != "" && inv.GuestRef != filter.GuestRef {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, copyInvoice(inv))
	}
	sortByCreated(out,
		func(i domain.Invoice) time.Time { return i.CreatedAt },
		func(i domain.Invoice) string { return i.InvoiceID })
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *Store) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]string, error) {
	defer s.lock(ctx)()
	var ids []string
	for _, inv := range s.invoices {
		if inv.Status != domain.InvoiceIssued && inv.Status != domain.InvoicePartiallyPaid {
			continue
		}
		if inv.DueDate != nil && asOf.After(*inv.DueDate) {
			ids = append(ids, inv.InvoiceID)
		}
	}
	return ids, nil
}

var _ repositories.InvoiceRepositoryWithTx = (*Store)(nil)

package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

func (s *Store) SavePayment(ctx context.Context, payment domain.Payment) error {
	defer s.lock(ctx)()
	if _, ok := s.payments[payment.PaymentID]; ok {
		return fmt.Errorf("%w: payment %s", apperrors.ErrDuplicate, payment.PaymentID)
	}
	s.payments[payment.PaymentID] = payment
	return nil
}

func (s *Store) SaveApplication(ctx context.Context, application domain.PaymentApplication) error {
	defer s.lock(ctx)()
	if _, ok := s.applications[application.PaymentID]; ok {
		return fmt.Errorf("%w: payment %s", apperrors.ErrDuplicatePaymentApplication, application.PaymentID)
	}
	s.applications[application.PaymentID] = application
	return nil
}

func (s *Store) FindPaymentByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	defer s.lock(ctx)()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrPaymentNotFound, paymentID)
	}
	return &p, nil
}

func (s *Store) FindReversalOf(ctx context.Context, paymentID string) (*domain.Payment, error) {
	defer s.lock(ctx)()
	for _, p := range s.payments {
		if p.ReversesPaymentID != nil && *p.ReversesPaymentID == paymentID {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *Store) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	defer s.lock(ctx)()
	out := make([]domain.Payment, 0)
	for _, p := range s.payments {
		if filter.GuestRef != "" && p.GuestRef != filter.GuestRef {
			continue
		}
		if filter.InvoiceID != "" && !s.settles(p, filter.InvoiceID) {
			continue
		}
		if filter.DepositsOnly && !p.IsDeposit {
			continue
		}
		out = append(out, p)
	}
	sortByCreated(out,
		func(p domain.Payment) time.Time { return p.PaidAt },
		func(p domain.Payment) string { return p.PaymentID })
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *Store) ListOrphanDeposits(ctx context.Context, guestRef string) ([]domain.Payment, error) {
	defer s.lock(ctx)()
	reversed := make(map[string]bool)
	for _, p := range s.payments {
		if p.ReversesPaymentID != nil {
			reversed[*p.ReversesPaymentID] = true
		}
	}
	out := make([]domain.Payment, 0)
	for _, p := range s.payments {
		if !p.IsDeposit || p.IsReversal() || p.GuestRef != guestRef || reversed[p.PaymentID] {
			continue
		}
		if _, applied := s.applications[p.PaymentID]; applied {
			continue
		}
		out = append(out, p)
	}
	sortByCreated(out,
		func(p domain.Payment) time.Time { return p.CreatedAt },
		func(p domain.Payment) string { return p.PaymentID })
	return out, nil
}

// settles reports whether p was captured against invoiceID or later applied to it.
func (s *Store) settles(p domain.Payment, invoiceID string) bool {
	if p.InvoiceID != nil && *p.InvoiceID == invoiceID {
		return true
	}
	a, ok := s.applications[p.PaymentID]
	return ok && a.InvoiceID == invoiceID
}

func (s *Store) FindApplication(ctx context.Context, paymentID string) (*domain.PaymentApplication, error) {
	defer s.lock(ctx)()
	a, ok := s.applications[paymentID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) SumApplications(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	defer s.lock(ctx)()
	sum := decimal.Zero
	for _, a := range s.applications {
		if a.InvoiceID == invoiceID {
			sum = sum.Add(a.AppliedAmount)
		}
	}
	return sum, nil
}

var _ repositories.PaymentRepositoryWithTx = (*Store)(nil)

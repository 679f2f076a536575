package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/core/money"
	portsrepo "github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/hotel_billing/internal/core/ports/services"
	"github.com/SscSPs/hotel_billing/internal/dto"
	"github.com/SscSPs/hotel_billing/internal/platform/metrics"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const (
	idempotencyPrefix = "payment:"
	defaultIdemTTL    = 24 * time.Hour
)

type paymentService struct {
	BaseService
	paymentRepo  portsrepo.PaymentRepositoryWithTx
	invoiceRepo  portsrepo.InvoiceRepositoryFacade
	currencyRepo portsrepo.CurrencyReader
	idempotency  portsrepo.IdempotencyStore
	idemTTL      time.Duration
	tolerance    decimal.Decimal
}

// PaymentServiceOption configures the payment service
type PaymentServiceOption func(*paymentService)

// WithIdempotencyStore enables Idempotency-Key handling on capture.
func WithIdempotencyStore(store portsrepo.IdempotencyStore, ttl time.Duration) PaymentServiceOption {
	return func(s *paymentService) {
		s.idempotency = store
		if ttl > 0 {
			s.idemTTL = ttl
		}
	}
}

// WithOverpaymentTolerance lets an application exceed the total by up to tolerance.
func WithOverpaymentTolerance(tolerance decimal.Decimal) PaymentServiceOption {
	return func(s *paymentService) {
		if !tolerance.IsNegative() {
			s.tolerance = tolerance
		}
	}
}

// WithPaymentBase sets shared metrics and clock.
func WithPaymentBase(base BaseService) PaymentServiceOption {
	return func(s *paymentService) {
		s.BaseService = base
	}
}

// NewPaymentService creates the payment capture and reconciliation service.
// All repositories must share one transaction scope.
func NewPaymentService(
	paymentRepo portsrepo.PaymentRepositoryWithTx,
	invoiceRepo portsrepo.InvoiceRepositoryFacade,
	currencyRepo portsrepo.CurrencyReader,
	options ...PaymentServiceOption,
) portssvc.PaymentSvcFacade {
	svc := &paymentService{
		paymentRepo:  paymentRepo,
		invoiceRepo:  invoiceRepo,
		currencyRepo: currencyRepo,
		idemTTL:      defaultIdemTTL,
		tolerance:    decimal.Zero,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var (
	_ portssvc.PaymentSvcFacade = (*paymentService)(nil)
	_ DepositReconciler         = (*paymentService)(nil)
)

func paymentKind(p domain.Payment) string {
	switch {
	case p.IsReversal():
		return "reversal"
	case p.IsDeposit:
		return "deposit"
	}
	return "payment"
}

func (s *paymentService) validateCapture(ctx context.Context, req dto.RecordPaymentRequest) error {
	if strings.TrimSpace(req.GuestRef) == "" {
		return apperrors.NewValidationError("guestRef is required")
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidAmount, req.Amount.String())
	}
	if !req.Method.IsValid() {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidPaymentMethod, req.Method)
	}
	if !validCurrencyCode(req.CurrencyCode) {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidCurrencyCode, req.CurrencyCode)
	}
	if !req.Amount.Equal(money.Round(req.Amount)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", apperrors.ErrInvalidAmount, req.Amount.String(), money.MinorUnits)
	}
	currency, err := s.currencyRepo.FindCurrencyByCode(ctx, req.CurrencyCode)
	if err != nil {
		return err
	}
	if !money.Round(req.Amount.Div(currency.Rate())).IsPositive() {
		return fmt.Errorf("%w: %s %s is worth nothing in the base currency", apperrors.ErrInvalidAmount, req.Amount.String(), req.CurrencyCode)
	}
	return nil
}

// sameCapture reports whether p is the ledger entry req would have produced.
// A retried idempotency key must carry the original request.
func sameCapture(p *domain.Payment, req dto.RecordPaymentRequest) bool {
	var invoiceID string
	if req.InvoiceID != nil {
		invoiceID = *req.InvoiceID
	}
	var paidInvoice string
	if p.InvoiceID != nil {
		paidInvoice = *p.InvoiceID
	}
	return p.GuestRef == req.GuestRef &&
		p.Amount.Equal(req.Amount) &&
		p.CurrencyCode == req.CurrencyCode &&
		p.Method == req.Method &&
		p.IsDeposit == req.IsDeposit &&
		paidInvoice == invoiceID
}

// RecordPayment captures a ledger entry. With an idempotency key, the first
// successful capture wins and retries get its result back.
func (s *paymentService) RecordPayment(ctx context.Context, req dto.RecordPaymentRequest, idempotencyKey string, userID string) (*domain.PaymentResult, error) {
	if err := s.validateCapture(ctx, req); err != nil {
		return nil, s.Reject(ctx, "record_payment", err, slog.String("guest_ref", req.GuestRef))
	}

	key := strings.TrimSpace(idempotencyKey)
	if key == "" || s.idempotency == nil {
		return s.capture(ctx, req, userID)
	}
	key = idempotencyPrefix + key

	if result, err := s.replay(ctx, key, req); result != nil || err != nil {
		if err != nil {
			return nil, s.Reject(ctx, "record_payment", err, slog.String("idempotency_key", idempotencyKey))
		}
		return result, nil
	}
	claimed, err := s.idempotency.Claim(ctx, key, s.idemTTL)
	if err != nil {
		return nil, s.Reject(ctx, "record_payment", fmt.Errorf("claiming idempotency key: %w", err))
	}
	if !claimed {
		return nil, s.Reject(ctx, "record_payment", apperrors.ErrIdempotencyKeyInProgress, slog.String("idempotency_key", idempotencyKey))
	}

	result, err := s.capture(ctx, req, userID)
	if err != nil {
		if relErr := s.idempotency.Release(ctx, key); relErr != nil {
			s.LogError(ctx, relErr, "Failed to release idempotency key", slog.String("idempotency_key", idempotencyKey))
		}
		return nil, err
	}
	if err := s.idempotency.Complete(ctx, key, result.Payment.PaymentID, s.idemTTL); err != nil {
		// The payment is committed; a retry after this point may capture twice.
		s.LogError(ctx, err, "Failed to complete idempotency key",
			slog.String("idempotency_key", idempotencyKey),
			slog.String("payment_id", result.Payment.PaymentID))
	}
	return result, nil
}

// replay returns the stored result for key, ErrIdempotencyKeyInProgress while
// the original is running, ErrIdempotencyKeyReused when req differs from the
// original capture, or (nil, nil) when the key is unknown.
func (s *paymentService) replay(ctx context.Context, key string, req dto.RecordPaymentRequest) (*domain.PaymentResult, error) {
	paymentID, found, err := s.idempotency.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("looking up idempotency key: %w", err)
	}
	if !found {
		return nil, nil
	}
	if paymentID == "" {
		return nil, apperrors.ErrIdempotencyKeyInProgress
	}
	payment, err := s.paymentRepo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !sameCapture(payment, req) {
		return nil, fmt.Errorf("%w: key already produced payment %s", apperrors.ErrIdempotencyKeyReused, paymentID)
	}
	result := &domain.PaymentResult{Payment: *payment}
	if result.Application, err = s.paymentRepo.FindApplication(ctx, paymentID); err != nil {
		return nil, err
	}
	if payment.InvoiceID != nil {
		if result.Invoice, err = s.invoiceRepo.FindInvoiceByID(ctx, *payment.InvoiceID); err != nil {
			return nil, err
		}
	}
	s.LogInfo(ctx, "Replayed idempotent payment capture", slog.String("payment_id", paymentID))
	return result, nil
}

func (s *paymentService) capture(ctx context.Context, req dto.RecordPaymentRequest, userID string) (*domain.PaymentResult, error) {
	now := s.Now()
	paidAt := now
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}
	payment := domain.Payment{
		PaymentID:    ulid.Make().String(),
		GuestRef:     req.GuestRef,
		Amount:       req.Amount,
		CurrencyCode: req.CurrencyCode,
		Method:       req.Method,
		IsDeposit:    req.IsDeposit,
		Reference:    req.Reference,
		PaidAt:       paidAt,
		AuditFields:  newAuditFields(now, userID),
	}

	if req.InvoiceID == nil || *req.InvoiceID == "" {
		if err := s.paymentRepo.SavePayment(ctx, payment); err != nil {
			return nil, s.Reject(ctx, "record_payment", err)
		}
		s.recorded(ctx, payment)
		return &domain.PaymentResult{Payment: payment}, nil
	}

	invoiceID := *req.InvoiceID
	payment.InvoiceID = &invoiceID
	result := &domain.PaymentResult{Payment: payment}
	err := s.paymentRepo.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoiceRepo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.GuestRef != payment.GuestRef {
			return fmt.Errorf("%w: invoice %s", apperrors.ErrGuestMismatch, invoiceID)
		}
		if err := s.paymentRepo.SavePayment(ctx, payment); err != nil {
			return err
		}
		app, err := s.applyLocked(ctx, payment, inv, now, userID)
		if err != nil {
			return err
		}
		result.Application = app
		result.Invoice = inv
		return nil
	})
	if err != nil {
		return nil, s.Reject(ctx, "record_payment", err, slog.String("invoice_id", invoiceID))
	}
	s.recorded(ctx, payment)
	s.applied(ctx, result.Application, result.Invoice, metrics.SourceDirect)
	return result, nil
}

// applyLocked converts payment into the invoice currency and applies it. The
// caller holds the invoice row lock.
func (s *paymentService) applyLocked(ctx context.Context, payment domain.Payment, inv *domain.Invoice, now time.Time, userID string) (*domain.PaymentApplication, error) {
	existing, err := s.paymentRepo.FindApplication(ctx, payment.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: payment %s", apperrors.ErrDuplicatePaymentApplication, payment.PaymentID)
	}
	if err := inv.CanAcceptPayment(); err != nil {
		return nil, err
	}

	currencies, err := s.currencyRepo.FindCurrenciesByCodes(ctx, []string{payment.CurrencyCode, inv.CurrencyCode})
	if err != nil {
		return nil, err
	}
	from, ok := currencies[payment.CurrencyCode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCurrencyNotFound, payment.CurrencyCode)
	}
	to, ok := currencies[inv.CurrencyCode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCurrencyNotFound, inv.CurrencyCode)
	}
	converted := money.Convert(payment.Amount, from, to)
	if !converted.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s is worth nothing in %s", apperrors.ErrInvalidAmount, payment.Amount.String(), payment.CurrencyCode, inv.CurrencyCode)
	}
	if inv.AmountPaid.Add(converted).GreaterThan(inv.Total.Add(s.tolerance)) {
		return nil, fmt.Errorf("%w: %s %s against %s outstanding", apperrors.ErrOverpaymentNotAllowed,
			converted.StringFixed(money.MinorUnits), inv.CurrencyCode, inv.Outstanding().StringFixed(money.MinorUnits))
	}

	app := domain.PaymentApplication{
		PaymentID:     payment.PaymentID,
		InvoiceID:     inv.InvoiceID,
		AppliedAmount: converted,
		ExchangeRate:  money.CrossRate(from, to),
		AppliedAt:     now,
		CreatedBy:     userID,
	}
	if err := s.paymentRepo.SaveApplication(ctx, app); err != nil {
		return nil, err
	}
	if err := inv.RecordPayment(converted); err != nil {
		return nil, err
	}
	if err := saveInvoice(ctx, s.invoiceRepo, inv, now, userID); err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *paymentService) recorded(ctx context.Context, p domain.Payment) {
	s.Metrics.PaymentRecorded(string(p.Method), paymentKind(p))
	s.LogInfo(ctx, "Payment recorded",
		slog.String("payment_id", p.PaymentID),
		slog.String("guest_ref", p.GuestRef),
		slog.String("amount", p.Amount.String()),
		slog.String("currency_code", p.CurrencyCode),
		slog.Bool("deposit", p.IsDeposit))
}

func (s *paymentService) applied(ctx context.Context, app *domain.PaymentApplication, inv *domain.Invoice, source string) {
	if app == nil || inv == nil {
		return
	}
	s.Metrics.Applied(source)
	if inv.Status == domain.InvoicePaid {
		s.Metrics.InvoiceTransition(string(domain.InvoicePaid))
	}
	s.LogInfo(ctx, "Payment applied",
		slog.String("payment_id", app.PaymentID),
		slog.String("invoice_id", app.InvoiceID),
		slog.String("applied_amount", app.AppliedAmount.String()),
		slog.String("exchange_rate", app.ExchangeRate.String()),
		slog.String("status", string(inv.Status)))
}

func (s *paymentService) ApplyPayment(ctx context.Context, paymentID, invoiceID string, userID string) (*domain.PaymentResult, error) {
	var result *domain.PaymentResult
	err := s.paymentRepo.WithinTx(ctx, func(ctx context.Context) error {
		payment, err := s.paymentRepo.FindPaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.IsReversal() {
			return fmt.Errorf("%w: payment %s is a reversal", apperrors.ErrInvalidReversal, paymentID)
		}
		existing, err := s.paymentRepo.FindApplication(ctx, paymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: payment %s applied to %s", apperrors.ErrDuplicatePaymentApplication, paymentID, existing.InvoiceID)
		}
		reversal, err := s.paymentRepo.FindReversalOf(ctx, paymentID)
		if err != nil {
			return err
		}
		if reversal != nil {
			return fmt.Errorf("%w: payment %s", apperrors.ErrPaymentAlreadyReversed, paymentID)
		}

		inv, err := s.invoiceRepo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.GuestRef != payment.GuestRef {
			return fmt.Errorf("%w: invoice %s", apperrors.ErrGuestMismatch, invoiceID)
		}
		app, err := s.applyLocked(ctx, *payment, inv, s.Now(), userID)
		if err != nil {
			return err
		}
		result = &domain.PaymentResult{Payment: *payment, Application: app, Invoice: inv}
		return nil
	})
	if err != nil {
		return nil, s.Reject(ctx, "apply_payment", err,
			slog.String("payment_id", paymentID),
			slog.String("invoice_id", invoiceID))
	}
	source := metrics.SourceDirect
	if result.Payment.IsDeposit {
		source = metrics.SourceDeposit
	}
	s.applied(ctx, result.Application, result.Invoice, source)
	return result, nil
}

// ReconcileOrphanDeposits applies the guest's held deposits in capture order.
// The first deposit that would overpay, and every later one, stays unattached.
// A deposit too small to register in the invoice currency is skipped alone.
func (s *paymentService) ReconcileOrphanDeposits(ctx context.Context, guestRef, invoiceID string, userID string) (*domain.ReconciliationResult, error) {
	result := &domain.ReconciliationResult{
		InvoiceID: invoiceID,
		Applied:   []domain.PaymentApplication{},
		Skipped:   []string{},
	}
	var paid bool
	err := s.paymentRepo.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoiceRepo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if guestRef == "" {
			guestRef = inv.GuestRef
		}
		if inv.GuestRef != guestRef {
			return fmt.Errorf("%w: invoice %s", apperrors.ErrGuestMismatch, invoiceID)
		}
		if err := inv.CanAcceptPayment(); err != nil {
			return err
		}
		result.Invoice = inv

		deposits, err := s.paymentRepo.ListOrphanDeposits(ctx, guestRef)
		if err != nil {
			return err
		}
		now := s.Now()
		for i, deposit := range deposits {
			if inv.Status == domain.InvoicePaid {
				break
			}
			app, err := s.applyLocked(ctx, deposit, inv, now, userID)
			if errors.Is(err, apperrors.ErrInvalidAmount) {
				// Worth nothing in the invoice currency; leave it held.
				result.Skipped = append(result.Skipped, deposit.PaymentID)
				continue
			}
			if errors.Is(err, apperrors.ErrOverpaymentNotAllowed) {
				for _, rest := range deposits[i:] {
					result.Skipped = append(result.Skipped, rest.PaymentID)
				}
				break
			}
			if err != nil {
				return err
			}
			result.Applied = append(result.Applied, *app)
		}
		paid = inv.Status == domain.InvoicePaid
		return nil
	})
	if err != nil {
		return nil, s.Reject(ctx, "reconcile_deposits", err,
			slog.String("guest_ref", guestRef),
			slog.String("invoice_id", invoiceID))
	}

	for range result.Applied {
		s.Metrics.Applied(metrics.SourceDeposit)
	}
	if paid && len(result.Applied) > 0 {
		s.Metrics.InvoiceTransition(string(domain.InvoicePaid))
	}
	s.LogInfo(ctx, "Deposits reconciled",
		slog.String("invoice_id", invoiceID),
		slog.Int("applied", len(result.Applied)),
		slog.Int("skipped", len(result.Skipped)),
		slog.String("status", string(result.Invoice.Status)))
	return result, nil
}

// ReversePayment appends the reversing entry and, if the original was
// applied, takes exactly the applied amount back off the invoice.
func (s *paymentService) ReversePayment(ctx context.Context, paymentID, reason string, userID string) (*domain.PaymentResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, s.Reject(ctx, "reverse_payment", apperrors.NewValidationError("reversal reason is required"))
	}

	var result *domain.PaymentResult
	err := s.paymentRepo.WithinTx(ctx, func(ctx context.Context) error {
		original, err := s.paymentRepo.FindPaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if original.IsReversal() {
			return fmt.Errorf("%w: payment %s is a reversal", apperrors.ErrInvalidReversal, paymentID)
		}
		existing, err := s.paymentRepo.FindReversalOf(ctx, paymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: payment %s reversed by %s", apperrors.ErrPaymentAlreadyReversed, paymentID, existing.PaymentID)
		}
		app, err := s.paymentRepo.FindApplication(ctx, paymentID)
		if err != nil {
			return err
		}

		var inv *domain.Invoice
		if app != nil {
			if inv, err = s.invoiceRepo.FindInvoiceByIDForUpdate(ctx, app.InvoiceID); err != nil {
				return err
			}
			if err := inv.ReversePayment(app.AppliedAmount); err != nil {
				return err
			}
		}

		now := s.Now()
		reversesID := original.PaymentID
		reversal := domain.Payment{
			PaymentID:         ulid.Make().String(),
			GuestRef:          original.GuestRef,
			InvoiceID:         original.InvoiceID,
			Amount:            original.Amount,
			CurrencyCode:      original.CurrencyCode,
			Method:            original.Method,
			IsDeposit:         original.IsDeposit,
			ReversesPaymentID: &reversesID,
			Reference:         reason,
			PaidAt:            now,
			AuditFields:       newAuditFields(now, userID),
		}
		if err := s.paymentRepo.SavePayment(ctx, reversal); err != nil {
			return err
		}
		result = &domain.PaymentResult{Payment: reversal}
		if app == nil {
			return nil
		}

		negative := domain.PaymentApplication{
			PaymentID:     reversal.PaymentID,
			InvoiceID:     app.InvoiceID,
			AppliedAmount: app.AppliedAmount.Neg(),
			ExchangeRate:  app.ExchangeRate,
			AppliedAt:     now,
			CreatedBy:     userID,
		}
		if err := s.paymentRepo.SaveApplication(ctx, negative); err != nil {
			return err
		}
		if err := saveInvoice(ctx, s.invoiceRepo, inv, now, userID); err != nil {
			return err
		}
		result.Application = &negative
		result.Invoice = inv
		return nil
	})
	if err != nil {
		return nil, s.Reject(ctx, "reverse_payment", err, slog.String("payment_id", paymentID))
	}

	s.recorded(ctx, result.Payment)
	if result.Application != nil {
		s.Metrics.Applied(metrics.SourceReversal)
	}
	s.LogInfo(ctx, "Payment reversed",
		slog.String("payment_id", paymentID),
		slog.String("reversal_id", result.Payment.PaymentID),
		slog.String("reason", reason))
	return result, nil
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.paymentRepo.FindPaymentByID(ctx, paymentID)
}

func (s *paymentService) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	payments, err := s.paymentRepo.ListPayments(ctx, filter)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		return []domain.Payment{}, nil
	}
	return payments, nil
}

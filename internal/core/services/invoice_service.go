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
	portsrepo "github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/hotel_billing/internal/core/ports/services"
	"github.com/SscSPs/hotel_billing/internal/dto"
	"github.com/SscSPs/hotel_billing/internal/platform/config"
	"github.com/SscSPs/hotel_billing/internal/utils/accounting"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// invoiceNumberAttempts bounds how often CreateInvoice redraws a number that
// collided with one minted on another node.
const invoiceNumberAttempts = 3

// DepositReconciler applies a guest's held deposits to an invoice.
type DepositReconciler interface {
	ReconcileOrphanDeposits(ctx context.Context, guestRef, invoiceID string, userID string) (*domain.ReconciliationResult, error)
}

type invoiceService struct {
	BaseService
	invoiceRepo  portsrepo.InvoiceRepositoryWithTx
	currencyRepo portsrepo.CurrencyReader
	paymentRepo  portsrepo.PaymentReader
	billing      config.BillingConfig
	numbers      *snowflake.Node
	reconciler   DepositReconciler
}

// InvoiceServiceOption configures the invoice service
type InvoiceServiceOption func(*invoiceService)

// WithDepositReconciler enables deposit reconciliation after issue.
func WithDepositReconciler(r DepositReconciler) InvoiceServiceOption {
	return func(s *invoiceService) {
		s.reconciler = r
	}
}

// WithInvoiceBase sets shared metrics and clock.
func WithInvoiceBase(base BaseService) InvoiceServiceOption {
	return func(s *invoiceService) {
		s.BaseService = base
	}
}

// NewInvoiceService creates the invoice lifecycle service. Invoice numbers are
// "INV-" followed by a snowflake id from node billing.InvoiceNumberNode.
func NewInvoiceService(
	invoiceRepo portsrepo.InvoiceRepositoryWithTx,
	currencyRepo portsrepo.CurrencyReader,
	paymentRepo portsrepo.PaymentReader,
	billing config.BillingConfig,
	options ...InvoiceServiceOption,
) (portssvc.InvoiceSvcFacade, error) {
	node, err := snowflake.NewNode(billing.InvoiceNumberNode)
	if err != nil {
		return nil, fmt.Errorf("invoice number generator: %w", err)
	}
	svc := &invoiceService{
		invoiceRepo:  invoiceRepo,
		currencyRepo: currencyRepo,
		paymentRepo:  paymentRepo,
		billing:      billing,
		numbers:      node,
	}
	for _, option := range options {
		option(svc)
	}
	return svc, nil
}

var _ portssvc.InvoiceSvcFacade = (*invoiceService)(nil)

func (s *invoiceService) limits() accounting.Limits {
	return accounting.Limits{TaxRateCeiling: s.billing.TaxRateCeiling}
}

// resolveRates layers per-invoice overrides on top of base.
func resolveRates(base domain.ChargeRates, o dto.ChargeOverrides) domain.ChargeRates {
	rates := base
	if o.DiscountPercentage != nil {
		rates.DiscountPercentage = *o.DiscountPercentage
	}
	if o.ServiceChargePercentage != nil {
		rates.ServiceChargePercentage = *o.ServiceChargePercentage
	}
	if o.TaxRate != nil {
		rates.TaxRate = *o.TaxRate
	}
	return rates
}

func (s *invoiceService) defaultRates() domain.ChargeRates {
	return domain.ChargeRates{
		DiscountPercentage:      s.billing.DefaultDiscount,
		ServiceChargePercentage: s.billing.DefaultServiceCharge,
		TaxRate:                 s.billing.DefaultTaxRate,
	}
}

// saveInvoice persists inv under the version it was read at and advances the
// in-memory copy to match.
func saveInvoice(ctx context.Context, repo portsrepo.InvoiceWriter, inv *domain.Invoice, now time.Time, userID string) error {
	touch(&inv.AuditFields, now, userID)
	if err := repo.UpdateInvoice(ctx, *inv); err != nil {
		return err
	}
	inv.Version++
	return nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest, userID string) (*domain.Invoice, error) {
	if strings.TrimSpace(req.GuestRef) == "" {
		return nil, s.Reject(ctx, "create_invoice", apperrors.NewValidationError("guestRef is required"))
	}
	if !validCurrencyCode(req.CurrencyCode) {
		return nil, s.Reject(ctx, "create_invoice", fmt.Errorf("%w: %q", apperrors.ErrInvalidCurrencyCode, req.CurrencyCode))
	}
	if _, err := s.currencyRepo.FindCurrencyByCode(ctx, req.CurrencyCode); err != nil {
		return nil, s.Reject(ctx, "create_invoice", err, slog.String("currency_code", req.CurrencyCode))
	}

	rates := resolveRates(s.defaultRates(), req.ChargeOverrides)
	items, breakdown, err := accounting.ComputeCharges(dto.ToLineItems(req.LineItems), rates, s.limits())
	if err != nil {
		return nil, s.Reject(ctx, "create_invoice", err)
	}

	now := s.Now()
	invoice := domain.Invoice{
		InvoiceID:     uuid.NewString(),
		InvoiceNumber: "INV-" + s.numbers.Generate().String(),
		GuestRef:      req.GuestRef,
		CurrencyCode:  req.CurrencyCode,
		AmountPaid:    decimal.Zero,
		Status:        domain.InvoiceDraft,
		AuditFields:   newAuditFields(now, userID),
	}
	if err := invoice.ApplyCharges(items, rates, breakdown); err != nil {
		return nil, s.Reject(ctx, "create_invoice", err)
	}
	if err := s.insertInvoice(ctx, &invoice); err != nil {
		return nil, s.Reject(ctx, "create_invoice", err, slog.String("invoice_id", invoice.InvoiceID))
	}

	s.Metrics.InvoiceTransition(string(domain.InvoiceDraft))
	s.LogInfo(ctx, "Invoice created",
		slog.String("invoice_id", invoice.InvoiceID),
		slog.String("invoice_number", invoice.InvoiceNumber),
		slog.String("total", invoice.Total.StringFixed(2)))
	return &invoice, nil
}

// insertInvoice stores inv, drawing a fresh number when another instance
// already took the current one.
func (s *invoiceService) insertInvoice(ctx context.Context, inv *domain.Invoice) error {
	var err error
	for attempt := 1; attempt <= invoiceNumberAttempts; attempt++ {
		if err = s.invoiceRepo.CreateInvoice(ctx, *inv); !errors.Is(err, apperrors.ErrDuplicate) {
			return err
		}
		s.LogWarn(ctx, err, "Invoice number taken, retrying",
			slog.String("invoice_number", inv.InvoiceNumber),
			slog.Int("attempt", attempt))
		inv.InvoiceNumber = "INV-" + s.numbers.Generate().String()
	}
	return err
}

func (s *invoiceService) UpdateInvoiceLines(ctx context.Context, invoiceID string, req dto.UpdateInvoiceLinesRequest, userID string) (*domain.Invoice, error) {
	var updated *domain.Invoice
	err := s.invoiceRepo.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoiceRepo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != domain.InvoiceDraft {
			return fmt.Errorf("%w: invoice %s is %s", apperrors.ErrInvoiceNotDraft, inv.InvoiceID, inv.Status)
		}
		rates := resolveRates(inv.ChargeRates, req.ChargeOverrides)
		items, breakdown, err := accounting.ComputeCharges(dto.ToLineItems(req.LineItems), rates, s.limits())
		if err != nil {
			return err
		}
		if err := inv.ApplyCharges(items, rates, breakdown); err != nil {
			return err
		}
		if err := saveInvoice(ctx, s.invoiceRepo, inv, s.Now(), userID); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, s.Reject(ctx, "update_invoice_lines", err, slog.String("invoice_id", invoiceID))
	}
	return updated, nil
}

// IssueInvoice recomputes and freezes the charges, then optionally pulls in
// the guest's held deposits in a follow-up transaction.
func (s *invoiceService) IssueInvoice(ctx context.Context, invoiceID string, req dto.IssueInvoiceRequest, userID string) (*domain.Invoice, error) {
	var issued *domain.Invoice
	err := s.invoiceRepo.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoiceRepo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		items, breakdown, err := accounting.ComputeCharges(inv.LineItems, inv.ChargeRates, s.limits())
		if err != nil {
			return err
		}
		if err := inv.ApplyCharges(items, inv.ChargeRates, breakdown); err != nil {
			return err
		}
		now := s.Now()
		due := now.Add(s.billing.PaymentTerms)
		if req.DueDate != nil {
			due = req.DueDate.UTC()
		}
		if err := inv.Issue(now, due); err != nil {
			return err
		}
		if err := saveInvoice(ctx, s.invoiceRepo, inv, now, userID); err != nil {
			return err
		}
		issued = inv
		return nil
	})
	if err != nil {
		return nil, s.Reject(ctx, "issue_invoice", err, slog.String("invoice_id", invoiceID))
	}

	s.Metrics.InvoiceTransition(string(domain.InvoiceIssued))
	s.LogInfo(ctx, "Invoice issued",
		slog.String("invoice_id", issued.InvoiceID),
		slog.String("total", issued.Total.StringFixed(2)),
		slog.Time("due_date", *issued.DueDate))

	if !s.billing.AutoReconcileDeposits || s.reconciler == nil {
		return issued, nil
	}
	result, err := s.reconciler.ReconcileOrphanDeposits(ctx, issued.GuestRef, issued.InvoiceID, userID)
	if err != nil {
		// The invoice stays issued; deposits can be reconciled explicitly later.
		s.LogWarn(ctx, err, "Deposit reconciliation after issue failed", slog.String("invoice_id", issued.InvoiceID))
		return issued, nil
	}
	if result.Invoice != nil {
		return result.Invoice, nil
	}
	return issued, nil
}

func (s *invoiceService) CancelInvoice(ctx context.Context, invoiceID string, reason string, userID string) (*domain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, s.Reject(ctx, "cancel_invoice", apperrors.NewValidationError("cancellation reason is required"))
	}
	var cancelled *domain.Invoice
	err := s.invoiceRepo.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoiceRepo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		now := s.Now()
		if err := inv.Cancel(reason, now); err != nil {
			return err
		}
		if err := saveInvoice(ctx, s.invoiceRepo, inv, now, userID); err != nil {
			return err
		}
		cancelled = inv
		return nil
	})
	if err != nil {
		return nil, s.Reject(ctx, "cancel_invoice", err, slog.String("invoice_id", invoiceID))
	}
	s.Metrics.InvoiceTransition(string(domain.InvoiceCancelled))
	s.LogInfo(ctx, "Invoice cancelled", slog.String("invoice_id", invoiceID), slog.String("reason", reason))
	return cancelled, nil
}

func (s *invoiceService) markOverdue(ctx context.Context, invoiceID string, now time.Time, userID string) (*domain.Invoice, bool, error) {
	var (
		result  *domain.Invoice
		changed bool
	)
	err := s.invoiceRepo.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoiceRepo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		result = inv
		if changed = inv.MarkOverdue(now); !changed {
			return nil
		}
		return saveInvoice(ctx, s.invoiceRepo, inv, now, userID)
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.Metrics.InvoiceTransition(string(domain.InvoiceOverdue))
		s.LogInfo(ctx, "Invoice marked overdue", slog.String("invoice_id", invoiceID))
	}
	return result, changed, nil
}

func (s *invoiceService) MarkOverdue(ctx context.Context, invoiceID string, now time.Time, userID string) (*domain.Invoice, error) {
	if now.IsZero() {
		now = s.Now()
	}
	inv, _, err := s.markOverdue(ctx, invoiceID, now, userID)
	if err != nil {
		return nil, s.Reject(ctx, "mark_overdue", err, slog.String("invoice_id", invoiceID))
	}
	return inv, nil
}

// SweepOverdue continues past individual failures and reports them.
func (s *invoiceService) SweepOverdue(ctx context.Context, now time.Time, userID string) (*domain.OverdueSweepSummary, error) {
	if now.IsZero() {
		now = s.Now()
	}
	ids, err := s.invoiceRepo.ListOverdueCandidates(ctx, now)
	if err != nil {
		return nil, s.Reject(ctx, "sweep_overdue", err)
	}

	summary := &domain.OverdueSweepSummary{AsOf: now, Checked: len(ids), Marked: []string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		_, changed, err := s.markOverdue(ctx, id, now, userID)
		if err != nil {
			if summary.Failures == nil {
				summary.Failures = make(map[string]string)
			}
			summary.Failures[id] = err.Error()
			s.LogError(ctx, err, "Overdue sweep failed for invoice", slog.String("invoice_id", id))
			continue
		}
		if changed {
			summary.Marked = append(summary.Marked, id)
		}
	}
	s.Metrics.OverdueMarked(len(summary.Marked))
	s.LogInfo(ctx, "Overdue sweep finished",
		slog.Int("checked", summary.Checked),
		slog.Int("marked", len(summary.Marked)),
		slog.Int("failed", len(summary.Failures)))
	return summary, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.invoiceRepo.FindInvoiceByID(ctx, invoiceID)
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown invoice status %q", filter.Status))
	}
	invoices, err := s.invoiceRepo.ListInvoices(ctx, filter)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		return []domain.Invoice{}, nil
	}
	return invoices, nil
}

func (s *invoiceService) GetInvoiceBalance(ctx context.Context, invoiceID string) (*domain.InvoiceBalance, error) {
	inv, err := s.invoiceRepo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.paymentRepo.SumApplications(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	balance := &domain.InvoiceBalance{
		InvoiceID:        inv.InvoiceID,
		CurrencyCode:     inv.CurrencyCode,
		Status:           inv.Status,
		Total:            inv.Total,
		AmountPaid:       inv.AmountPaid,
		Outstanding:      inv.Outstanding(),
		LedgerAmountPaid: ledger,
		Consistent:       ledger.Equal(inv.AmountPaid),
	}
	if !balance.Consistent {
		s.GetLogger(ctx).Error("Invoice amount paid disagrees with payment ledger",
			slog.String("invoice_id", invoiceID),
			slog.String("cached", inv.AmountPaid.String()),
			slog.String("ledger", ledger.String()))
	}
	return balance, nil
}

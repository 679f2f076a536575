package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/shopspring/decimal"
)

// InvoiceStatus indicates where an invoice is in its lifecycle.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "DRAFT"
	InvoiceIssued        InvoiceStatus = "ISSUED"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceOverdue       InvoiceStatus = "OVERDUE"
	InvoiceCancelled     InvoiceStatus = "CANCELLED"
)

// IsValid reports whether s is a known status.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceDraft, InvoiceIssued, InvoicePartiallyPaid, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// IsTerminal returns true for Paid and Cancelled.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoicePaid || s == InvoiceCancelled
}

// LineItem is a single billable line supplied by the booking/order module.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"` // round(Quantity * UnitPrice), set by the charge pipeline
}

// ChargeRates holds the percentages applied to an invoice. They default from
// hotel settings and may be overridden per invoice.
type ChargeRates struct {
	DiscountPercentage      decimal.Decimal `json:"discountPercentage"`
	ServiceChargePercentage decimal.Decimal `json:"serviceChargePercentage"`
	TaxRate                 decimal.Decimal `json:"taxRate"`
}

// ChargeBreakdown is the output of the charge pipeline.
// Total = Subtotal - DiscountAmount + ServiceChargeAmount + TaxAmount.
type ChargeBreakdown struct {
	Subtotal            decimal.Decimal `json:"subtotal"`
	DiscountAmount      decimal.Decimal `json:"discountAmount"`
	ServiceChargeAmount decimal.Decimal `json:"serviceChargeAmount"`
	TaxAmount           decimal.Decimal `json:"taxAmount"`
	Total               decimal.Decimal `json:"total"`
}

// Invoice is the aggregate root for billing and reconciliation.
type Invoice struct {
	InvoiceID          string          `json:"invoiceID"`     // Primary Key (UUID)
	InvoiceNumber      string          `json:"invoiceNumber"` // Unique, human facing
	GuestRef           string          `json:"guestRef"`
	CurrencyCode       string          `json:"currencyCode"` // Frozen at creation
	LineItems          []LineItem      `json:"lineItems"`
	AmountPaid         decimal.Decimal `json:"amountPaid"` // Cached projection of the payment application ledger
	Status             InvoiceStatus   `json:"status"`
	IssuedDate         *time.Time      `json:"issuedDate,omitempty"`
	DueDate            *time.Time      `json:"dueDate,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	Version            int64           `json:"version"`
	ChargeRates
	ChargeBreakdown
	AuditFields
}

// ApplyCharges replaces the line items and derived totals. Only drafts are mutable.
func (inv *Invoice) ApplyCharges(items []LineItem, rates ChargeRates, breakdown ChargeBreakdown) error {
	if inv.Status != InvoiceDraft {
		return fmt.Errorf("%w: invoice %s is %s", apperrors.ErrInvoiceNotDraft, inv.InvoiceID, inv.Status)
	}
	inv.LineItems = items
	inv.ChargeRates = rates
	inv.ChargeBreakdown = breakdown
	return nil
}

// Issue moves a draft to Issued and fixes its due date.
func (inv *Invoice) Issue(now, dueDate time.Time) error {
	if inv.Status != InvoiceDraft {
		return fmt.Errorf("%w: invoice %s is %s", apperrors.ErrInvoiceNotDraft, inv.InvoiceID, inv.Status)
	}
	if len(inv.LineItems) == 0 {
		return fmt.Errorf("%w: invoice %s", apperrors.ErrEmptyInvoice, inv.InvoiceID)
	}
	if dueDate.Before(now) {
		return fmt.Errorf("%w: due %s, issued %s", apperrors.ErrInvalidDueDate, dueDate.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	issued := now
	due := dueDate
	inv.IssuedDate = &issued
	inv.DueDate = &due
	inv.Status = InvoiceIssued
	return nil
}

// CanAcceptPayment reports why a payment cannot be applied, or nil if it can.
func (inv *Invoice) CanAcceptPayment() error {
	switch inv.Status {
	case InvoiceDraft:
		return fmt.Errorf("%w: invoice %s", apperrors.ErrInvoiceNotIssued, inv.InvoiceID)
	case InvoiceCancelled:
		return fmt.Errorf("%w: invoice %s", apperrors.ErrInvoiceCancelled, inv.InvoiceID)
	case InvoicePaid:
		return fmt.Errorf("%w: invoice %s", apperrors.ErrInvoiceAlreadyPaid, inv.InvoiceID)
	}
	return nil
}

// RecordPayment adds an amount already converted into the invoice currency
// and re-evaluates the status. An overdue invoice stays overdue until settled.
func (inv *Invoice) RecordPayment(applied decimal.Decimal) error {
	if err := inv.CanAcceptPayment(); err != nil {
		return err
	}
	if !applied.IsPositive() {
		return fmt.Errorf("%w: applied amount %s", apperrors.ErrInvalidAmount, applied.String())
	}
	inv.AmountPaid = inv.AmountPaid.Add(applied)
	switch {
	case inv.AmountPaid.GreaterThanOrEqual(inv.Total):
		inv.Status = InvoicePaid
	case inv.Status == InvoiceOverdue:
	case inv.AmountPaid.IsPositive():
		inv.Status = InvoicePartiallyPaid
	}
	return nil
}

// ReversePayment removes a previously applied amount. Terminal invoices are frozen.
func (inv *Invoice) ReversePayment(applied decimal.Decimal) error {
	if err := inv.CanAcceptPayment(); err != nil {
		return err
	}
	if !applied.IsPositive() || applied.GreaterThan(inv.AmountPaid) {
		return fmt.Errorf("%w: cannot reverse %s of %s paid", apperrors.ErrInvalidReversal, applied.String(), inv.AmountPaid.String())
	}
	inv.AmountPaid = inv.AmountPaid.Sub(applied)
	if inv.Status == InvoicePartiallyPaid && inv.AmountPaid.IsZero() {
		inv.Status = InvoiceIssued
	}
	return nil
}

// MarkOverdue flags an unsettled invoice whose due date has passed.
// It is idempotent and reports whether the status changed.
func (inv *Invoice) MarkOverdue(now time.Time) bool {
	if inv.Status != InvoiceIssued && inv.Status != InvoicePartiallyPaid {
		return false
	}
	if inv.DueDate == nil || !now.After(*inv.DueDate) || inv.AmountPaid.GreaterThanOrEqual(inv.Total) {
		return false
	}
	inv.Status = InvoiceOverdue
	return true
}

// Cancel moves any non-terminal invoice to Cancelled.
func (inv *Invoice) Cancel(reason string, now time.Time) error {
	switch inv.Status {
	case InvoicePaid:
		return fmt.Errorf("%w: invoice %s", apperrors.ErrCannotCancelPaidInvoice, inv.InvoiceID)
	case InvoiceCancelled:
		return fmt.Errorf("%w: invoice %s", apperrors.ErrInvoiceCancelled, inv.InvoiceID)
	}
	cancelledAt := now
	inv.Status = InvoiceCancelled
	inv.CancelledAt = &cancelledAt
	inv.CancellationReason = reason
	return nil
}

// Outstanding returns the unpaid balance, never negative.
func (inv *Invoice) Outstanding() decimal.Decimal {
	out := inv.Total.Sub(inv.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	GuestRef string
	Status   InvoiceStatus
	Limit    int
	Offset   int
}

// InvoiceBalance is the reconciliation view of an invoice.
type InvoiceBalance struct {
	InvoiceID        string          `json:"invoiceID"`
	CurrencyCode     string          `json:"currencyCode"`
	Status           InvoiceStatus   `json:"status"`
	Total            decimal.Decimal `json:"total"`
	AmountPaid       decimal.Decimal `json:"amountPaid"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	LedgerAmountPaid decimal.Decimal `json:"ledgerAmountPaid"` // Replayed from payment applications
	Consistent       bool            `json:"consistent"`
}

// OverdueSweepSummary reports one run of the overdue sweep.
type OverdueSweepSummary struct {
	AsOf     time.Time         `json:"asOf"`
	Checked  int               `json:"checked"`
	Marked   []string          `json:"marked"`
	Failures map[string]string `json:"failures,omitempty"` // Invoice id -> error
}

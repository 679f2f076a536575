package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the guest paid.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
	MethodOther        PaymentMethod = "OTHER"
)

// IsValid reports whether m is a supported method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodMobileMoney, MethodOther:
		return true
	}
	return false
}

// Payment is an append-only ledger entry. Amount and CurrencyCode never change
// after capture; corrections are new entries with ReversesPaymentID set.
type Payment struct {
	PaymentID         string          `json:"paymentID"` // ULID, sortable by creation
	GuestRef          string          `json:"guestRef"`
	InvoiceID         *string         `json:"invoiceID,omitempty"` // Nil for deposits taken before an invoice exists
	Amount            decimal.Decimal `json:"amount"`              // Always positive
	CurrencyCode      string          `json:"currencyCode"`        // Currency the guest actually paid in
	Method            PaymentMethod   `json:"method"`
	IsDeposit         bool            `json:"isDeposit"`
	ReversesPaymentID *string         `json:"reversesPaymentID,omitempty"`
	Reference         string          `json:"reference,omitempty"`
	PaidAt            time.Time       `json:"paidAt"`
	AuditFields
}

// IsReversal reports whether this entry reverses another payment.
func (p Payment) IsReversal() bool {
	return p.ReversesPaymentID != nil
}

// PaymentApplication records that a payment was reconciled against an invoice.
// Each payment is applied at most once; reversals carry a negative amount.
type PaymentApplication struct {
	PaymentID     string          `json:"paymentID"`
	InvoiceID     string          `json:"invoiceID"`
	AppliedAmount decimal.Decimal `json:"appliedAmount"` // In invoice currency
	ExchangeRate  decimal.Decimal `json:"exchangeRate"`  // Invoice-currency units per payment-currency unit at application time
	AppliedAt     time.Time       `json:"appliedAt"`
	CreatedBy     string          `json:"createdBy"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	InvoiceID    string
	GuestRef     string
	DepositsOnly bool
	Limit        int
	Offset       int
}

// ReconciliationResult summarises an orphan-deposit reconciliation run.
type ReconciliationResult struct {
	InvoiceID string               `json:"invoiceID"`
	Applied   []PaymentApplication `json:"applied"`
	Skipped   []string             `json:"skipped"` // Deposits left unattached, oldest first
	Invoice   *Invoice             `json:"invoice"`
}

// PaymentResult is what capture, apply and reverse hand back: the ledger entry,
// its application if one was made, and the invoice after the change.
type PaymentResult struct {
	Payment     Payment
	Application *PaymentApplication
	Invoice     *Invoice
}

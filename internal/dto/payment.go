package dto

import (
	"time"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/shopspring/decimal"
)

// IdempotencyKeyHeader lets a client retry a capture safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// RecordPaymentRequest captures money received from a guest. With InvoiceID
// set the payment is applied immediately; without it the payment is held
// (typically IsDeposit) until reconciled.
type RecordPaymentRequest struct {
	GuestRef     string               `json:"guestRef" binding:"required"`
	InvoiceID    *string              `json:"invoiceID"`
	Amount       decimal.Decimal      `json:"amount"`
	CurrencyCode string               `json:"currencyCode" binding:"required,uppercase,len=3"`
	Method       domain.PaymentMethod `json:"method" binding:"required,oneof=CASH CARD BANK_TRANSFER MOBILE_MONEY OTHER"`
	IsDeposit    bool                 `json:"isDeposit"`
	Reference    string               `json:"reference" binding:"max=255"`
	PaidAt       *time.Time           `json:"paidAt"`
}

// ApplyPaymentRequest names the invoice a held payment should settle.
type ApplyPaymentRequest struct {
	InvoiceID string `json:"invoiceID" binding:"required"`
}

// ReversePaymentRequest records why a payment is being reversed.
type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// ListPaymentsQuery is bound from the query string.
type ListPaymentsQuery struct {
	InvoiceID    string `form:"invoiceID"`
	GuestRef     string `form:"guestRef"`
	DepositsOnly bool   `form:"depositsOnly"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=500"`
	NextToken    string `form:"nextToken"`
}

// PaymentResponse defines the data returned for a payment ledger entry.
type PaymentResponse struct {
	PaymentID         string               `json:"paymentID"`
	GuestRef          string               `json:"guestRef"`
	InvoiceID         *string              `json:"invoiceID,omitempty"`
	Amount            decimal.Decimal      `json:"amount"`
	CurrencyCode      string               `json:"currencyCode"`
	Method            domain.PaymentMethod `json:"method"`
	IsDeposit         bool                 `json:"isDeposit"`
	ReversesPaymentID *string              `json:"reversesPaymentID,omitempty"`
	Reference         string               `json:"reference,omitempty"`
	PaidAt            time.Time            `json:"paidAt"`
	CreatedAt         time.Time            `json:"createdAt"`
	CreatedBy         string               `json:"createdBy"`
}

// ListPaymentsResponse is one page of payments.
type ListPaymentsResponse struct {
	Payments  []PaymentResponse `json:"payments"`
	NextToken string            `json:"nextToken,omitempty"`
}

// ApplicationResponse describes a payment applied to an invoice.
type ApplicationResponse struct {
	PaymentID     string          `json:"paymentID"`
	InvoiceID     string          `json:"invoiceID"`
	AppliedAmount decimal.Decimal `json:"appliedAmount"`
	ExchangeRate  decimal.Decimal `json:"exchangeRate"`
	AppliedAt     time.Time       `json:"appliedAt"`
}

// PaymentResultResponse is returned by capture, apply and reverse.
type PaymentResultResponse struct {
	Payment     PaymentResponse      `json:"payment"`
	Application *ApplicationResponse `json:"application,omitempty"`
	Invoice     *InvoiceResponse     `json:"invoice,omitempty"`
}

// ReconciliationResponse summarises an orphan-deposit reconciliation.
type ReconciliationResponse struct {
	InvoiceID string                `json:"invoiceID"`
	Applied   []ApplicationResponse `json:"applied"`
	Skipped   []string              `json:"skipped"`
	Invoice   *InvoiceResponse      `json:"invoice,omitempty"`
}

// ToPaymentResponse converts a domain.Payment to PaymentResponse DTO
func ToPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		PaymentID:         p.PaymentID,
		GuestRef:          p.GuestRef,
		InvoiceID:         p.InvoiceID,
		Amount:            p.Amount,
		CurrencyCode:      p.CurrencyCode,
		Method:            p.Method,
		IsDeposit:         p.IsDeposit,
		ReversesPaymentID: p.ReversesPaymentID,
		Reference:         p.Reference,
		PaidAt:            p.PaidAt,
		CreatedAt:         p.CreatedAt,
		CreatedBy:         p.CreatedBy,
	}
}

// ToListPaymentResponse converts a slice of domain.Payment to response DTOs
func ToListPaymentResponse(payments []domain.Payment) []PaymentResponse {
	res := make([]PaymentResponse, len(payments))
	for i := range payments {
		res[i] = ToPaymentResponse(&payments[i])
	}
	return res
}

// ToApplicationResponse converts a domain.PaymentApplication, nil-safe.
func ToApplicationResponse(a *domain.PaymentApplication) *ApplicationResponse {
	if a == nil {
		return nil
	}
	return &ApplicationResponse{
		PaymentID:     a.PaymentID,
		InvoiceID:     a.InvoiceID,
		AppliedAmount: a.AppliedAmount,
		ExchangeRate:  a.ExchangeRate,
		AppliedAt:     a.AppliedAt,
	}
}

// ToPaymentResultResponse converts a domain.PaymentResult.
func ToPaymentResultResponse(r *domain.PaymentResult) PaymentResultResponse {
	res := PaymentResultResponse{
		Payment:     ToPaymentResponse(&r.Payment),
		Application: ToApplicationResponse(r.Application),
	}
	if r.Invoice != nil {
		inv := ToInvoiceResponse(r.Invoice)
		res.Invoice = &inv
	}
	return res
}

// ToReconciliationResponse converts a domain.ReconciliationResult.
func ToReconciliationResponse(r *domain.ReconciliationResult) ReconciliationResponse {
	res := ReconciliationResponse{
		InvoiceID: r.InvoiceID,
		Applied:   make([]ApplicationResponse, 0, len(r.Applied)),
		Skipped:   r.Skipped,
	}
	if res.Skipped == nil {
		res.Skipped = []string{}
	}
	for i := range r.Applied {
		res.Applied = append(res.Applied, *ToApplicationResponse(&r.Applied[i]))
	}
	if r.Invoice != nil {
		inv := ToInvoiceResponse(r.Invoice)
		res.Invoice = &inv
	}
	return res
}

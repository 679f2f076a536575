package dto

import (
	"time"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LineItemRequest is one billable line as supplied by the booking/order module.
type LineItemRequest struct {
	Description string          `json:"description" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// ChargeOverrides replace the hotel's default percentages for one invoice.
// Nil means use the configured default.
type ChargeOverrides struct {
	DiscountPercentage      *decimal.Decimal `json:"discountPercentage,omitempty"`
	ServiceChargePercentage *decimal.Decimal `json:"serviceChargePercentage,omitempty"`
	TaxRate                 *decimal.Decimal `json:"taxRate,omitempty"`
}

// CreateInvoiceRequest defines the data needed to open a draft invoice.
type CreateInvoiceRequest struct {
	GuestRef     string            `json:"guestRef" binding:"required"`
	CurrencyCode string            `json:"currencyCode" binding:"required,uppercase,len=3"`
	LineItems    []LineItemRequest `json:"lineItems" binding:"dive"`
	ChargeOverrides
}

// UpdateInvoiceLinesRequest replaces the lines (and optionally the rates) of a draft.
type UpdateInvoiceLinesRequest struct {
	LineItems []LineItemRequest `json:"lineItems" binding:"dive"`
	ChargeOverrides
}

// IssueInvoiceRequest optionally fixes the due date; otherwise payment terms apply.
type IssueInvoiceRequest struct {
	DueDate *time.Time `json:"dueDate"`
}

// CancelInvoiceRequest records why an invoice was voided.
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ReconcileDepositsRequest names the guest whose deposits to apply.
// Empty GuestRef means the invoice's own guest.
type ReconcileDepositsRequest struct {
	GuestRef string `json:"guestRef"`
}

// ListInvoicesQuery is bound from the query string.
type ListInvoicesQuery struct {
	GuestRef  string `form:"guestRef"`
	Status    string `form:"status" binding:"omitempty,oneof=DRAFT ISSUED PARTIALLY_PAID PAID OVERDUE CANCELLED"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
	NextToken string `form:"nextToken"`
}

// LineItemResponse is a priced line.
type LineItemResponse struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

// InvoiceResponse defines the data returned for an invoice.
type InvoiceResponse struct {
	InvoiceID               string               `json:"invoiceID"`
	InvoiceNumber           string               `json:"invoiceNumber"`
	GuestRef                string               `json:"guestRef"`
	CurrencyCode            string               `json:"currencyCode"`
	Status                  domain.InvoiceStatus `json:"status"`
	LineItems               []LineItemResponse   `json:"lineItems"`
	Subtotal                decimal.Decimal      `json:"subtotal"`
	DiscountPercentage      decimal.Decimal      `json:"discountPercentage"`
	DiscountAmount          decimal.Decimal      `json:"discountAmount"`
	ServiceChargePercentage decimal.Decimal      `json:"serviceChargePercentage"`
	ServiceChargeAmount     decimal.Decimal      `json:"serviceChargeAmount"`
	TaxRate                 decimal.Decimal      `json:"taxRate"`
	TaxAmount               decimal.Decimal      `json:"taxAmount"`
	Total                   decimal.Decimal      `json:"total"`
	AmountPaid              decimal.Decimal      `json:"amountPaid"`
	Outstanding             decimal.Decimal      `json:"outstanding"`
	IssuedDate              *time.Time           `json:"issuedDate,omitempty"`
	DueDate                 *time.Time           `json:"dueDate,omitempty"`
	CancelledAt             *time.Time           `json:"cancelledAt,omitempty"`
	CancellationReason      string               `json:"cancellationReason,omitempty"`
	Version                 int64                `json:"version"`
	CreatedAt               time.Time            `json:"createdAt"`
	CreatedBy               string               `json:"createdBy"`
	LastUpdatedAt           time.Time            `json:"lastUpdatedAt"`
	LastUpdatedBy           string               `json:"lastUpdatedBy"`
}

// ListInvoicesResponse is one page of invoices.
type ListInvoicesResponse struct {
	Invoices  []InvoiceResponse `json:"invoices"`
	NextToken string            `json:"nextToken,omitempty"`
}

// ToLineItems converts request lines into unpriced domain lines.
func ToLineItems(reqs []LineItemRequest) []domain.LineItem {
	items := make([]domain.LineItem, len(reqs))
	for i, r := range reqs {
		items[i] = domain.LineItem{Description: r.Description, Quantity: r.Quantity, UnitPrice: r.UnitPrice}
	}
	return items
}

// ToInvoiceResponse converts a domain.Invoice to InvoiceResponse DTO
func ToInvoiceResponse(inv *domain.Invoice) InvoiceResponse {
	lines := make([]LineItemResponse, len(inv.LineItems))
	for i, li := range inv.LineItems {
		lines[i] = LineItemResponse(li)
	}
	return InvoiceResponse{
		InvoiceID:               inv.InvoiceID,
		InvoiceNumber:           inv.InvoiceNumber,
		GuestRef:                inv.GuestRef,
		CurrencyCode:            inv.CurrencyCode,
		Status:                  inv.Status,
		LineItems:               lines,
		Subtotal:                inv.Subtotal,
		DiscountPercentage:      inv.DiscountPercentage,
		DiscountAmount:          inv.DiscountAmount,
		ServiceChargePercentage: inv.ServiceChargePercentage,
		ServiceChargeAmount:     inv.ServiceChargeAmount,
		TaxRate:                 inv.TaxRate,
		TaxAmount:               inv.TaxAmount,
		Total:                   inv.Total,
		AmountPaid:              inv.AmountPaid,
		Outstanding:             inv.Outstanding(),
		IssuedDate:              inv.IssuedDate,
		DueDate:                 inv.DueDate,
		CancelledAt:             inv.CancelledAt,
		CancellationReason:      inv.CancellationReason,
		Version:                 inv.Version,
		CreatedAt:               inv.CreatedAt,
		CreatedBy:               inv.CreatedBy,
		LastUpdatedAt:           inv.LastUpdatedAt,
		LastUpdatedBy:           inv.LastUpdatedBy,
	}
}

// ToListInvoiceResponse converts a slice of domain.Invoice to response DTOs
func ToListInvoiceResponse(invoices []domain.Invoice) []InvoiceResponse {
	res := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		res[i] = ToInvoiceResponse(&invoices[i])
	}
	return res
}

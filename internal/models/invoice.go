package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is the JSONB shape of invoices.line_items.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is a row of the invoices table.
type Invoice struct {
	InvoiceID               string
	InvoiceNumber           string
	GuestRef                string
	CurrencyCode            string
	LineItems               []LineItem // JSONB
	Subtotal                decimal.Decimal
	DiscountPercentage      decimal.Decimal
	DiscountAmount          decimal.Decimal
	ServiceChargePercentage decimal.Decimal
	ServiceChargeAmount     decimal.Decimal
	TaxRate                 decimal.Decimal
	TaxAmount               decimal.Decimal
	Total                   decimal.Decimal
	AmountPaid              decimal.Decimal
	Status                  string
	IssuedDate              *time.Time
	DueDate                 *time.Time
	CancelledAt             *time.Time
	CancellationReason      *string
	Version                 int64
	AuditFields
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a row of the payments table. Rows are never updated.
type Payment struct {
	PaymentID         string
	GuestRef          string
	InvoiceID         *string
	Amount            decimal.Decimal
	CurrencyCode      string
	Method            string
	IsDeposit         bool
	ReversesPaymentID *string
	Reference         *string
	PaidAt            time.Time
	CreatedAt         time.Time
	CreatedBy         string
}

// PaymentApplication is a row of the payment_applications table.
type PaymentApplication struct {
	PaymentID     string
	InvoiceID     string
	AppliedAmount decimal.Decimal
	ExchangeRate  decimal.Decimal
	AppliedAt     time.Time
	CreatedBy     string
}

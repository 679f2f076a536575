package models

import "github.com/shopspring/decimal"

// Currency is a row of the currencies table.
type Currency struct {
	CurrencyCode string          `json:"currencyCode"` // Primary Key (e.g., "USD")
	Symbol       string          `json:"symbol"`       // e.g., "$"
	Name         string          `json:"name"`         // e.g., "US Dollar"
	ExchangeRate decimal.Decimal `json:"exchangeRate"` // NUMERIC(24,12)
	IsDefault    bool            `json:"isDefault"`    // Partial unique index keeps one default
	IsSystem     bool            `json:"isSystem"`
	AuditFields
}

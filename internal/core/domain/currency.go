package domain

import "github.com/shopspring/decimal"

// Currency represents a supported currency in the registry.
type Currency struct {
	CurrencyCode string          `json:"currencyCode"` // Primary Key (e.g., "USD"), immutable
	Symbol       string          `json:"symbol"`       // e.g., "$"
	Name         string          `json:"name"`         // e.g., "US Dollar"
	ExchangeRate decimal.Decimal `json:"exchangeRate"` // Units of this currency per 1 unit of the base currency
	IsDefault    bool            `json:"isDefault"`    // The base currency; exactly one at a time
	IsSystem     bool            `json:"isSystem"`     // Seeded currency, cannot be deleted
	AuditFields
}

// Rate returns the rate used for conversion. The base currency is always 1
// regardless of what is stored.
func (c Currency) Rate() decimal.Decimal {
	if c.IsDefault {
		return decimal.NewFromInt(1)
	}
	return c.ExchangeRate
}

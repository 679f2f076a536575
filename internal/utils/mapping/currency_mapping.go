package mapping

import (
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/models"
)

// ToModelCurrency converts a domain Currency to a model Currency
func ToModelCurrency(d domain.Currency) models.Currency {
	return models.Currency{
		CurrencyCode: d.CurrencyCode,
		Symbol:       d.Symbol,
		Name:         d.Name,
		ExchangeRate: d.ExchangeRate,
		IsDefault:    d.IsDefault,
		IsSystem:     d.IsSystem,
		AuditFields:  ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainCurrency converts a model Currency to a domain Currency
func ToDomainCurrency(m models.Currency) domain.Currency {
	return domain.Currency{
		CurrencyCode: m.CurrencyCode,
		Symbol:       m.Symbol,
		Name:         m.Name,
		ExchangeRate: m.ExchangeRate,
		IsDefault:    m.IsDefault,
		IsSystem:     m.IsSystem,
		AuditFields:  ToDomainAuditFields(m.AuditFields),
	}
}

// ToDomainCurrencySlice converts a slice of model Currencies to a slice of domain Currencies
func ToDomainCurrencySlice(ms []models.Currency) []domain.Currency {
	ds := make([]domain.Currency, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainCurrency(m)
	}
	return ds
}

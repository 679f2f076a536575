package dto

import (
	"time"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateCurrencyRequest defines the data needed to create a new currency.
// ExchangeRate is units of the new currency per one unit of the current base.
type CreateCurrencyRequest struct {
	CurrencyCode string          `json:"currencyCode" binding:"required,uppercase,len=3"`
	Symbol       string          `json:"symbol" binding:"max=8"`
	Name         string          `json:"name" binding:"required,max=100"`
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
	IsDefault    bool            `json:"isDefault"`
}

// UpdateCurrencyRequest edits display fields only.
type UpdateCurrencyRequest struct {
	Name   *string `json:"name" binding:"omitempty,max=100"`
	Symbol *string `json:"symbol" binding:"omitempty,max=8"`
}

// UpdateRateRequest sets a new rate relative to the base currency.
type UpdateRateRequest struct {
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
}

// ConvertQuery is bound from the query string of the convert endpoint.
type ConvertQuery struct {
	Amount string `form:"amount" binding:"required"`
	From   string `form:"from" binding:"required,uppercase,len=3"`
	To     string `form:"to" binding:"required,uppercase,len=3"`
}

// ConvertResponse carries a conversion and its display form.
type ConvertResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Converted decimal.Decimal `json:"converted"`
	Formatted string          `json:"formatted"`
}

// CurrencyResponse defines the data returned for a currency.
type CurrencyResponse struct {
	CurrencyCode  string          `json:"currencyCode"`
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	ExchangeRate  decimal.Decimal `json:"exchangeRate"`
	IsDefault     bool            `json:"isDefault"`
	IsSystem      bool            `json:"isSystem"`
	CreatedAt     time.Time       `json:"createdAt"`
	CreatedBy     string          `json:"createdBy"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
	LastUpdatedBy string          `json:"lastUpdatedBy"`
}

// ToCurrencyResponse converts a domain.Currency to CurrencyResponse DTO
func ToCurrencyResponse(curr *domain.Currency) CurrencyResponse {
	return CurrencyResponse{
		CurrencyCode:  curr.CurrencyCode,
		Symbol:        curr.Symbol,
		Name:          curr.Name,
		ExchangeRate:  curr.Rate(),
		IsDefault:     curr.IsDefault,
		IsSystem:      curr.IsSystem,
		CreatedAt:     curr.CreatedAt,
		CreatedBy:     curr.CreatedBy,
		LastUpdatedAt: curr.LastUpdatedAt,
		LastUpdatedBy: curr.LastUpdatedBy,
	}
}

// ToListCurrencyResponse converts a slice of domain.Currency to a slice of CurrencyResponse DTOs
func ToListCurrencyResponse(currencies []domain.Currency) []CurrencyResponse {
	res := make([]CurrencyResponse, len(currencies))
	for i := range currencies {
		res[i] = ToCurrencyResponse(&currencies[i])
	}
	return res
}

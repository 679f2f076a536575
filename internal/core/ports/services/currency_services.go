package services

import (
	"context"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/dto"
	"github.com/shopspring/decimal"
)

// CurrencyReaderSvc defines read operations for currency data
type CurrencyReaderSvc interface {
	// GetCurrencyByCode retrieves a specific currency by its code.
	GetCurrencyByCode(ctx context.Context, currencyCode string) (*domain.Currency, error)

	// ListCurrencies retrieves all available currencies.
	ListCurrencies(ctx context.Context) ([]domain.Currency, error)

	// GetDefaultCurrency returns the base currency.
	GetDefaultCurrency(ctx context.Context) (*domain.Currency, error)
}

// CurrencyWriterSvc defines write operations for the registry. Every write
// runs inside the registry critical section.
type CurrencyWriterSvc interface {
	CreateCurrency(ctx context.Context, req dto.CreateCurrencyRequest, creatorUserID string) (*domain.Currency, error)
	UpdateCurrency(ctx context.Context, currencyCode string, req dto.UpdateCurrencyRequest, userID string) (*domain.Currency, error)
	UpdateRate(ctx context.Context, currencyCode string, rate decimal.Decimal, userID string) (*domain.Currency, error)

	// SetDefault makes currencyCode the base and rescales every other rate.
	SetDefault(ctx context.Context, currencyCode string, userID string) (*domain.Currency, error)

	DeleteCurrency(ctx context.Context, currencyCode string) error
}

// ConversionSvc converts and renders amounts using the registry's rates.
type ConversionSvc interface {
	// ConvertAmount converts amount and also returns the cross rate used.
	ConvertAmount(ctx context.Context, amount decimal.Decimal, fromCode, toCode string) (converted, rate decimal.Decimal, err error)

	// FormatAmount never fails; unknown codes fall back to "<amount> <CODE>".
	FormatAmount(ctx context.Context, amount decimal.Decimal, currencyCode string) string
}

// CurrencySvcFacade combines all currency-related service interfaces
type CurrencySvcFacade interface {
	CurrencyReaderSvc
	CurrencyWriterSvc
	ConversionSvc
	StaticDataService
}

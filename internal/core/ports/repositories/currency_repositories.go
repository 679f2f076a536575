package repositories

import (
	"context"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
)

// CurrencyReader defines read operations for currency data
type CurrencyReader interface {
	// FindCurrencyByCode retrieves a specific currency by its code.
	// Returns apperrors.ErrCurrencyNotFound if absent.
	FindCurrencyByCode(ctx context.Context, currencyCode string) (*domain.Currency, error)

	// FindCurrenciesByCodes reads several currencies in one consistent read.
	// Missing codes are simply absent from the result.
	FindCurrenciesByCodes(ctx context.Context, currencyCodes []string) (map[string]domain.Currency, error)

	// ListCurrencies retrieves all available currencies.
	ListCurrencies(ctx context.Context) ([]domain.Currency, error)

	// IsCurrencyReferenced reports whether any invoice or payment uses the code.
	IsCurrencyReferenced(ctx context.Context, currencyCode string) (bool, error)
}

// CurrencyWriter defines write operations for currency data
type CurrencyWriter interface {
	// LockRegistry serialises registry mutations for the rest of the
	// transaction in ctx. Must be called inside TransactionManager.WithinTx.
	LockRegistry(ctx context.Context) error

	// SaveCurrency inserts or updates a currency.
	SaveCurrency(ctx context.Context, currency domain.Currency) error

	// SaveCurrencies updates several currencies at once (rate rescale).
	SaveCurrencies(ctx context.Context, currencies []domain.Currency) error

	// DeleteCurrency removes a currency.
	DeleteCurrency(ctx context.Context, currencyCode string) error
}

// CurrencyRepositoryFacade combines all currency-related repository interfaces
// This is a facade for clients that need access to all operations
type CurrencyRepositoryFacade interface {
	CurrencyReader
	CurrencyWriter
}

// CurrencyRepositoryWithTx extends CurrencyRepositoryFacade with transaction capabilities
type CurrencyRepositoryWithTx interface {
	CurrencyRepositoryFacade
	TransactionManager
}

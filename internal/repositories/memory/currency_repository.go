package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
)

func (s *Store) FindCurrencyByCode(ctx context.Context, currencyCode string) (*domain.Currency, error) {
	defer s.lock(ctx)()
	c, ok := s.currencies[currencyCode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCurrencyNotFound, currencyCode)
	}
	return &c, nil
}

func (s *Store) FindCurrenciesByCodes(ctx context.Context, currencyCodes []string) (map[string]domain.Currency, error) {
	defer s.lock(ctx)()
	out := make(map[string]domain.Currency, len(currencyCodes))
	for _, code := range currencyCodes {
		if c, ok := s.currencies[code]; ok {
			out[code] = c
		}
	}
	return out, nil
}

func (s *Store) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	defer s.lock(ctx)()
	out := make([]domain.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrencyCode < out[j].CurrencyCode })
	return out, nil
}

func (s *Store) IsCurrencyReferenced(ctx context.Context, currencyCode string) (bool, error) {
	defer s.lock(ctx)()
	for _, inv := range s.invoices {
		if inv.CurrencyCode == currencyCode {
			return true, nil
		}
	}
	for _, p := range s.payments {
		if p.CurrencyCode == currencyCode {
			return true, nil
		}
	}
	return false, nil
}

// LockRegistry is a no-op here: the transaction already holds the store mutex.
func (s *Store) LockRegistry(ctx context.Context) error {
	if !s.inTx(ctx) {
		return fmt.Errorf("memory: LockRegistry called outside a transaction")
	}
	return nil
}

func (s *Store) SaveCurrency(ctx context.Context, currency domain.Currency) error {
	defer s.lock(ctx)()
	s.currencies[currency.CurrencyCode] = currency
	return nil
}

func (s *Store) SaveCurrencies(ctx context.Context, currencies []domain.Currency) error {
	defer s.lock(ctx)()
	for _, c := range currencies {
		s.currencies[c.CurrencyCode] = c
	}
	return nil
}

func (s *Store) DeleteCurrency(ctx context.Context, currencyCode string) error {
	defer s.lock(ctx)()
	if _, ok := s.currencies[currencyCode]; !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrCurrencyNotFound, currencyCode)
	}
	delete(s.currencies, currencyCode)
	return nil
}

var _ repositories.CurrencyRepositoryWithTx = (*Store)(nil)

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/core/money"
	portsrepo "github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/hotel_billing/internal/core/ports/services"
	"github.com/SscSPs/hotel_billing/internal/dto"
	"github.com/SscSPs/hotel_billing/internal/middleware"
	"github.com/SscSPs/hotel_billing/internal/platform/config"
	"github.com/shopspring/decimal"
)

type currencyService struct {
	BaseService
	currencyRepo portsrepo.CurrencyRepositoryWithTx
	base         *config.SystemCurrency
	secondary    *config.SystemCurrency
}

// CurrencyServiceOption configures the currency service
type CurrencyServiceOption func(*currencyService)

// WithSystemCurrencies sets the currencies InitializeStaticData seeds.
func WithSystemCurrencies(base, secondary config.SystemCurrency) CurrencyServiceOption {
	return func(s *currencyService) {
		s.base = &base
		s.secondary = &secondary
	}
}

// WithCurrencyBase sets shared metrics and clock.
func WithCurrencyBase(base BaseService) CurrencyServiceOption {
	return func(s *currencyService) {
		s.BaseService = base
	}
}

// NewCurrencyService creates the currency registry service.
func NewCurrencyService(currencyRepo portsrepo.CurrencyRepositoryWithTx, options ...CurrencyServiceOption) portssvc.CurrencySvcFacade {
	svc := &currencyService{currencyRepo: currencyRepo}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.CurrencySvcFacade = (*currencyService)(nil)

func findDefault(currencies []domain.Currency) *domain.Currency {
	for i := range currencies {
		if currencies[i].IsDefault {
			return &currencies[i]
		}
	}
	return nil
}

func (s *currencyService) CreateCurrency(ctx context.Context, req dto.CreateCurrencyRequest, creatorUserID string) (*domain.Currency, error) {
	if !validCurrencyCode(req.CurrencyCode) {
		return nil, s.Reject(ctx, "create_currency", fmt.Errorf("%w: %q", apperrors.ErrInvalidCurrencyCode, req.CurrencyCode))
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, s.Reject(ctx, "create_currency", apperrors.NewValidationError("currency name is required"))
	}
	if !req.IsDefault && !req.ExchangeRate.IsPositive() {
		return nil, s.Reject(ctx, "create_currency", fmt.Errorf("%w: %s", apperrors.ErrInvalidRate, req.ExchangeRate.String()))
	}

	var created *domain.Currency
	err := s.currencyRepo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.currencyRepo.LockRegistry(ctx); err != nil {
			return err
		}
		if _, err := s.currencyRepo.FindCurrencyByCode(ctx, req.CurrencyCode); err == nil {
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicateCurrency, req.CurrencyCode)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		all, err := s.currencyRepo.ListCurrencies(ctx)
		if err != nil {
			return err
		}
		current := findDefault(all)

		now := s.Now()
		currency := domain.Currency{
			CurrencyCode: req.CurrencyCode,
			Symbol:       req.Symbol,
			Name:         strings.TrimSpace(req.Name),
			ExchangeRate: req.ExchangeRate.Round(money.RatePrecision),
			IsSystem:     false,
			AuditFields:  newAuditFields(now, creatorUserID),
		}
		switch {
		case req.IsDefault && current == nil:
			currency.IsDefault = true
			currency.ExchangeRate = decimal.NewFromInt(1)
		case !currency.ExchangeRate.IsPositive():
			// A new base needs its rate against the current one for the rescale.
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidRate, req.ExchangeRate.String())
		}

		if err := s.currencyRepo.SaveCurrency(ctx, currency); err != nil {
			return err
		}
		created = &currency

		if req.IsDefault && current != nil {
			created, err = s.setDefaultLocked(ctx, currency.CurrencyCode, creatorUserID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.Reject(ctx, "create_currency", err, slog.String("currency_code", req.CurrencyCode))
	}

	s.LogInfo(ctx, "Currency created",
		slog.String("currency_code", created.CurrencyCode),
		slog.Bool("is_default", created.IsDefault))
	return created, nil
}

func (s *currencyService) UpdateCurrency(ctx context.Context, currencyCode string, req dto.UpdateCurrencyRequest, userID string) (*domain.Currency, error) {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, s.Reject(ctx, "update_currency", apperrors.NewValidationError("currency name cannot be empty"))
	}

	var updated *domain.Currency
	err := s.currencyRepo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.currencyRepo.LockRegistry(ctx); err != nil {
			return err
		}
		currency, err := s.currencyRepo.FindCurrencyByCode(ctx, currencyCode)
		if err != nil {
			return err
		}
		if req.Name != nil {
			currency.Name = strings.TrimSpace(*req.Name)
		}
		if req.Symbol != nil {
			currency.Symbol = *req.Symbol
		}
		touch(&currency.AuditFields, s.Now(), userID)
		if err := s.currencyRepo.SaveCurrency(ctx, *currency); err != nil {
			return err
		}
		updated = currency
		return nil
	})
	if err != nil {
		return nil, s.Reject(ctx, "update_currency", err, slog.String("currency_code", currencyCode))
	}
	return updated, nil
}

// UpdateRate rejects non-positive rates before looking anything up.
func (s *currencyService) UpdateRate(ctx context.Context, currencyCode string, rate decimal.Decimal, userID string) (*domain.Currency, error) {
	if !rate.IsPositive() {
		return nil, s.Reject(ctx, "update_rate", fmt.Errorf("%w: %s", apperrors.ErrInvalidRate, rate.String()))
	}

	var updated *domain.Currency
	err := s.currencyRepo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.currencyRepo.LockRegistry(ctx); err != nil {
			return err
		}
		currency, err := s.currencyRepo.FindCurrencyByCode(ctx, currencyCode)
		if err != nil {
			return err
		}
		if currency.IsDefault {
			return fmt.Errorf("%w: %s", apperrors.ErrImmutableBaseCurrency, currencyCode)
		}
		currency.ExchangeRate = rate.Round(money.RatePrecision)
		touch(&currency.AuditFields, s.Now(), userID)
		if err := s.currencyRepo.SaveCurrency(ctx, *currency); err != nil {
			return err
		}
		updated = currency
		return nil
	})
	if err != nil {
		return nil, s.Reject(ctx, "update_rate", err, slog.String("currency_code", currencyCode))
	}

	s.LogInfo(ctx, "Exchange rate updated",
		slog.String("currency_code", currencyCode),
		slog.String("rate", updated.ExchangeRate.String()))
	return updated, nil
}

func (s *currencyService) SetDefault(ctx context.Context, currencyCode string, userID string) (*domain.Currency, error) {
	var updated *domain.Currency
	err := s.currencyRepo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.currencyRepo.LockRegistry(ctx); err != nil {
			return err
		}
		var err error
		updated, err = s.setDefaultLocked(ctx, currencyCode, userID)
		return err
	})
	if err != nil {
		return nil, s.Reject(ctx, "set_default_currency", err, slog.String("currency_code", currencyCode))
	}
	return updated, nil
}

// setDefaultLocked must run with the registry lock held. Every rate is
// re-expressed against the new base: newRate(X) = oldRate(X) / oldRate(new).
func (s *currencyService) setDefaultLocked(ctx context.Context, currencyCode string, userID string) (*domain.Currency, error) {
	all, err := s.currencyRepo.ListCurrencies(ctx)
	if err != nil {
		return nil, err
	}
	var target *domain.Currency
	for i := range all {
		if all[i].CurrencyCode == currencyCode {
			target = &all[i]
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCurrencyNotFound, currencyCode)
	}
	if target.IsDefault {
		return target, nil
	}

	pivot := target.Rate()
	now := s.Now()
	for i := range all {
		c := &all[i]
		if c.CurrencyCode == currencyCode {
			c.IsDefault = true
			c.ExchangeRate = decimal.NewFromInt(1)
		} else {
			c.ExchangeRate = money.Rebase(c.Rate(), pivot)
			c.IsDefault = false
		}
		touch(&c.AuditFields, now, userID)
	}
	if err := s.currencyRepo.SaveCurrencies(ctx, all); err != nil {
		return nil, err
	}

	s.LogInfo(ctx, "Default currency changed",
		slog.String("currency_code", currencyCode),
		slog.Int("rescaled", len(all)-1))
	for i := range all {
		if all[i].CurrencyCode == currencyCode {
			return &all[i], nil
		}
	}
	return target, nil
}

func (s *currencyService) DeleteCurrency(ctx context.Context, currencyCode string) error {
	err := s.currencyRepo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.currencyRepo.LockRegistry(ctx); err != nil {
			return err
		}
		currency, err := s.currencyRepo.FindCurrencyByCode(ctx, currencyCode)
		if err != nil {
			return err
		}
		if currency.IsSystem || currency.IsDefault {
			return fmt.Errorf("%w: %s", apperrors.ErrProtectedCurrency, currencyCode)
		}
		referenced, err := s.currencyRepo.IsCurrencyReferenced(ctx, currencyCode)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("%w: %s", apperrors.ErrCurrencyInUse, currencyCode)
		}
		return s.currencyRepo.DeleteCurrency(ctx, currencyCode)
	})
	if err != nil {
		return s.Reject(ctx, "delete_currency", err, slog.String("currency_code", currencyCode))
	}
	s.LogInfo(ctx, "Currency deleted", slog.String("currency_code", currencyCode))
	return nil
}

func (s *currencyService) GetCurrencyByCode(ctx context.Context, currencyCode string) (*domain.Currency, error) {
	return s.currencyRepo.FindCurrencyByCode(ctx, currencyCode)
}

func (s *currencyService) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	currencies, err := s.currencyRepo.ListCurrencies(ctx)
	if err != nil {
		return nil, err
	}
	if currencies == nil {
		return []domain.Currency{}, nil
	}
	return currencies, nil
}

func (s *currencyService) GetDefaultCurrency(ctx context.Context) (*domain.Currency, error) {
	all, err := s.currencyRepo.ListCurrencies(ctx)
	if err != nil {
		return nil, err
	}
	if def := findDefault(all); def != nil {
		return def, nil
	}
	return nil, fmt.Errorf("%w: no default currency configured", apperrors.ErrCurrencyNotFound)
}

// ConvertAmount reads both rates in one consistent read.
func (s *currencyService) ConvertAmount(ctx context.Context, amount decimal.Decimal, fromCode, toCode string) (decimal.Decimal, decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", apperrors.ErrInvalidAmount, amount.String())
	}
	found, err := s.currencyRepo.FindCurrenciesByCodes(ctx, []string{fromCode, toCode})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	from, ok := found[fromCode]
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", apperrors.ErrCurrencyNotFound, fromCode)
	}
	to, ok := found[toCode]
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", apperrors.ErrCurrencyNotFound, toCode)
	}
	return money.Convert(amount, from, to), money.CrossRate(from, to), nil
}

func (s *currencyService) FormatAmount(ctx context.Context, amount decimal.Decimal, currencyCode string) string {
	currency, err := s.currencyRepo.FindCurrencyByCode(ctx, currencyCode)
	if err != nil {
		return money.Format(amount, nil, currencyCode)
	}
	return money.Format(amount, currency, currencyCode)
}

// InitializeStaticData seeds the system currencies when they are missing.
// Existing rows are left alone.
func (s *currencyService) InitializeStaticData(ctx context.Context) error {
	if s.base == nil {
		return nil
	}
	return s.currencyRepo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.currencyRepo.LockRegistry(ctx); err != nil {
			return err
		}
		all, err := s.currencyRepo.ListCurrencies(ctx)
		if err != nil {
			return err
		}
		existing := make(map[string]domain.Currency, len(all))
		for _, c := range all {
			existing[c.CurrencyCode] = c
		}
		now := s.Now()
		audit := newAuditFields(now, middleware.SystemUserID)

		base, ok := existing[s.base.Code]
		if !ok {
			if findDefault(all) != nil {
				s.GetLogger(ctx).Warn("Base currency missing but another default exists; not seeding",
					slog.String("currency_code", s.base.Code))
				return nil
			}
			base = domain.Currency{
				CurrencyCode: s.base.Code,
				Name:         s.base.Name,
				Symbol:       s.base.Symbol,
				ExchangeRate: decimal.NewFromInt(1),
				IsDefault:    true,
				IsSystem:     true,
				AuditFields:  audit,
			}
			if err := s.currencyRepo.SaveCurrency(ctx, base); err != nil {
				return err
			}
			s.LogInfo(ctx, "Seeded base currency", slog.String("currency_code", base.CurrencyCode))
		}

		if s.secondary == nil {
			return nil
		}
		if _, ok := existing[s.secondary.Code]; ok {
			return nil
		}
		// The configured rate is per unit of the seeded base, which may no
		// longer be the default.
		secondary := domain.Currency{
			CurrencyCode: s.secondary.Code,
			Name:         s.secondary.Name,
			Symbol:       s.secondary.Symbol,
			ExchangeRate: s.secondary.Rate.Mul(base.Rate()).Round(money.RatePrecision),
			IsSystem:     true,
			AuditFields:  audit,
		}
		if err := s.currencyRepo.SaveCurrency(ctx, secondary); err != nil {
			return err
		}
		s.LogInfo(ctx, "Seeded secondary currency", slog.String("currency_code", secondary.CurrencyCode))
		return nil
	})
}

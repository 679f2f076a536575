package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd() domain.Currency {
	return domain.Currency{CurrencyCode: "USD", Name: "US Dollar", Symbol: "$", ExchangeRate: decimal.NewFromInt(1), IsDefault: true}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.SaveCurrency(ctx, usd()))
		_, err := s.FindCurrencyByCode(ctx, "USD")
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.FindCurrencyByCode(ctx, "USD")
	assert.ErrorIs(t, err, apperrors.ErrCurrencyNotFound)
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		// Re-locking here would deadlock if the inner call did not join.
		if err := s.WithinTx(ctx, func(ctx context.Context) error {
			return s.SaveCurrency(ctx, usd())
		}); err != nil {
			return err
		}
		return errors.New("abort outer")
	})
	require.Error(t, err)

	currencies, err := s.ListCurrencies(ctx)
	require.NoError(t, err)
	assert.Empty(t, currencies)
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context) error {
		return s.SaveCurrency(ctx, usd())
	}))
	got, err := s.FindCurrencyByCode(ctx, "USD")
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, page(items, 2, 0))
	assert.Equal(t, []int{3, 4}, page(items, 2, 2))
	assert.Equal(t, []int{5}, page(items, 2, 4))
	assert.Empty(t, page(items, 2, 5))
	assert.Equal(t, items, page(items, 0, 0))
}

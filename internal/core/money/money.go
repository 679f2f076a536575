// Package money holds the single place where monetary rounding and currency
// conversion happen. Every other component calls into it.
package money

import (
	"fmt"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/shopspring/decimal"
)

// MinorUnits is the number of fractional digits guest-facing amounts carry.
const MinorUnits int32 = 2

// RatePrecision is the number of fractional digits stored for exchange rates.
const RatePrecision int32 = 12

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero at MinorUnits, i.e. half-up for the
// non-negative amounts billed to guests. 0.125 -> 0.13, never banker's 0.12.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MinorUnits)
}

// Percent returns round(amount * pct / 100).
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// Multiply returns round(a * b).
func Multiply(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Mul(b))
}

// Convert converts amount from one currency into another using their rates
// relative to the base currency. Same-currency conversion returns amount untouched.
func Convert(amount decimal.Decimal, from, to domain.Currency) decimal.Decimal {
	if from.CurrencyCode == to.CurrencyCode {
		return amount
	}
	return Round(amount.Mul(to.Rate()).Div(from.Rate()))
}

// CrossRate returns how many units of `to` one unit of `from` buys.
func CrossRate(from, to domain.Currency) decimal.Decimal {
	if from.CurrencyCode == to.CurrencyCode {
		return decimal.NewFromInt(1)
	}
	return to.Rate().DivRound(from.Rate(), RatePrecision)
}

// Rebase expresses rate (relative to the old base) relative to a new base whose
// rate under the old base was newBaseRate.
func Rebase(rate, newBaseRate decimal.Decimal) decimal.Decimal {
	return rate.DivRound(newBaseRate, RatePrecision)
}

// Format renders amount with the currency symbol at fixed 2-decimal precision.
// A nil currency falls back to "<amount> <code>".
func Format(amount decimal.Decimal, currency *domain.Currency, code string) string {
	if currency == nil || currency.Symbol == "" {
		return fmt.Sprintf("%s %s", amount.StringFixed(MinorUnits), code)
	}
	return currency.Symbol + amount.StringFixed(MinorUnits)
}

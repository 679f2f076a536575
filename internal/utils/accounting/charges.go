package accounting

import (
	"fmt"
	"strings"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/core/money"
	"github.com/shopspring/decimal"
)

// DefaultTaxRateCeiling is the highest tax rate accepted unless configured otherwise.
var DefaultTaxRateCeiling = decimal.NewFromInt(100)

var hundred = decimal.NewFromInt(100)

// Limits bounds the percentages the pipeline accepts.
type Limits struct {
	TaxRateCeiling decimal.Decimal
}

// ComputeCharges derives an invoice's totals from its line items.
//
// The order is fixed and each step is rounded before feeding the next:
// subtotal, discount on subtotal, service charge on the discounted amount,
// tax on discounted amount plus service charge. Reordering changes what the
// guest pays.
func ComputeCharges(items []domain.LineItem, rates domain.ChargeRates, limits Limits) ([]domain.LineItem, domain.ChargeBreakdown, error) {
	if err := ValidateRates(rates, limits); err != nil {
		return nil, domain.ChargeBreakdown{}, err
	}

	priced := make([]domain.LineItem, len(items))
	subtotal := decimal.Zero
	for i, item := range items {
		if err := validateLineItem(i, item); err != nil {
			return nil, domain.ChargeBreakdown{}, err
		}
		item.Amount = money.Multiply(item.Quantity, item.UnitPrice)
		subtotal = subtotal.Add(item.Amount)
		priced[i] = item
	}

	discount := money.Percent(subtotal, rates.DiscountPercentage)
	afterDiscount := subtotal.Sub(discount)
	serviceCharge := money.Percent(afterDiscount, rates.ServiceChargePercentage)
	taxable := afterDiscount.Add(serviceCharge)
	tax := money.Percent(taxable, rates.TaxRate)

	return priced, domain.ChargeBreakdown{
		Subtotal:            subtotal,
		DiscountAmount:      discount,
		ServiceChargeAmount: serviceCharge,
		TaxAmount:           tax,
		Total:               taxable.Add(tax),
	}, nil
}

// ValidateRates checks discount and service charge are within [0, 100] and
// the tax rate within [0, ceiling].
func ValidateRates(rates domain.ChargeRates, limits Limits) error {
	ceiling := limits.TaxRateCeiling
	if ceiling.IsZero() {
		ceiling = DefaultTaxRateCeiling
	}
	if err := checkPercentage("discount", rates.DiscountPercentage, hundred); err != nil {
		return err
	}
	if err := checkPercentage("service charge", rates.ServiceChargePercentage, hundred); err != nil {
		return err
	}
	return checkPercentage("tax rate", rates.TaxRate, ceiling)
}

func checkPercentage(name string, pct, max decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(max) {
		return fmt.Errorf("%w: %s %s must be between 0 and %s", apperrors.ErrInvalidPercentage, name, pct.String(), max.String())
	}
	return nil
}

func validateLineItem(idx int, item domain.LineItem) error {
	if strings.TrimSpace(item.Description) == "" {
		return fmt.Errorf("%w: line %d has no description", apperrors.ErrInvalidLineItem, idx+1)
	}
	if !item.Quantity.IsPositive() {
		return fmt.Errorf("%w: line %d quantity must be positive", apperrors.ErrInvalidLineItem, idx+1)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: line %d unit price cannot be negative", apperrors.ErrInvalidLineItem, idx+1)
	}
	return nil
}

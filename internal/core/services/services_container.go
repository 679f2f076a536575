package services

import (
	"fmt"

	portsrepo "github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/hotel_billing/internal/core/ports/services"
	"github.com/SscSPs/hotel_billing/internal/platform/config"
	"github.com/SscSPs/hotel_billing/internal/platform/metrics"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, m *metrics.BillingMetrics) (*portssvc.ServiceContainer, error) {
	base := BaseService{Metrics: m}
	billing := cfg.Billing

	container := &portssvc.ServiceContainer{}

	container.Currency = NewCurrencyService(
		repos.CurrencyRepo,
		WithCurrencyBase(base),
		WithSystemCurrencies(billing.BaseCurrency, billing.SecondaryCurrency),
	)

	// Payment service first; the invoice service reconciles deposits through it
	payments := NewPaymentService(
		repos.PaymentRepo,
		repos.InvoiceRepo,
		repos.CurrencyRepo,
		WithPaymentBase(base),
		WithIdempotencyStore(repos.Idempotency, billing.IdempotencyTTL),
		WithOverpaymentTolerance(billing.OverpaymentTolerance),
	)
	container.Payment = payments

	invoices, err := NewInvoiceService(
		repos.InvoiceRepo,
		repos.CurrencyRepo,
		repos.PaymentRepo,
		billing,
		WithInvoiceBase(base),
		WithDepositReconciler(payments),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice service: %w", err)
	}
	container.Invoice = invoices

	return container, nil
}

package mapping

import (
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/models"
)

// ToModelInvoice converts a domain Invoice to a model Invoice
func ToModelInvoice(d domain.Invoice) models.Invoice {
	items := make([]models.LineItem, len(d.LineItems))
	for i, li := range d.LineItems {
		items[i] = models.LineItem(li)
	}
	return models.Invoice{
		InvoiceID:               d.InvoiceID,
		InvoiceNumber:           d.InvoiceNumber,
		GuestRef:                d.GuestRef,
		CurrencyCode:            d.CurrencyCode,
		LineItems:               items,
		Subtotal:                d.Subtotal,
		DiscountPercentage:      d.DiscountPercentage,
		DiscountAmount:          d.DiscountAmount,
		ServiceChargePercentage: d.ServiceChargePercentage,
		ServiceChargeAmount:     d.ServiceChargeAmount,
		TaxRate:                 d.TaxRate,
		TaxAmount:               d.TaxAmount,
		Total:                   d.Total,
		AmountPaid:              d.AmountPaid,
		Status:                  string(d.Status),
		IssuedDate:              d.IssuedDate,
		DueDate:                 d.DueDate,
		CancelledAt:             d.CancelledAt,
		CancellationReason:      strPtr(d.CancellationReason),
		Version:                 d.Version,
		AuditFields:             ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainInvoice converts a model Invoice to a domain Invoice
func ToDomainInvoice(m models.Invoice) domain.Invoice {
	items := make([]domain.LineItem, len(m.LineItems))
	for i, li := range m.LineItems {
		items[i] = domain.LineItem(li)
	}
	return domain.Invoice{
		InvoiceID:          m.InvoiceID,
		InvoiceNumber:      m.InvoiceNumber,
		GuestRef:           m.GuestRef,
		CurrencyCode:       m.CurrencyCode,
		LineItems:          items,
		AmountPaid:         m.AmountPaid,
		Status:             domain.InvoiceStatus(m.Status),
		IssuedDate:         m.IssuedDate,
		DueDate:            m.DueDate,
		CancelledAt:        m.CancelledAt,
		CancellationReason: strVal(m.CancellationReason),
		Version:            m.Version,
		ChargeRates: domain.ChargeRates{
			DiscountPercentage:      m.DiscountPercentage,
			ServiceChargePercentage: m.ServiceChargePercentage,
			TaxRate:                 m.TaxRate,
		},
		ChargeBreakdown: domain.ChargeBreakdown{
			Subtotal:            m.Subtotal,
			DiscountAmount:      m.DiscountAmount,
			ServiceChargeAmount: m.ServiceChargeAmount,
			TaxAmount:           m.TaxAmount,
			Total:               m.Total,
		},
		AuditFields: ToDomainAuditFields(m.AuditFields),
	}
}

// ToDomainInvoiceSlice converts a slice of model Invoices to a slice of domain Invoices
func ToDomainInvoiceSlice(ms []models.Invoice) []domain.Invoice {
	ds := make([]domain.Invoice, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainInvoice(m)
	}
	return ds
}

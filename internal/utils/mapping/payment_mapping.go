package mapping

import (
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/models"
)

// ToModelPayment converts a domain Payment to a model Payment
func ToModelPayment(d domain.Payment) models.Payment {
	return models.Payment{
		PaymentID:         d.PaymentID,
		GuestRef:          d.GuestRef,
		InvoiceID:         d.InvoiceID,
		Amount:            d.Amount,
		CurrencyCode:      d.CurrencyCode,
		Method:            string(d.Method),
		IsDeposit:         d.IsDeposit,
		ReversesPaymentID: d.ReversesPaymentID,
		Reference:         strPtr(d.Reference),
		PaidAt:            d.PaidAt,
		CreatedAt:         d.CreatedAt,
		CreatedBy:         d.CreatedBy,
	}
}

// ToDomainPayment converts a model Payment to a domain Payment
func ToDomainPayment(m models.Payment) domain.Payment {
	return domain.Payment{
		PaymentID:         m.PaymentID,
		GuestRef:          m.GuestRef,
		InvoiceID:         m.InvoiceID,
		Amount:            m.Amount,
		CurrencyCode:      m.CurrencyCode,
		Method:            domain.PaymentMethod(m.Method),
		IsDeposit:         m.IsDeposit,
		ReversesPaymentID: m.ReversesPaymentID,
		Reference:         strVal(m.Reference),
		PaidAt:            m.PaidAt,
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			CreatedBy:     m.CreatedBy,
			LastUpdatedAt: m.CreatedAt,
			LastUpdatedBy: m.CreatedBy,
		},
	}
}

// ToDomainPaymentSlice converts a slice of model Payments to a slice of domain Payments
func ToDomainPaymentSlice(ms []models.Payment) []domain.Payment {
	ds := make([]domain.Payment, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainPayment(m)
	}
	return ds
}

// ToModelPaymentApplication converts a domain PaymentApplication to its row shape
func ToModelPaymentApplication(d domain.PaymentApplication) models.PaymentApplication {
	return models.PaymentApplication(d)
}

// ToDomainPaymentApplication converts a PaymentApplication row to its domain shape
func ToDomainPaymentApplication(m models.PaymentApplication) domain.PaymentApplication {
	return domain.PaymentApplication(m)
}

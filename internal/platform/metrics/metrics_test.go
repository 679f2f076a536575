package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"named", apperrors.ErrOverpaymentNotAllowed, "OverpaymentNotAllowed"},
		{"wrapped", fmt.Errorf("%w: inv-1", apperrors.ErrInvoiceAlreadyPaid), "InvoiceAlreadyPaid"},
		{"plain", errors.New("boom"), ReasonInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Reason(tc.err))
		})
	}
}

func TestBillingMetrics_Counts(t *testing.T) {
	m := NewBillingMetrics(prometheus.NewRegistry())

	m.InvoiceTransition("PAID")
	m.InvoiceTransition("PAID")
	m.Applied(SourceDeposit)
	m.Rejected("apply_payment", apperrors.ErrOverpaymentNotAllowed)
	m.Rejected("apply_payment", nil)
	m.OverdueMarked(3)
	m.OverdueMarked(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.invoiceTransitions.WithLabelValues("PAID")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.applications.WithLabelValues(SourceDeposit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("apply_payment", "OverpaymentNotAllowed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.overdueMarked))
}

func TestBillingMetrics_NilIsNoop(t *testing.T) {
	var m *BillingMetrics
	assert.NotPanics(t, func() {
		m.InvoiceTransition("PAID")
		m.PaymentRecorded("CASH", "payment")
		m.Applied(SourceDirect)
		m.Rejected("x", errors.New("y"))
		m.OverdueMarked(1)
	})
}

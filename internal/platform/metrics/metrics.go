// Package metrics exposes billing counters to Prometheus.
package metrics

import (
	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/prometheus/client_golang/prometheus"
)

// Application sources.
const (
	SourceDirect   = "direct"
	SourceDeposit  = "deposit"
	SourceReversal = "reversal"
)

// ReasonInternal labels rejections that carry no named error code.
const ReasonInternal = "internal"

// BillingMetrics counts invoice and payment activity. A nil *BillingMetrics
// is valid and records nothing.
type BillingMetrics struct {
	invoiceTransitions *prometheus.CounterVec
	paymentsRecorded   *prometheus.CounterVec
	applications       *prometheus.CounterVec
	rejections         *prometheus.CounterVec
	overdueMarked      prometheus.Counter
}

// NewBillingMetrics creates the collectors and registers them with registerer
// (prometheus.DefaultRegisterer when nil).
func NewBillingMetrics(registerer prometheus.Registerer) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &BillingMetrics{
		invoiceTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_invoice_transitions_total",
			Help: "Invoice status transitions by target status.",
		}, []string{"status"}),
		paymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_payments_recorded_total",
			Help: "Payment ledger entries by method and kind.",
		}, []string{"method", "kind"}),
		applications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_payment_applications_total",
			Help: "Payment applications against invoices by source.",
		}, []string{"source"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_rejections_total",
			Help: "Rejected billing operations by operation and error code.",
		}, []string{"operation", "code"}),
		overdueMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_overdue_marked_total",
			Help: "Invoices moved to OVERDUE by the sweep.",
		}),
	}
	registerer.MustRegister(m.invoiceTransitions, m.paymentsRecorded, m.applications, m.rejections, m.overdueMarked)
	return m
}

func (m *BillingMetrics) InvoiceTransition(status string) {
	if m == nil {
		return
	}
	m.invoiceTransitions.WithLabelValues(status).Inc()
}

// PaymentRecorded counts a ledger entry; kind is payment, deposit or reversal.
func (m *BillingMetrics) PaymentRecorded(method, kind string) {
	if m == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(method, kind).Inc()
}

func (m *BillingMetrics) Applied(source string) {
	if m == nil {
		return
	}
	m.applications.WithLabelValues(source).Inc()
}

// Rejected counts a failed operation under its named error code.
func (m *BillingMetrics) Rejected(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.rejections.WithLabelValues(operation, Reason(err)).Inc()
}

func (m *BillingMetrics) OverdueMarked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueMarked.Add(float64(n))
}

// Reason maps err to a low-cardinality label.
func Reason(err error) string {
	if code := apperrors.Code(err); code != "" {
		return code
	}
	return ReasonInternal
}

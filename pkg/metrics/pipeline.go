package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics counts the enrollment, payment and certificate outcomes.
type PipelineMetrics struct {
	enrollments        *prometheus.CounterVec
	paymentTransitions *prometheus.CounterVec
	certificatesIssued *prometheus.CounterVec
	issuanceFailures   *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline counters. A nil registerer yields a no-op recorder.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	enrollments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrollments_created_total",
		Help:      "Enrollments created, by the path that granted access.",
	}, []string{"source"})
	paymentTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_transitions_total",
		Help:      "Payment status transitions.",
	}, []string{"from", "to"})
	certificatesIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "certificates_issued_total",
		Help:      "Certificates issued, by issue source.",
	}, []string{"source"})
	issuanceFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "certificate_issuance_failures_total",
		Help:      "Certificate issuance attempts rejected, by error code.",
	}, []string{"code"})
	reg.MustRegister(enrollments, paymentTransitions, certificatesIssued, issuanceFailures)
	return &PipelineMetrics{
		enrollments:        enrollments,
		paymentTransitions: paymentTransitions,
		certificatesIssued: certificatesIssued,
		issuanceFailures:   issuanceFailures,
	}
}

func (m *PipelineMetrics) EnrollmentCreated(source string) {
	if m == nil || m.enrollments == nil {
		return
	}
	m.enrollments.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *PipelineMetrics) PaymentTransition(from, to string) {
	if m == nil || m.paymentTransitions == nil {
		return
	}
	m.paymentTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *PipelineMetrics) CertificateIssued(source string) {
	if m == nil || m.certificatesIssued == nil {
		return
	}
	m.certificatesIssued.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *PipelineMetrics) IssuanceFailed(code string) {
	if m == nil || m.issuanceFailures == nil {
		return
	}
	m.issuanceFailures.WithLabelValues(normalizeLabel(code)).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fxtoolworks/licensebot/pkg/enums"
)

// LicensingMetrics counts license issuance and validation outcomes.
type LicensingMetrics struct {
	issued    *prometheus.CounterVec
	validated *prometheus.CounterVec
	resends   prometheus.Counter
}

// NewLicensingMetrics registers the licensing metrics on the provided registerer.
func NewLicensingMetrics(reg prometheus.Registerer) *LicensingMetrics {
	if reg == nil {
		return &LicensingMetrics{}
	}
	issued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "licenses_issued_total",
		Help:      "Licenses issued, labeled by kind (trial or paid).",
	}, []string{"kind"})
	validated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validations_total",
		Help:      "License validations, labeled by verdict.",
	}, []string{"verdict"})
	resends := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "artifact_resends_total",
		Help:      "Artifact resend requests served.",
	})
	reg.MustRegister(issued, validated, resends)
	return &LicensingMetrics{
		issued:    issued,
		validated: validated,
		resends:   resends,
	}
}

// IncIssued increments the issuance counter for the license kind.
func (m *LicensingMetrics) IncIssued(isTrial bool) {
	if m == nil || m.issued == nil {
		return
	}
	kind := "paid"
	if isTrial {
		kind = "trial"
	}
	m.issued.WithLabelValues(kind).Inc()
}

// IncValidated increments the validation counter for the given verdict.
func (m *LicensingMetrics) IncValidated(verdict enums.LicenseVerdict) {
	if m == nil || m.validated == nil {
		return
	}
	m.validated.WithLabelValues(normalizeLabel(verdict.String())).Inc()
}

// IncResend increments the resend counter.
func (m *LicensingMetrics) IncResend() {
	if m == nil || m.resends == nil {
		return
	}
	m.resends.Inc()
}

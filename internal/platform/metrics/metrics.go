// Package metrics registers the Prometheus instruments for the authorization
// core. Feature services receive *Metrics optionally; a nil receiver is safe
// so tests can skip registration.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AuthorizeOutcomes  *prometheus.CounterVec
	AuthorizeDuration  prometheus.Histogram
	RegistryAcquires   *prometheus.CounterVec
	RegistryEstablish  prometheus.Counter
	LockChecks         *prometheus.CounterVec
	LockCheckAnomalies prometheus.Counter
	TenantSwitches     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AuthorizeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "punchgate_authorize_total",
			Help: "Authorization pipeline outcomes by terminal state.",
		}, []string{"outcome"}),
		AuthorizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "punchgate_authorize_duration_seconds",
			Help:    "End-to-end duration of the authorization pipeline.",
			Buckets: prometheus.DefBuckets,
		}),
		RegistryAcquires: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "punchgate_registry_acquires_total",
			Help: "Tenant store acquisitions by cache result.",
		}, []string{"result"}),
		RegistryEstablish: promauto.NewCounter(prometheus.CounterOpts{
			Name: "punchgate_registry_connections_established_total",
			Help: "Underlying tenant datastore connections established.",
		}),
		LockChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "punchgate_lock_checks_total",
			Help: "Payroll lock checks by result.",
		}, []string{"result"}),
		LockCheckAnomalies: promauto.NewCounter(prometheus.CounterOpts{
			Name: "punchgate_lock_check_anomalies_total",
			Help: "Timecards found in more than one active payroll batch.",
		}),
		TenantSwitches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "punchgate_tenant_switches_total",
			Help: "Canonical tenant reassignments performed.",
		}),
	}
}

// ObserveAuthorize records one pipeline run.
func (m *Metrics) ObserveAuthorize(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AuthorizeOutcomes.WithLabelValues(outcome).Inc()
	m.AuthorizeDuration.Observe(d.Seconds())
}

// ObserveRegistryAcquire records a cache hit, miss, or failure.
func (m *Metrics) ObserveRegistryAcquire(result string) {
	if m == nil {
		return
	}
	m.RegistryAcquires.WithLabelValues(result).Inc()
}

// IncConnectionsEstablished counts an underlying connection establishment.
func (m *Metrics) IncConnectionsEstablished() {
	if m == nil {
		return
	}
	m.RegistryEstablish.Inc()
}

// ObserveLockCheck records one lock check result ("locked", "unlocked", "error").
func (m *Metrics) ObserveLockCheck(result string) {
	if m == nil {
		return
	}
	m.LockChecks.WithLabelValues(result).Inc()
}

// IncLockAnomalies counts a multi-batch membership anomaly.
func (m *Metrics) IncLockAnomalies() {
	if m == nil {
		return
	}
	m.LockCheckAnomalies.Inc()
}

// IncTenantSwitches counts a canonical tenant reassignment.
func (m *Metrics) IncTenantSwitches() {
	if m == nil {
		return
	}
	m.TenantSwitches.Inc()
}

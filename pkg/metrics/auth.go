// Package metrics exposes Prometheus collectors for the auth service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome labels.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeDisabled           = "disabled"
	OutcomeConflict           = "conflict"
	OutcomeInvalid            = "invalid"
	OutcomeError              = "error"
	OutcomeValid              = "valid"
	OutcomeRejected           = "rejected"
)

// HashBuckets covers cheap test parameters up to heavily tuned production ones.
var HashBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2}

var (
	// LoginAttemptsTotal counts login attempts by outcome.
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts",
		},
		[]string{"outcome"},
	)

	// RegistrationsTotal counts registration attempts by outcome.
	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Registration attempts",
		},
		[]string{"outcome"},
	)

	// TokenValidationsTotal counts access token checks performed by the gate.
	TokenValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_validations_total",
			Help: "Access token validations",
		},
		[]string{"outcome"},
	)

	// PasswordHashSeconds records password derivation latency.
	PasswordHashSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_password_hash_seconds",
			Help:    "Password hash latency",
			Buckets: HashBuckets,
		},
		[]string{"operation"},
	)
)

// NewRegistry returns a registry holding the auth collectors plus the Go and
// process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		LoginAttemptsTotal,
		RegistrationsTotal,
		TokenValidationsTotal,
		PasswordHashSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ObserveHash records the duration of a hash or verify call started at start.
func ObserveHash(operation string, start time.Time) {
	PasswordHashSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

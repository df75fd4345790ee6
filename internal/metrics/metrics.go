// Package metrics exposes Prometheus counters for the sign-up flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verification outcomes.
const (
	OutcomeVerified         = "verified"
	OutcomeInvalid          = "invalid"
	OutcomeAttemptsExceeded = "attempts_exceeded"
	OutcomeError            = "error"
)

// MetricsCollector is what services record into.
type MetricsCollector interface {
	RecordCodeIssued()
	RecordCodeThrottled()
	RecordDeliveryFailure()
	RecordVerification(outcome string)
	RecordRegistration(success bool)
	RecordProfileRetry()
	RecordCompensation(kind string)
	RecordCleanup(kind string, n int64)
}

type Collector struct {
	codesIssued      prometheus.Counter
	codesThrottled   prometheus.Counter
	deliveryFailures prometheus.Counter
	verifications    *prometheus.CounterVec
	registrations    *prometheus.CounterVec
	profileRetries   prometheus.Counter
	compensations    *prometheus.CounterVec
	cleanedUp        *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voty_verification_codes_issued_total",
			Help: "Verification codes issued and handed to the SMS gateway.",
		}),
		codesThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voty_verification_codes_throttled_total",
			Help: "Code requests rejected by the send limiter.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voty_verification_delivery_failures_total",
			Help: "SMS gateway failures while sending a code.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voty_verification_attempts_total",
			Help: "Verification attempts by outcome.",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voty_registrations_total",
			Help: "Registration attempts by result.",
		}, []string{"result"}),
		profileRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voty_profile_create_retries_total",
			Help: "Retried profile writes after identity creation.",
		}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voty_registration_compensations_total",
			Help: "Saga compensations by kind (deleted, marked, failed).",
		}, []string{"kind"}),
		cleanedUp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voty_cleanup_deleted_total",
			Help: "Rows removed by the cleanup job.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.codesIssued,
		c.codesThrottled,
		c.deliveryFailures,
		c.verifications,
		c.registrations,
		c.profileRetries,
		c.compensations,
		c.cleanedUp,
	)
	return c
}

func (c *Collector) RecordCodeIssued()      { c.codesIssued.Inc() }
func (c *Collector) RecordCodeThrottled()   { c.codesThrottled.Inc() }
func (c *Collector) RecordDeliveryFailure() { c.deliveryFailures.Inc() }
func (c *Collector) RecordProfileRetry()    { c.profileRetries.Inc() }

func (c *Collector) RecordVerification(outcome string) {
	c.verifications.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRegistration(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.registrations.WithLabelValues(result).Inc()
}

func (c *Collector) RecordCompensation(kind string) {
	c.compensations.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordCleanup(kind string, n int64) {
	if n > 0 {
		c.cleanedUp.WithLabelValues(kind).Add(float64(n))
	}
}

// Handler serves the given gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordCodeIssued()           {}
func (Nop) RecordCodeThrottled()        {}
func (Nop) RecordDeliveryFailure()      {}
func (Nop) RecordVerification(string)   {}
func (Nop) RecordRegistration(bool)     {}
func (Nop) RecordProfileRetry()         {}
func (Nop) RecordCompensation(string)   {}
func (Nop) RecordCleanup(string, int64) {}

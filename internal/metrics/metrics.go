package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	wafRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bastion_waf_requests_total",
		Help: "Total number of requests evaluated by the WAF",
	})
	wafBlockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bastion_waf_blocked_total",
		Help: "Total number of requests blocked by the WAF",
	})
	rateLimitRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bastion_ratelimit_rejected_total",
		Help: "Total number of requests rejected by the adaptive rate limiter",
	})
	penaltyBoxBlockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bastion_penaltybox_blocked_total",
		Help: "Total number of requests refused while an identifier sat in the penalty box",
	})
	csrfFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bastion_csrf_failures_total",
		Help: "Total number of CSRF token validation failures",
	})
	validationRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bastion_validation_rejected_total",
		Help: "Total number of payloads rejected by input validation",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		wafRequestsTotal,
		wafBlockedTotal,
		rateLimitRejectedTotal,
		penaltyBoxBlockedTotal,
		csrfFailuresTotal,
		validationRejectedTotal,
	)
}

// IncWAFRequest increments the evaluated requests counter.
func IncWAFRequest() { wafRequestsTotal.Inc() }

// IncWAFBlocked increments the blocked requests counter.
func IncWAFBlocked() { wafBlockedTotal.Inc() }

// IncRateLimitRejected increments the adaptive limiter rejection counter.
func IncRateLimitRejected() { rateLimitRejectedTotal.Inc() }

// IncPenaltyBoxBlocked increments the penalty-box refusal counter.
func IncPenaltyBoxBlocked() { penaltyBoxBlockedTotal.Inc() }

// IncCSRFFailure increments the CSRF failure counter.
func IncCSRFFailure() { csrfFailuresTotal.Inc() }

// IncValidationRejected increments the validation rejection counter.
func IncValidationRejected() { validationRejectedTotal.Inc() }

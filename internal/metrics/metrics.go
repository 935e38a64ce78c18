// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitcoach_http_requests_total",
		Help: "HTTP requests by route pattern, method and status.",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fitcoach_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// AuthFailuresTotal counts rejected credentials. surface is "web" or "mobile".
	AuthFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitcoach_auth_failures_total",
		Help: "Rejected authentication attempts.",
	}, []string{"surface", "reason"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitcoach_webhook_events_total",
		Help: "Billing webhook deliveries by vendor and outcome.",
	}, []string{"vendor", "outcome"})

	TrialStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitcoach_trial_starts_total",
		Help: "Trial start requests by result.",
	}, []string{"result"})

	AccessGuardRedirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitcoach_access_guard_redirects_total",
		Help: "Page requests redirected by the access guard.",
	}, []string{"target"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitcoach_rate_limited_total",
		Help: "Requests rejected by rate limiting.",
	}, []string{"purpose"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitcoach_emails_sent_total",
		Help: "Transactional emails by kind and result.",
	}, []string{"kind", "result"})
)

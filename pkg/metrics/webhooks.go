package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes. "ignored" is a first-class outcome, not a failure: it
// covers unmapped event types, out-of-scope entitlements, and unresolved users.
const (
	OutcomeApplied         = "applied"
	OutcomeIgnored         = "ignored"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeInvalid         = "invalid"
	OutcomeFailed          = "failed"
)

// WebhookMetrics records deliveries per billing provider.
type WebhookMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_webhook_duration_seconds",
		Help:    "Duration of billing webhook deliveries in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Billing webhook deliveries by provider and outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(duration, outcomes)
	return &WebhookMetrics{
		duration: duration,
		outcomes: outcomes,
	}
}

// ObserveDuration records the processing duration for the named provider.
func (m *WebhookMetrics) ObserveDuration(provider string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}

// IncOutcome increments the delivery counter for the provider/outcome pair.
func (m *WebhookMetrics) IncOutcome(provider, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

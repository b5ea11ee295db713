package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records outcomes of provider event reconciliation.
type WebhookMetrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	gaps     *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Processed webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_event_duration_seconds",
		Help:    "Duration of webhook event handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	gaps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_reconciliation_gaps_total",
		Help: "Events referencing local records that were never created.",
	}, []string{"type"})
	reg.MustRegister(events, duration, gaps)
	return &WebhookMetrics{
		events:   events,
		duration: duration,
		gaps:     gaps,
	}
}

// IncEvent counts one handled event with its outcome.
func (w *WebhookMetrics) IncEvent(eventType, outcome string) {
	if w == nil || w.events == nil {
		return
	}
	w.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveDuration records handling time for the event type.
func (w *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncReconciliationGap counts an event whose local counterpart was missing.
func (w *WebhookMetrics) IncReconciliationGap(eventType string) {
	if w == nil || w.gaps == nil {
		return
	}
	w.gaps.WithLabelValues(normalizeLabel(eventType)).Inc()
}

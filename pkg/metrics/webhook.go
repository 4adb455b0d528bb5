package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts inbound processor notifications by outcome.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	rejected  prometheus.Counter
	failed    *prometheus.CounterVec
	escalated *prometheus.CounterVec
}

// NewWebhookMetrics registers webhook ingest counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Webhook events accepted for processing.",
	}, []string{"event_type"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Webhook deliveries acknowledged as already processed.",
	}, []string{"event_type"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_rejected",
		Help: "Webhook deliveries rejected before any ledger write.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed",
		Help: "Webhook handler failures awaiting processor redelivery.",
	}, []string{"event_type"})
	escalated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_escalated",
		Help: "Webhook events past the retry cap, routed to manual review.",
	}, []string{"event_type"})
	reg.MustRegister(received, duplicate, rejected, failed, escalated)
	return &WebhookMetrics{
		received:  received,
		duplicate: duplicate,
		rejected:  rejected,
		failed:    failed,
		escalated: escalated,
	}
}

func (w *WebhookMetrics) IncReceived(eventType string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(eventType).Inc()
}

func (w *WebhookMetrics) IncDuplicate(eventType string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(eventType).Inc()
}

func (w *WebhookMetrics) IncRejected() {
	if w == nil || w.rejected == nil {
		return
	}
	w.rejected.Inc()
}

func (w *WebhookMetrics) IncFailed(eventType string) {
	if w == nil || w.failed == nil {
		return
	}
	w.failed.WithLabelValues(eventType).Inc()
}

func (w *WebhookMetrics) IncEscalated(eventType string) {
	if w == nil || w.escalated == nil {
		return
	}
	w.escalated.WithLabelValues(eventType).Inc()
}

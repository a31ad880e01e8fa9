// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docmind"

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeStale     = "stale"
	OutcomeDelivered = "delivered"
	OutcomeDropped   = "dropped"
)

var (
	// EnrichmentTotal counts finished enrichment jobs.
	// Labels: kind (full, summary, tags), outcome (success, error, stale)
	EnrichmentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_total",
		Help:      "Document enrichment jobs by kind and outcome",
	}, []string{"kind", "outcome"})

	// EnrichmentDuration measures time spent in AI calls per enrichment job.
	EnrichmentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "enrichment_duration_seconds",
		Help:      "Document enrichment latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"kind"})

	// BroadcastMessages counts per-subscriber deliveries.
	// Labels: outcome (delivered, dropped)
	BroadcastMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_messages_total",
		Help:      "Real-time messages handed to subscribers",
	}, []string{"outcome"})

	// RealtimeSubscribers is the number of live real-time connections.
	RealtimeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_subscribers",
		Help:      "Connected real-time subscribers",
	})

	// SearchRequests counts search calls.
	// Labels: mode (text, semantic, qa), outcome (success, error)
	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_requests_total",
		Help:      "Search and question answering requests",
	}, []string{"mode", "outcome"})

	// AIRequests counts calls to the AI provider.
	// Labels: op (summarize, tags, embed, answer), outcome (success, error)
	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_requests_total",
		Help:      "AI provider calls by operation and outcome",
	}, []string{"op", "outcome"})
)

// Outcome maps an error to the success/error label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

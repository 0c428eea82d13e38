// Package telemetry holds the process-wide prometheus collectors.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_appended_total",
			Help: "Message copies written, by side (sender, recipient).",
		},
		[]string{"side"},
	)
	FanoutFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fanout_failures_total",
			Help: "Dual writes where a copy failed, by outcome (partial, total).",
		},
		[]string{"outcome"},
	)
	IndexUpserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_index_upserts_total",
			Help: "Recent-conversation upserts, by result (applied, stale, error).",
		},
		[]string{"result"},
	)
	LikeToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_like_toggles_total",
			Help: "Like toggles, by outcome (liked, unliked, conflict, error).",
		},
		[]string{"outcome"},
	)
	LikeRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_like_retries_total",
		Help: "Like read-modify-write cycles retried after a version conflict.",
	})
	ActiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_feed_subscriptions",
		Help: "Open change feed subscriptions.",
	})
	DroppedSubscribers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_feed_slow_consumers_total",
		Help: "Subscriptions terminated because their in-flight window filled.",
	})
	ReconciledCopies = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_reconciled_copies_total",
		Help: "Missing message copies restored by reconciliation.",
	})
)

func init() {
	prometheus.MustRegister(
		MessagesAppended,
		FanoutFailures,
		IndexUpserts,
		LikeToggles,
		LikeRetries,
		ActiveSubscriptions,
		DroppedSubscribers,
		ReconciledCopies,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

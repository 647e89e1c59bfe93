// Package metrics holds the prometheus collectors shared by the refresh pipeline and the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshTotal counts refresh passes by outcome (applied, stale, failed).
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controlroom_refresh_total",
		Help: "Refresh passes by outcome",
	}, []string{"outcome"})

	// FeedFetchDuration tracks per-feed fetch latency.
	FeedFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "controlroom_feed_fetch_duration_seconds",
		Help:    "Analytics feed fetch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 11),
	}, []string{"feed"})

	// FeedFailures counts feeds that degraded to an empty default.
	FeedFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controlroom_feed_failures_total",
		Help: "Analytics feed failures by feed",
	}, []string{"feed"})

	// DecisionsGenerated counts generated decisions by category.
	DecisionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controlroom_decisions_generated_total",
		Help: "Decisions produced by the generator by category",
	}, []string{"category"})

	// AlertsActive reports the alert count of the last applied pass by severity.
	AlertsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "controlroom_alerts_active",
		Help: "Alerts in the last applied pass by severity",
	}, []string{"severity"})

	// Transitions counts lifecycle transitions by target status.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controlroom_decision_transitions_total",
		Help: "Decision lifecycle transitions by target status",
	}, []string{"to"})
)

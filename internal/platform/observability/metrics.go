package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_evaluations_total",
		Help: "The total number of message evaluations by decision",
	}, []string{"decision"})

	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_signals_total",
		Help: "The total number of risk signals raised by detector code",
	}, []string{"code"})

	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_events_recorded_total",
		Help: "The total number of moderation events persisted by action",
	}, []string{"action"})

	EventsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_events_resolved_total",
		Help: "The total number of moderation events resolved",
	})

	QueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moderation_queue_size",
		Help: "Current number of open and acknowledged moderation events",
	})

	QueueOldestAgeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moderation_queue_oldest_age_seconds",
		Help: "Age in seconds of the oldest unresolved moderation event",
	})

	ResolutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderation_resolution_duration_seconds",
		Help:    "Time from event creation to resolution",
		Buckets: []float64{60, 300, 900, 1800, 3600, 14400, 43200, 86400, 259200, 604800},
	})

	MessagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_messages_ingested_total",
		Help: "The total number of community messages accepted by intake",
	}, []string{"channel"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moderation_stream_clients",
		Help: "Current number of connected event stream clients",
	})

	StreamEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_stream_events_dropped_total",
		Help: "Events dropped because a stream client could not keep up",
	})
)

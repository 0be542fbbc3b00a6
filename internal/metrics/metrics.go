package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revenued_events_processed_total",
		Help: "Total number of invoice lifecycle events applied, labelled by operation.",
	}, []string{"operation"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revenued_events_dropped_total",
		Help: "Total number of malformed events logged and dropped.",
	})

	EventsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revenued_events_duplicate_total",
		Help: "Total number of redelivered events skipped by the dedupe ledger.",
	})

	HandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revenued_handler_errors_total",
		Help: "Total number of event handler failures, labelled by error category.",
	}, []string{"category"})

	EventHandlingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "revenued_event_handling_duration_ms",
		Help:    "End-to-end event handling latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	Recalculations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revenued_recalculations_total",
		Help: "Total number of period recalculations, labelled by outcome.",
	}, []string{"status"})
)

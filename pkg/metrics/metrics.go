// Package metrics defines the Prometheus collectors for the ingestion,
// routing, and execution subsystems, and a generic ObservationHooks
// constructor for wiring internal/corekit operations to a namespaced
// gauge/histogram pair without each caller hand-rolling its own collector.
//
// Metrics are consumed internally (internal/corekit's ObservationHooks); no
// dashboard or alerting surface is part of this module.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/r3e-network/xrail/internal/corekit"
)

// Registry holds this module's Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	adapterTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrail",
			Subsystem: "ingest",
			Name:      "adapter_ticks_total",
			Help:      "Total number of adapter ticks, by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	adapterEdgesEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrail",
			Subsystem: "ingest",
			Name:      "edges_emitted_total",
			Help:      "Total number of normalized edges emitted by an adapter tick.",
		},
		[]string{"provider"},
	)

	adapterDisabled = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "xrail",
			Subsystem: "ingest",
			Name:      "adapter_disabled",
			Help:      "1 if the adapter is currently in a backoff or auth-disabled window.",
		},
		[]string{"provider"},
	)

	schedulerTickSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrail",
			Subsystem: "ingest",
			Name:      "scheduler_ticks_skipped_total",
			Help:      "Ticks skipped because the previous tick for the class was still running.",
		},
		[]string{"class"},
	)

	routeOptimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrail",
			Subsystem: "routing",
			Name:      "optimizations_total",
			Help:      "Total number of optimize_route calls, by outcome.",
		},
		[]string{"outcome"},
	)

	routeCandidatesReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xrail",
			Subsystem: "routing",
			Name:      "candidates_returned",
			Help:      "Number of candidate routes returned per optimize_route call.",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		},
		[]string{"solver"},
	)

	executionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrail",
			Subsystem: "execution",
			Name:      "transitions_total",
			Help:      "Total number of ExecutionRecord state transitions.",
		},
		[]string{"from", "to"},
	)

	segmentOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrail",
			Subsystem: "execution",
			Name:      "segment_outcomes_total",
			Help:      "Total number of segment outcomes, by segment class and status.",
		},
		[]string{"segment_class", "status"},
	)

	confirmationPolls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xrail",
			Subsystem: "execution",
			Name:      "confirmation_polls",
			Help:      "Number of polls consumed before a segment confirmation settled.",
			Buckets:   prometheus.LinearBuckets(0, 2, 16),
		},
		[]string{"provider"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		adapterTicks,
		adapterEdgesEmitted,
		adapterDisabled,
		schedulerTickSkipped,
		routeOptimizations,
		routeCandidatesReturned,
		executionTransitions,
		segmentOutcomes,
		confirmationPolls,
	)
}

// Handler exposes the registry for a Prometheus scrape.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordAdapterTick records the outcome of one adapter tick.
func RecordAdapterTick(provider, outcome string, edgeCount int) {
	adapterTicks.WithLabelValues(provider, outcome).Inc()
	if edgeCount > 0 {
		adapterEdgesEmitted.WithLabelValues(provider).Add(float64(edgeCount))
	}
}

// SetAdapterDisabled reflects whether an adapter is currently in a backoff
// or auth-disabled window.
func SetAdapterDisabled(provider string, disabled bool) {
	v := 0.0
	if disabled {
		v = 1.0
	}
	adapterDisabled.WithLabelValues(provider).Set(v)
}

// RecordSchedulerTickSkipped records a backpressure skip for a cadence class.
func RecordSchedulerTickSkipped(class string) {
	schedulerTickSkipped.WithLabelValues(class).Inc()
}

// RecordRouteOptimization records one optimize_route call.
func RecordRouteOptimization(outcome string, candidates int, solver string) {
	routeOptimizations.WithLabelValues(outcome).Inc()
	routeCandidatesReturned.WithLabelValues(solver).Observe(float64(candidates))
}

// RecordExecutionTransition records one ExecutionRecord state transition.
func RecordExecutionTransition(from, to string) {
	executionTransitions.WithLabelValues(from, to).Inc()
}

// RecordSegmentOutcome records one segment outcome.
func RecordSegmentOutcome(segmentClass, status string) {
	segmentOutcomes.WithLabelValues(segmentClass, status).Inc()
}

// RecordConfirmationPolls records how many polls a confirmation consumed.
func RecordConfirmationPolls(provider string, polls int) {
	confirmationPolls.WithLabelValues(provider).Observe(float64(polls))
}

type observationCollector struct {
	gauge *prometheus.GaugeVec
	hist  *prometheus.HistogramVec
}

var observationCollectors sync.Map

// ObservationHooks returns a corekit.ObservationHooks wired to a namespaced
// in-flight gauge and duration histogram, creating and registering the
// underlying collectors on first use.
func ObservationHooks(subsystem, name string) corekit.ObservationHooks {
	key := subsystem + ":" + name
	var collector observationCollector
	if entry, ok := observationCollectors.Load(key); ok {
		collector = entry.(observationCollector)
	} else {
		collector = createObservationCollector(subsystem, name)
		observationCollectors.Store(key, collector)
	}
	return corekit.ObservationHooks{
		OnStart: func(ctx context.Context, meta map[string]string) {
			label := metaLabel(meta)
			collector.gauge.WithLabelValues(label).Inc()
		},
		OnComplete: func(ctx context.Context, meta map[string]string, err error, duration time.Duration) {
			label := metaLabel(meta)
			collector.gauge.WithLabelValues(label).Dec()
			status := "success"
			if err != nil {
				status = "error"
			}
			collector.hist.WithLabelValues(label, status).Observe(duration.Seconds())
		},
	}
}

func createObservationCollector(subsystem, name string) observationCollector {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "xrail",
			Subsystem: subsystem,
			Name:      name + "_in_flight",
			Help:      "Current operations in flight for " + subsystem,
		},
		[]string{"resource"},
	)
	hist := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xrail",
			Subsystem: subsystem,
			Name:      name + "_duration_seconds",
			Help:      "Duration of operations for " + subsystem,
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"resource", "status"},
	)
	Registry.MustRegister(gauge, hist)
	return observationCollector{gauge: gauge, hist: hist}
}

func metaLabel(meta map[string]string) string {
	if meta == nil {
		return "unknown"
	}
	for _, key := range []string{"provider", "execution_id", "segment_class"} {
		if v, ok := meta[key]; ok && v != "" {
			return v
		}
	}
	return "unknown"
}

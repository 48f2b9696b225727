// Package metrics exposes prometheus collectors for index builds and viewport queries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"flametrace/pkg/models"
)

var (
	// buildDuration tracks index + segment tree construction time
	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flametrace_build_duration_seconds",
		Help:    "Time to build the event index and per-depth segment trees",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	buildEvents = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flametrace_build_events",
		Help:    "Events per built trace",
		Buckets: prometheus.ExponentialBuckets(10, 4, 10),
	})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flametrace_query_duration_seconds",
		Help:    "Segment tree viewport query duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10µs to ~80ms
	}, []string{"frame"})

	queryVisibleRects = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flametrace_query_visible_rects",
		Help:    "Individually visible rectangles per query",
		Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
	})

	queryBuckets = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flametrace_query_buckets",
		Help:    "Pixel buckets emitted per query",
		Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000},
	})

	queryMaxBucketEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flametrace_query_max_events_per_bucket",
		Help: "Largest bucket population seen by the most recent query",
	})

	hitTests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flametrace_hit_tests_total",
		Help: "Pointer hit tests by result",
	}, []string{"result"}) // "hit" or "miss"

	pipelineTraces = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flametrace_pipeline_traces_total",
		Help: "Trace documents consumed by the pipeline by outcome",
	}, []string{"outcome"}) // "ok" or "error"

	alertsRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flametrace_alerts_total",
		Help: "Degenerate frame alerts raised",
	})
)

// ObserveBuild records one trace build.
func ObserveBuild(d time.Duration, events int) {
	buildDuration.Observe(d.Seconds())
	buildEvents.Observe(float64(events))
}

// ObserveQuery records one viewport query.
func ObserveQuery(frame string, d time.Duration, stats models.FrameStats) {
	queryDuration.WithLabelValues(frame).Observe(d.Seconds())
	queryVisibleRects.Observe(float64(stats.VisibleCount))
	queryBuckets.Observe(float64(stats.BucketCount))
	queryMaxBucketEvents.Set(float64(stats.MaxEventsPerBucket))
}

// ObserveHitTest records whether a pointer hit test found an event.
func ObserveHitTest(hit bool) {
	if hit {
		hitTests.WithLabelValues("hit").Inc()
		return
	}
	hitTests.WithLabelValues("miss").Inc()
}

// ObserveTrace records a pipeline outcome.
func ObserveTrace(err error) {
	if err != nil {
		pipelineTraces.WithLabelValues("error").Inc()
		return
	}
	pipelineTraces.WithLabelValues("ok").Inc()
}

// ObserveAlerts counts raised alerts.
func ObserveAlerts(n int) {
	alertsRaised.Add(float64(n))
}

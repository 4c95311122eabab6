// Package metrics exposes the router's own Prometheus metrics: tick
// duration, live session count, and frame compositing/overrun counters.
// These sit alongside the core (§5's scheduling model), never inside
// the tick's per-pixel loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "patchbay",
		Subsystem: "router",
		Name:      "tick_duration_seconds",
		Help:      "Time spent compositing and publishing a single tick",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
	})

	tickOverrunTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "patchbay",
		Subsystem: "router",
		Name:      "tick_overrun_total",
		Help:      "Number of ticks that ran past their 40ms deadline",
	})

	liveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "patchbay",
		Subsystem: "registry",
		Name:      "live_sessions",
		Help:      "Number of currently registered sessions, by kind",
	}, []string{"kind"})

	framesComposited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "patchbay",
		Subsystem: "router",
		Name:      "frames_composited_total",
		Help:      "Number of (input, output) pairs composited across all ticks",
	})
)

// ObserveTick records one tick's wall-clock duration.
func ObserveTick(seconds float64) {
	tickDuration.Observe(seconds)
}

// IncTickOverrun records one tick running past its deadline.
func IncTickOverrun() {
	tickOverrunTotal.Inc()
}

// SetLiveSessions sets the current count of live sessions of kind.
func SetLiveSessions(kind string, count int) {
	liveSessions.WithLabelValues(kind).Set(float64(count))
}

// IncFramesComposited records one input-onto-output composite.
func IncFramesComposited() {
	framesComposited.Inc()
}

// Handler returns the HTTP handler serving every promauto-registered
// metric in the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

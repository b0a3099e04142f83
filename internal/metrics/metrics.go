package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	operationStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "landodeck",
			Subsystem: "operation",
			Name:      "started_total",
			Help:      "Number of operations launched.",
		}, []string{"kind"},
	)
	operationFinishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "landodeck",
			Subsystem: "operation",
			Name:      "finished_total",
			Help:      "Number of operations that reached a terminal state.",
		}, []string{"kind", "result"},
	)
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "landodeck",
			Subsystem: "operation",
			Name:      "duration_seconds",
			Help:      "Wall-clock time from launch to terminal state.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"kind"},
	)
	inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "landodeck",
			Subsystem: "operation",
			Name:      "in_flight",
			Help:      "Operations currently running.",
		},
	)
	records = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "landodeck",
			Subsystem: "operation",
			Name:      "records",
			Help:      "Operation records held in memory.",
		},
	)
	evicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "landodeck",
			Subsystem: "operation",
			Name:      "evicted_total",
			Help:      "Finished operation records dropped by retention.",
		},
	)
	lines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "landodeck",
			Subsystem: "operation",
			Name:      "lines_total",
			Help:      "Output lines appended to operation logs.",
		}, []string{"kind"},
	)
	lockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "landodeck",
			Subsystem: "site",
			Name:      "lock_wait_seconds",
			Help:      "Time an operation waited for another operation on the same site.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{operationStarts, operationFinishes, operationDuration, inFlight, records, evicted, lines, lockWait}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func OperationStarted(kind string) {
	if regOK.Load() {
		operationStarts.WithLabelValues(kind).Inc()
	}
}

func OperationFinished(kind, result string, d time.Duration) {
	if regOK.Load() {
		operationFinishes.WithLabelValues(kind, result).Inc()
		operationDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

func IncInFlight() {
	if regOK.Load() {
		inFlight.Inc()
	}
}

func DecInFlight() {
	if regOK.Load() {
		inFlight.Dec()
	}
}

func SetRecords(n int) {
	if regOK.Load() {
		records.Set(float64(n))
	}
}

func AddEvicted(n int) {
	if regOK.Load() && n > 0 {
		evicted.Add(float64(n))
	}
}

func AddLines(kind string, n int) {
	if regOK.Load() && n > 0 {
		lines.WithLabelValues(kind).Add(float64(n))
	}
}

func ObserveLockWait(d time.Duration) {
	if regOK.Load() {
		lockWait.Observe(d.Seconds())
	}
}

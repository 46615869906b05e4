package persistence

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "tweaks"
	subsystem = "persistence"

	writesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "writes_total",
			Help:      "Total number of full-cache rewrites by result",
		},
		[]string{"store", "result"},
	)

	writeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "write_duration_seconds",
			Help:      "Duration of full-cache rewrites in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"store"},
	)

	loadFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "load_failures_total",
			Help:      "Total number of loads that fell back to an empty cache",
		},
		[]string{"store"},
	)

	persistedEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entries",
			Help:      "Number of entries in the last successful rewrite",
		},
		[]string{"store"},
	)
)

func recordWrite(store string, entries int, duration time.Duration, err error) {
	writeDuration.WithLabelValues(store).Observe(duration.Seconds())
	if err != nil {
		writesTotal.WithLabelValues(store, "error").Inc()
		return
	}
	writesTotal.WithLabelValues(store, "ok").Inc()
	persistedEntries.WithLabelValues(store).Set(float64(entries))
}

func recordLoadFailure(store string) {
	loadFailuresTotal.WithLabelValues(store).Inc()
}

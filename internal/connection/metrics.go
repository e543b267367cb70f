package connection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nzcore"

// Prometheus counters exposed by the connection pool: total_created,
// total_destroyed, total_acquired, total_released, acquire_errors, and
// aggregate bytes in/out.
var (
	TotalCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "connections_created_total",
		Help:      "Total connections added to the pool.",
	})
	TotalDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "connections_destroyed_total",
		Help:      "Total connections removed from the pool.",
	})
	TotalAcquired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "acquired_total",
		Help:      "Total successful Acquire calls.",
	})
	TotalReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "released_total",
		Help:      "Total Release calls.",
	})
	AcquireErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "acquire_errors_total",
		Help:      "Total Acquire calls that failed (NoConnection or timeout).",
	})
	BytesIn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "bytes_in_total",
		Help:      "Aggregate bytes read across all pooled connections.",
	})
	BytesOut = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "bytes_out_total",
		Help:      "Aggregate bytes written across all pooled connections.",
	})
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "active_connections",
		Help:      "Current connection count held by the pool.",
	})
)

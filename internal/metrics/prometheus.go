package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Migration metrics
	MigrationsTotal   *prometheus.CounterVec
	MigrationDuration prometheus.Histogram

	// Tool invocation metrics
	ToolInvocations *prometheus.CounterVec

	// Topology metrics
	TopologyLookups *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		MigrationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lfsutils_migrations_total",
				Help: "Total number of migration attempts by outcome",
			},
			[]string{"state"},
		),

		MigrationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lfsutils_migration_duration_seconds",
				Help:    "Duration of migration attempts",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
			},
		),

		ToolInvocations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lfsutils_tool_invocations_total",
				Help: "Total number of external tool invocations",
			},
			[]string{"command", "result"},
		),

		TopologyLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lfsutils_topology_lookups_total",
				Help: "Total number of topology lookup operations",
			},
			[]string{"operation"},
		),
	}
}

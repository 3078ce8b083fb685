// Package metrics exposes prometheus counters for log records and file
// rotations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "logfactory"

// LogMetrics holds the counters a Factory updates.
type LogMetrics struct {
	// RecordsTotal counts accepted records by logger and level name
	RecordsTotal *prometheus.CounterVec
	// RotationsTotal counts file rotations by handler kind
	RotationsTotal *prometheus.CounterVec
}

// New registers the counters with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *LogMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &LogMetrics{
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Total number of log records accepted by a logger",
			},
			[]string{"logger", "level"},
		),
		RotationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rotations_total",
				Help:      "Total number of log file rotations",
			},
			[]string{"kind"},
		),
	}
}

// Record counts one record.
func (m *LogMetrics) Record(logger, level string) {
	m.RecordsTotal.WithLabelValues(logger, level).Inc()
}

// Rotation counts one rotation of a handler of the given kind.
func (m *LogMetrics) Rotation(kind string) {
	m.RotationsTotal.WithLabelValues(kind).Inc()
}

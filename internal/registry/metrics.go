package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks service lifecycle counters.
type Metrics struct {
	Created      prometheus.Counter
	Exited       *prometheus.CounterVec
	ActiveCount  prometheus.Gauge
	LaunchErrors *prometheus.CounterVec
}

// NewMetrics registers registry metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Created: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qsf",
			Subsystem: "registry",
			Name:      "services_created_total",
			Help:      "Total number of services successfully created.",
		}),
		Exited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qsf",
			Subsystem: "registry",
			Name:      "services_exited_total",
			Help:      "Total number of services that have returned from run, by outcome.",
		}, []string{"outcome"}),
		ActiveCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qsf",
			Subsystem: "registry",
			Name:      "active_services",
			Help:      "Current number of registered services.",
		}),
		LaunchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qsf",
			Subsystem: "registry",
			Name:      "launch_errors_total",
			Help:      "Total number of create() calls rejected by validation, the reserved-name check, or the duplicate-name check.",
		}, []string{"reason"}),
	}
}

package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks router-level counters, modeled on the teacher's
// RealtimeMetrics (internal/realtime/metrics.go in the source corpus).
type Metrics struct {
	FramesRouted     prometheus.Counter
	FramesDropped    *prometheus.CounterVec
	SysCommands      *prometheus.CounterVec
	ActiveMailboxes  prometheus.Gauge
}

// NewMetrics registers the router's metrics against reg. Passing a
// fresh prometheus.Registry per router lets tests construct many
// routers without colliding on metric names.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FramesRouted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qsf",
			Subsystem: "router",
			Name:      "frames_routed_total",
			Help:      "Total number of frames successfully forwarded to a destination mailbox.",
		}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qsf",
			Subsystem: "router",
			Name:      "frames_dropped_total",
			Help:      "Total number of frames dropped, by reason.",
		}, []string{"reason"}),
		SysCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qsf",
			Subsystem: "router",
			Name:      "sys_commands_total",
			Help:      "Total number of sys control commands observed, by command.",
		}, []string{"command"}),
		ActiveMailboxes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qsf",
			Subsystem: "router",
			Name:      "active_mailboxes",
			Help:      "Current number of mailboxes connected to the router.",
		}),
	}
}

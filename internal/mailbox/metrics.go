package mailbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks per-process mailbox counters.
type Metrics struct {
	Sent       prometheus.Counter
	SendErrors prometheus.Counter
	Received   prometheus.Counter
}

// NewMetrics registers mailbox metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Sent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qsf",
			Subsystem: "mailbox",
			Name:      "sent_total",
			Help:      "Total number of frames successfully queued for sending.",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qsf",
			Subsystem: "mailbox",
			Name:      "send_errors_total",
			Help:      "Total number of local send failures (size limit, invalid peer).",
		}),
		Received: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qsf",
			Subsystem: "mailbox",
			Name:      "received_total",
			Help:      "Total number of frames successfully received.",
		}),
	}
}

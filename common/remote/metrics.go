package remote

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts commands per host and outcome. They are kept on a private
// registry and written out at the end of a suite.
type Metrics struct {
	Registry *prometheus.Registry
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gluster_e2e",
			Name:      "remote_commands_total",
			Help:      "Commands dispatched to hosts, by outcome.",
		}, []string{"host", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gluster_e2e",
			Name:      "remote_command_duration_seconds",
			Help:      "Wall clock time of remote commands.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		}, []string{"host"}),
	}
	m.Registry.MustRegister(m.commands, m.duration)
	return m
}

func outcome(r Result) string {
	switch {
	case r.Ok():
		return "ok"
	case r.TransportFailed():
		return "transport_failure"
	default:
		return "rc_" + strconv.Itoa(r.Rc)
	}
}

func (m *Metrics) observe(host string, r Result, d time.Duration) {
	m.commands.WithLabelValues(host, outcome(r)).Inc()
	m.duration.WithLabelValues(host).Observe(d.Seconds())
}

// WriteTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

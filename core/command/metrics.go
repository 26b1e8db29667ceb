package command

import "github.com/prometheus/client_golang/prometheus"

var (
	commandOutcomes     *prometheus.CounterVec
	confirmationLatency *prometheus.HistogramVec
	commandsSuperseded  prometheus.Counter
	commandsPending     prometheus.Gauge
)

func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Counter, prometheus.Gauge) {
	out := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "command_outcomes_total",
		Help: "Terminal outcomes of dispatched commands",
	}, []string{"method", "outcome"})
	lat := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "command_confirmation_seconds",
		Help:    "Time from dispatch to confirmation",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 12, 20},
	}, []string{"class"})
	sup := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "command_superseded_total",
		Help: "Pending commands replaced by a newer dispatch",
	})
	pend := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "command_pending",
		Help: "Commands awaiting confirmation",
	})
	return out, lat, sup, pend
}

func init() {
	commandOutcomes, confirmationLatency, commandsSuperseded, commandsPending = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers command metrics on reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(commandOutcomes, confirmationLatency, commandsSuperseded, commandsPending)
}

// ResetMetrics reinitializes metrics for tests and registers them on reg if
// not nil.
func ResetMetrics(reg prometheus.Registerer) {
	commandOutcomes, confirmationLatency, commandsSuperseded, commandsPending = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

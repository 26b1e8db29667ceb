package reachability

import "github.com/prometheus/client_golang/prometheus"

var (
	deviceOnline      *prometheus.GaugeVec
	deviceChecks      *prometheus.CounterVec
	deviceTransitions *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
)

func newCollectors() (*prometheus.GaugeVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Histogram) {
	online := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "device_online",
		Help: "1 when the device is reachable, 0 otherwise",
	}, []string{"device"})
	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "device_checks_total",
		Help: "Reachability checks by result",
	}, []string{"result"})
	trans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "device_transitions_total",
		Help: "Reachability transitions by new status",
	}, []string{"status"})
	sweep := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "device_sweep_duration_seconds",
		Help:    "Duration of a reachability sweep",
		Buckets: prometheus.DefBuckets,
	})
	return online, checks, trans, sweep
}

func init() {
	deviceOnline, deviceChecks, deviceTransitions, sweepDuration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers reachability metrics on reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(deviceOnline, deviceChecks, deviceTransitions, sweepDuration)
}

// ResetMetrics reinitializes metrics for tests and registers them on reg if
// not nil.
func ResetMetrics(reg prometheus.Registerer) {
	deviceOnline, deviceChecks, deviceTransitions, sweepDuration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

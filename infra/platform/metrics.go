package platform

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	loginsTotal    *prometheus.CounterVec
)

func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.CounterVec) {
	req := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_requests_total",
		Help: "Platform API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	lat := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platform_request_duration_seconds",
		Help:    "Latency of platform API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	login := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_logins_total",
		Help: "Session logins by outcome",
	}, []string{"outcome"})
	return req, lat, login
}

func init() {
	requestsTotal, requestLatency, loginsTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers the client metrics on reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(requestsTotal, requestLatency, loginsTotal)
}

// ResetMetrics reinitializes the collectors for tests and registers them on
// reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	requestsTotal, requestLatency, loginsTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

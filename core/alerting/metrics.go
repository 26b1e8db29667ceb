package alerting

import "github.com/prometheus/client_golang/prometheus"

var (
	alertsFired      *prometheus.CounterVec
	ruleErrors       prometheus.Counter
	rulesCoolingDown prometheus.Counter
)

func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Counter) {
	fired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensor_alerts_total",
		Help: "Sensor alerts emitted by severity",
	}, []string{"severity"})
	errs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensor_rule_errors_total",
		Help: "Alert rules that could not be evaluated",
	})
	cool := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensor_rules_cooling_down_total",
		Help: "Rule evaluations skipped by the cooldown gate",
	})
	return fired, errs, cool
}

func init() {
	alertsFired, ruleErrors, rulesCoolingDown = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers alerting metrics on reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(alertsFired, ruleErrors, rulesCoolingDown)
}

// ResetMetrics reinitializes metrics for tests and registers them on reg if
// not nil.
func ResetMetrics(reg prometheus.Registerer) {
	alertsFired, ruleErrors, rulesCoolingDown = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/agrolink/core/metrics"
)

// PromSink records domain events in Prometheus metrics.
type PromSink struct {
	events     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	offline    prometheus.Histogram
	alertValue *prometheus.GaugeVec
}

// NewPromSink registers event metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrolink_events_total",
		Help: "Domain events recorded by type",
	}, []string{"type"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "command_latency_seconds",
		Help:    "Time between command send and its terminal outcome",
		Buckets: []float64{0.5, 1, 2, 4, 8, 12, 20},
	}, []string{"method", "outcome"})
	offline := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "device_offline_duration_seconds",
		Help:    "Length of offline periods ending with a reconnection",
		Buckets: prometheus.ExponentialBuckets(30, 4, 8),
	})
	alertValue := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sensor_alert_last_value",
		Help: "Sensor value of the last alert per device and key",
	}, []string{"device_id", "sensor"})

	var err error
	if events, err = register(reg, events); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	if offline, err = register(reg, offline); err != nil {
		return nil, err
	}
	if alertValue, err = register(reg, alertValue); err != nil {
		return nil, err
	}
	return &PromSink{events: events, latency: latency, offline: offline, alertValue: alertValue}, nil
}

// register returns the already registered collector when c was registered
// before on reg.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordCommandOutcome(rec coremetrics.CommandRecord) error {
	s.events.WithLabelValues("command_outcome").Inc()
	s.latency.WithLabelValues(rec.Method, rec.Outcome).Observe(rec.Latency.Seconds())
	return nil
}

func (s *PromSink) RecordDeviceTransition(rec coremetrics.TransitionRecord) error {
	s.events.WithLabelValues("device_transition").Inc()
	if rec.Online && rec.OfflineFor > 0 {
		s.offline.Observe(rec.OfflineFor.Seconds())
	}
	return nil
}

func (s *PromSink) RecordAlert(rec coremetrics.AlertRecord) error {
	s.events.WithLabelValues("sensor_alert").Inc()
	s.alertValue.WithLabelValues(rec.DeviceID, rec.Key).Set(rec.Value)
	return nil
}

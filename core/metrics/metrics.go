package metrics

import (
	"time"

	"github.com/kilianp07/agrolink/core/model"
)

// CommandRecord is the terminal outcome of one dispatched command.
type CommandRecord struct {
	DispatchID string
	DeviceID   string
	Method     string
	Outcome    string
	Message    string
	Latency    time.Duration
	Time       time.Time
}

// MetricsSink records command outcomes for observability purposes.
type MetricsSink interface {
	RecordCommandOutcome(rec CommandRecord) error
}

// TransitionRecord is an online/offline change of a device.
type TransitionRecord struct {
	DeviceID   string
	TenantID   string
	Online     bool
	OfflineFor time.Duration
	Time       time.Time
}

// TransitionRecorder records device reachability transitions.
type TransitionRecorder interface {
	RecordDeviceTransition(rec TransitionRecord) error
}

// AlertRecord is a fired sensor rule.
type AlertRecord struct {
	RuleID   string
	DeviceID string
	Key      string
	Value    float64
	Severity model.Severity
	Time     time.Time
}

// AlertRecorder records sensor alerts.
type AlertRecorder interface {
	RecordAlert(rec AlertRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCommandOutcome(CommandRecord) error       { return nil }
func (NopSink) RecordDeviceTransition(TransitionRecord) error { return nil }
func (NopSink) RecordAlert(AlertRecord) error                 { return nil }

// MultiSink fans records out to several sinks. Optional recorders are only
// called on sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCommandOutcome forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCommandOutcome(rec CommandRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordCommandOutcome(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordDeviceTransition forwards transitions.
func (m *MultiSink) RecordDeviceTransition(rec TransitionRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(TransitionRecorder); ok {
			if err := r.RecordDeviceTransition(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAlert forwards alerts.
func (m *MultiSink) RecordAlert(rec AlertRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(AlertRecorder); ok {
			if err := r.RecordAlert(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

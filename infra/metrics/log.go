package metrics

import (
	"github.com/kilianp07/agrolink/core/logger"
	coremetrics "github.com/kilianp07/agrolink/core/metrics"
)

// LogSink writes every record as a structured debug entry. It is meant for
// local runs without a metrics backend.
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) RecordCommandOutcome(rec coremetrics.CommandRecord) error {
	s.log.Debugw("command outcome", map[string]any{
		"dispatch_id": rec.DispatchID, "device_id": rec.DeviceID, "method": rec.Method,
		"outcome": rec.Outcome, "latency_ms": rec.Latency.Milliseconds(),
	})
	return nil
}

func (s *LogSink) RecordDeviceTransition(rec coremetrics.TransitionRecord) error {
	s.log.Debugw("device transition", map[string]any{
		"device_id": rec.DeviceID, "tenant_id": rec.TenantID, "online": rec.Online,
		"offline_seconds": int64(rec.OfflineFor.Seconds()),
	})
	return nil
}

func (s *LogSink) RecordAlert(rec coremetrics.AlertRecord) error {
	s.log.Debugw("sensor alert", map[string]any{
		"rule_id": rec.RuleID, "device_id": rec.DeviceID, "sensor": rec.Key,
		"value": rec.Value, "severity": string(rec.Severity),
	})
	return nil
}

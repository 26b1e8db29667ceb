package model

import (
	"fmt"
	"time"
)

// ConditionType selects how a sensor value is compared against a rule.
type ConditionType string

const (
	ConditionAbove   ConditionType = "above"
	ConditionBelow   ConditionType = "below"
	ConditionEqual   ConditionType = "equal"
	ConditionBetween ConditionType = "between"
	ConditionOutside ConditionType = "outside"
)

// Severity tags notifications emitted by the monitors.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertRule is a threshold rule on one sensor key of one device.
// LastTriggeredAt is the only field written back by the sensor monitor.
type AlertRule struct {
	ID              string        `json:"id"`
	DeviceID        string        `json:"device_id"`
	SensorKey       string        `json:"sensor_key"`
	Condition       ConditionType `json:"condition"`
	Threshold       float64       `json:"threshold"`
	Min             *float64      `json:"min,omitempty"`
	Max             *float64      `json:"max,omitempty"`
	Severity        Severity      `json:"severity"`
	CooldownSeconds int           `json:"cooldown_seconds"`
	Active          bool          `json:"active"`
	LastTriggeredAt time.Time     `json:"last_triggered_at"`
}

// Cooldown returns the minimum delay between two alerts of the rule.
func (r AlertRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownSeconds) * time.Second
}

// Validate checks that the rule is complete for its condition.
func (r AlertRule) Validate() error {
	if r.ID == "" || r.DeviceID == "" || r.SensorKey == "" {
		return fmt.Errorf("rule requires id, device_id and sensor_key")
	}
	switch r.Condition {
	case ConditionAbove, ConditionBelow, ConditionEqual:
	case ConditionBetween, ConditionOutside:
		if r.Min == nil || r.Max == nil {
			return fmt.Errorf("rule %s: %s requires min and max", r.ID, r.Condition)
		}
		if *r.Min > *r.Max {
			return fmt.Errorf("rule %s: min > max", r.ID)
		}
	default:
		return fmt.Errorf("rule %s: unknown condition %q", r.ID, r.Condition)
	}
	if r.CooldownSeconds < 0 {
		return fmt.Errorf("rule %s: cooldown_seconds must not be negative", r.ID)
	}
	return nil
}

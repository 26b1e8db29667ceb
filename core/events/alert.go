package events

import (
	"time"

	"github.com/kilianp07/agrolink/core/model"
)

// AlertEvent is emitted when an alert rule fires.
type AlertEvent struct {
	RuleID   string
	DeviceID string
	Key      string
	Value    float64
	Severity model.Severity
	At       time.Time
}

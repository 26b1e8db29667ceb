// Package store defines the persistence collaborators of the monitors.
package store

import (
	"context"
	"time"

	"github.com/kilianp07/agrolink/core/model"
)

// DeviceStatus is the persisted reachability state of a device.
// OfflineSince is zero while the device is online.
type DeviceStatus struct {
	DeviceID     string    `json:"device_id"`
	Online       bool      `json:"online"`
	LastChecked  time.Time `json:"last_checked"`
	OfflineSince time.Time `json:"offline_since,omitempty"`
}

// StatusStore persists device reachability. It is written on transitions
// and first observations only.
type StatusStore interface {
	SaveStatus(ctx context.Context, st DeviceStatus) error
	Statuses(ctx context.Context) ([]DeviceStatus, error)
}

// RuleStore exposes alert rules maintained by the admin collaborator. The
// sensor monitor only writes back the trigger time.
type RuleStore interface {
	ActiveRules(ctx context.Context) ([]model.AlertRule, error)
	MarkTriggered(ctx context.Context, ruleID string, at time.Time) error
}

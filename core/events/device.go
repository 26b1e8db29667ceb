package events

import "time"

// DeviceTransitionEvent is emitted when the reachability status of a device
// changes. OfflineFor is zero unless the device came back online.
type DeviceTransitionEvent struct {
	DeviceID   string
	TenantID   string
	Online     bool
	OfflineFor time.Duration
	At         time.Time
}

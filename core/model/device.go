package model

import "fmt"

// DeviceStatus is the lifecycle status assigned to a device by the project registry.
type DeviceStatus string

const (
	DeviceActive      DeviceStatus = "active"
	DeviceReady       DeviceStatus = "ready"
	DeviceInactive    DeviceStatus = "inactive"
	DeviceMaintenance DeviceStatus = "maintenance"
)

// Device is a field device registered in a project and mirrored on the remote
// platform under RemoteID.
type Device struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	TenantID string       `json:"tenant_id"`
	RemoteID string       `json:"remote_id"`
	Status   DeviceStatus `json:"status"`
}

// Monitored reports whether the device has a remote identifier and can be
// reached through the platform.
func (d Device) Monitored() bool { return d.RemoteID != "" }

// Ready reports whether alert rules bound to the device should be evaluated.
func (d Device) Ready() bool {
	return d.Status == DeviceActive || d.Status == DeviceReady || d.Status == ""
}

// DisplayName returns the name used in notifications.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Validate checks that the device can be routed to a tenant.
func (d Device) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("device id is required")
	}
	if d.TenantID == "" {
		return fmt.Errorf("device %s: tenant_id is required", d.ID)
	}
	return nil
}

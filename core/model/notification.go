package model

import "time"

// NotificationType classifies events handed to the notification sink.
type NotificationType string

const (
	NotificationDeviceOffline NotificationType = "device_offline"
	NotificationDeviceOnline  NotificationType = "device_online"
	NotificationSensorAlert   NotificationType = "sensor_alert"
)

// Notification is a structured event produced by the monitors. It is not
// owned by this service; sinks decide how to store or deliver it.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Severity  Severity         `json:"severity"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	DeviceID  string           `json:"device_id"`
	CreatedAt time.Time        `json:"created_at"`
}

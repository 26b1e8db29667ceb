package events

import "time"

// CommandOutcomeEvent is published once per dispatch when it reaches a
// terminal state. Outcome is "confirmed", "timed_out" or "dispatch_failed".
type CommandOutcomeEvent struct {
	DispatchID string
	DeviceID   string
	Method     string
	Outcome    string
	Message    string
	Latency    time.Duration
}

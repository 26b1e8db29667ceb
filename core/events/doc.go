// Package events defines the domain events emitted on the event bus.
//
// Available event types:
//   - CommandOutcomeEvent: terminal outcome of a dispatched command
//   - DeviceTransitionEvent: online/offline transition of a device
//   - AlertEvent: threshold rule that fired
package events

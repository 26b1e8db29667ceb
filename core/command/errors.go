package command

import "errors"

var (
	// ErrConfirmationTimeout reports that the device accepted a command but
	// never reported the expected state before the deadline. The actuator
	// may still have changed.
	ErrConfirmationTimeout = errors.New("command not confirmed before deadline")
	// ErrDispatchFailed reports that the RPC could not be delivered.
	ErrDispatchFailed = errors.New("command dispatch failed")
	// ErrInvalidParams is returned for parameters an actuator cannot accept.
	ErrInvalidParams = errors.New("invalid command parameters")
)

// Outcome is the terminal state of a dispatch.
type Outcome string

const (
	OutcomeConfirmed      Outcome = "confirmed"
	OutcomeTimedOut       Outcome = "timed_out"
	OutcomeDispatchFailed Outcome = "dispatch_failed"
)

// Err maps the outcome to an error, nil for Confirmed.
func (o Outcome) Err() error {
	switch o {
	case OutcomeConfirmed:
		return nil
	case OutcomeTimedOut:
		return ErrConfirmationTimeout
	default:
		return ErrDispatchFailed
	}
}

package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth is returned for rejected credentials or a persistent 401/403.
	ErrAuth = errors.New("platform authentication failed")
	// ErrConnection is returned for network failures and non-2xx responses.
	ErrConnection = errors.New("platform connection failed")
	// ErrTimeout is returned when a platform call exceeds its deadline.
	ErrTimeout = errors.New("platform request timed out")
	// ErrDeviceUnreachable is returned when the reachability attribute
	// reports the device offline.
	ErrDeviceUnreachable = errors.New("device unreachable")
)

// StatusError describes a non-2xx response. It matches ErrConnection.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrConnection }

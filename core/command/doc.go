// Package command turns fire-and-forget platform RPCs into observable
// outcomes.
//
// A Dispatcher sends a command, then polls the attribute the device reports
// for that actuator until it matches the expected value or the per-class
// deadline elapses. Each dispatch ends in exactly one of Confirmed, TimedOut
// or DispatchFailed, and at most one dispatch per method is tracked at a time.
package command

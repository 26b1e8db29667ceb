// Package metrics defines the sinks recording command outcomes, device
// transitions and sensor alerts. Sinks like PromSink and InfluxSink can be
// combined with NewMultiSink; the factory helpers return a MultiSink
// automatically when several sinks are configured.
package metrics

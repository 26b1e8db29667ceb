package platform

import (
	"strconv"
	"strings"
	"time"
)

// Token is a platform session. Values are immutable once cached; a refresh
// replaces the whole value.
type Token struct {
	Access    string
	Refresh   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Lifetime is the validity granted when the token was issued, or zero when
// the issue time is unknown.
func (t Token) Lifetime() time.Duration {
	if t.IssuedAt.IsZero() {
		return 0
	}
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// ValidAt reports whether the token can still be used at now, keeping
// buffer of margin before expiry.
func (t Token) ValidAt(now time.Time, buffer time.Duration) bool {
	return t.Access != "" && t.ExpiresAt.After(now.Add(buffer))
}

// Point is one telemetry sample.
type Point struct {
	TS    time.Time
	Value string
}

// Float parses the sample value as a number.
func (p Point) Float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
}

// Telemetry maps a key to its samples, most recent first.
type Telemetry map[string][]Point

// Latest returns the most recent sample for key.
func (t Telemetry) Latest(key string) (Point, bool) {
	pts := t[key]
	if len(pts) == 0 {
		return Point{}, false
	}
	latest := pts[0]
	for _, p := range pts[1:] {
		if p.TS.After(latest.TS) {
			latest = p
		}
	}
	return latest, true
}

// Attributes maps an attribute key to its decoded JSON value.
type Attributes map[string]any

// Aggregation selects the platform-side aggregation of a series read.
type Aggregation string

const (
	AggNone  Aggregation = "NONE"
	AggAvg   Aggregation = "AVG"
	AggMin   Aggregation = "MIN"
	AggMax   Aggregation = "MAX"
	AggSum   Aggregation = "SUM"
	AggCount Aggregation = "COUNT"
)

// SeriesQuery describes a time-ranged telemetry read. Interval and Agg are
// optional; Agg defaults to AggNone.
type SeriesQuery struct {
	Keys     []string
	Start    time.Time
	End      time.Time
	Interval time.Duration
	Agg      Aggregation
	Limit    int
}

// RPC is a remote invocation. Params are sent as given: the encoding of
// booleans and motor directions is dictated by the device firmware.
type RPC struct {
	Method  string
	Params  any
	Timeout time.Duration
	TwoWay  bool
}

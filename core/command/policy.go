package command

import (
	"fmt"
	"time"
)

// Policy holds the confirmation timings.
type Policy struct {
	// CheckOffsets are the delays after dispatch at which the reported
	// state is read. They must be increasing.
	CheckOffsets []time.Duration
	// TTL is the hard confirmation deadline per actuator class.
	TTL map[ActuatorClass]time.Duration
	// SettleDelay is waited before a fire-and-forget command succeeds.
	SettleDelay time.Duration
	// RPCTimeout bounds the RPC send.
	RPCTimeout time.Duration
	// CheckTimeout bounds each attribute read.
	CheckTimeout time.Duration
}

// DefaultPolicy returns the production timings.
func DefaultPolicy() Policy {
	return Policy{
		CheckOffsets: []time.Duration{1200 * time.Millisecond, 2800 * time.Millisecond},
		TTL: map[ActuatorClass]time.Duration{
			ClassSimple:   8 * time.Second,
			ClassCompound: 12 * time.Second,
		},
		SettleDelay:  500 * time.Millisecond,
		RPCTimeout:   5 * time.Second,
		CheckTimeout: 3 * time.Second,
	}
}

// ttl returns the deadline of class, falling back to the simple one.
func (p Policy) ttl(class ActuatorClass) time.Duration {
	if d, ok := p.TTL[class]; ok && d > 0 {
		return d
	}
	if d, ok := p.TTL[ClassSimple]; ok && d > 0 {
		return d
	}
	return DefaultPolicy().TTL[ClassSimple]
}

// Validate checks that every check fits before each class deadline.
func (p Policy) Validate() error {
	var prev time.Duration
	for i, off := range p.CheckOffsets {
		if off <= prev {
			return fmt.Errorf("check offset %d (%s) must be positive and increasing", i, off)
		}
		prev = off
	}
	for class, ttl := range p.TTL {
		if ttl <= prev {
			return fmt.Errorf("ttl of %s actuators (%s) must exceed the last check offset (%s)", class, ttl, prev)
		}
	}
	if p.RPCTimeout <= 0 || p.CheckTimeout <= 0 {
		return fmt.Errorf("rpc and check timeouts must be positive")
	}
	if p.SettleDelay < 0 {
		return fmt.Errorf("settle delay must not be negative")
	}
	return nil
}

package config

import (
	"time"

	"github.com/kilianp07/agrolink/core/command"
)

// CommandsConfig defines the confirmation timings and the command catalog.
// Durations are in milliseconds unless stated otherwise.
type CommandsConfig struct {
	CheckOffsetsMS      []int                `json:"check_offsets_ms"`
	SettleDelayMS       int                  `json:"settle_delay_ms"`
	RPCTimeoutSeconds   int                  `json:"rpc_timeout_seconds"`
	CheckTimeoutSeconds int                  `json:"check_timeout_seconds"`
	TTLSeconds          map[string]int       `json:"ttl_seconds"`
	Descriptors         []command.Descriptor `json:"descriptors"`
}

// SetDefaults applies the production timings to unset values.
func (c *CommandsConfig) SetDefaults() {
	def := command.DefaultPolicy()
	if len(c.CheckOffsetsMS) == 0 {
		for _, off := range def.CheckOffsets {
			c.CheckOffsetsMS = append(c.CheckOffsetsMS, int(off/time.Millisecond))
		}
	}
	if c.SettleDelayMS <= 0 {
		c.SettleDelayMS = int(def.SettleDelay / time.Millisecond)
	}
	if c.RPCTimeoutSeconds <= 0 {
		c.RPCTimeoutSeconds = int(def.RPCTimeout / time.Second)
	}
	if c.CheckTimeoutSeconds <= 0 {
		c.CheckTimeoutSeconds = int(def.CheckTimeout / time.Second)
	}
	if c.TTLSeconds == nil {
		c.TTLSeconds = map[string]int{}
	}
	for class, ttl := range def.TTL {
		if c.TTLSeconds[string(class)] <= 0 {
			c.TTLSeconds[string(class)] = int(ttl / time.Second)
		}
	}
}

// Policy converts the timings.
func (c CommandsConfig) Policy() command.Policy {
	p := command.Policy{
		SettleDelay:  time.Duration(c.SettleDelayMS) * time.Millisecond,
		RPCTimeout:   time.Duration(c.RPCTimeoutSeconds) * time.Second,
		CheckTimeout: time.Duration(c.CheckTimeoutSeconds) * time.Second,
		TTL:          make(map[command.ActuatorClass]time.Duration, len(c.TTLSeconds)),
	}
	for _, off := range c.CheckOffsetsMS {
		p.CheckOffsets = append(p.CheckOffsets, time.Duration(off)*time.Millisecond)
	}
	for class, ttl := range c.TTLSeconds {
		p.TTL[command.ActuatorClass(class)] = time.Duration(ttl) * time.Second
	}
	return p
}

// Catalog builds the validated command catalog.
func (c CommandsConfig) Catalog() (*command.Catalog, error) {
	return command.NewCatalog(c.Descriptors...)
}

func (c CommandsConfig) Validate() error {
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	_, err := c.Catalog()
	return err
}

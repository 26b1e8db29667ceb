package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/agrolink/core/factory"
	"github.com/kilianp07/agrolink/core/model"
)

// ReachabilityConfig controls the device reachability sweep.
type ReachabilityConfig struct {
	IntervalSeconds     int `json:"interval_seconds"`
	CheckTimeoutSeconds int `json:"check_timeout_seconds"`
}

func (c *ReachabilityConfig) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 60
	}
	if c.CheckTimeoutSeconds <= 0 {
		c.CheckTimeoutSeconds = 10
	}
}

func (c ReachabilityConfig) Validate() error {
	if c.CheckTimeoutSeconds > c.IntervalSeconds {
		return fmt.Errorf("check_timeout_seconds must not exceed interval_seconds")
	}
	return nil
}

func (c ReachabilityConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c ReachabilityConfig) CheckTimeout() time.Duration {
	return time.Duration(c.CheckTimeoutSeconds) * time.Second
}

// AlertingConfig controls the sensor threshold sweep. Rules listed here are
// upserted into the rule store at startup.
type AlertingConfig struct {
	IntervalSeconds     int               `json:"interval_seconds"`
	FetchTimeoutSeconds int               `json:"fetch_timeout_seconds"`
	Rules               []model.AlertRule `json:"rules"`
}

func (c *AlertingConfig) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 60
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 10
	}
}

func (c AlertingConfig) Validate() error {
	seen := make(map[string]struct{}, len(c.Rules))
	for _, r := range c.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate rule %s", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

func (c AlertingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c AlertingConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// StoreConfig selects the persistence backend: "memory" or "sqlite".
type StoreConfig struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "agrolink.db"
	}
}

func (c StoreConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}

// NotifyConfig lists the notification sinks. When the top-level mqtt
// section names a broker, an MQTT sink publishing under TopicPrefix is
// added to them.
type NotifyConfig struct {
	Sinks       []factory.ModuleConfig `json:"sinks"`
	TopicPrefix string                 `json:"topic_prefix"`
}

func (c *NotifyConfig) SetDefaults() {
	if len(c.Sinks) == 0 {
		c.Sinks = []factory.ModuleConfig{{Type: "log"}}
	}
}

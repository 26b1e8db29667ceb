package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/agrolink/core/metrics"
	"github.com/kilianp07/agrolink/infra/mqtt"
	"github.com/kilianp07/agrolink/infra/platform"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: AG_PLATFORM__TIMEOUT_SECONDS sets platform.timeout_seconds.
const EnvPrefix = "AG_"

type Config struct {
	Platform     platform.Config    `json:"platform"`
	Tenants      []TenantConfig     `json:"tenants"`
	Commands     CommandsConfig     `json:"commands"`
	Reachability ReachabilityConfig `json:"reachability"`
	Alerting     AlertingConfig     `json:"alerting"`
	Store        StoreConfig        `json:"store"`
	Notify       NotifyConfig       `json:"notify"`
	Metrics      metrics.Config     `json:"metrics"`
	Sentry       SentryConfig       `json:"sentry"`
	MQTT         mqtt.Config        `json:"mqtt"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	prefix := strings.ToLower(EnvPrefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), prefix)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section with its defaults.
func (c *Config) SetDefaults() {
	c.Platform.SetDefaults()
	c.Commands.SetDefaults()
	c.Reachability.SetDefaults()
	c.Alerting.SetDefaults()
	c.Store.SetDefaults()
	c.Notify.SetDefaults()
	c.Sentry.SetDefaults()
	c.MQTT.SetDefaults()
	for i := range c.Tenants {
		c.Tenants[i].SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Platform.Validate(); err != nil {
		return fmt.Errorf("platform: %w", err)
	}
	if len(c.Tenants) == 0 {
		return fmt.Errorf("tenants: at least one tenant is required")
	}
	for _, t := range c.Tenants {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tenants: %w", err)
		}
	}
	if err := c.Commands.Validate(); err != nil {
		return fmt.Errorf("commands: %w", err)
	}
	if err := c.Reachability.Validate(); err != nil {
		return fmt.Errorf("reachability: %w", err)
	}
	if err := c.Alerting.Validate(); err != nil {
		return fmt.Errorf("alerting: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	return nil
}

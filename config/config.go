// Package config loads the xagent driver configuration from YAML with
// XAGENT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trickstertwo/xagent/schedule"
)

// Config is the driver configuration.
type Config struct {
	Bus      BusConfig        `yaml:"bus"`
	Log      LogConfig        `yaml:"log"`
	Metrics  MetricsConfig    `yaml:"metrics"`
	Tracing  TracingConfig    `yaml:"tracing"`
	World    WorldConfig      `yaml:"world"`
	Agents   []AgentConfig    `yaml:"agents"`
	Schedule []schedule.Entry `yaml:"schedule"`
	// Timeout bounds a whole run (0 = until every agent stops or a signal arrives).
	Timeout time.Duration `yaml:"timeout"`
	// AutoStart sends RESUME to every agent once the group is running.
	AutoStart bool `yaml:"auto_start"`
}

// BusConfig selects the mailbox store and bus options.
type BusConfig struct {
	// Store is a registered store name: "memory" or "redis".
	Store         string         `yaml:"store"`
	Options       map[string]any `yaml:"options"`
	CommandSource string         `yaml:"command_source"`
	// ObserverWorkers > 0 dispatches observer events asynchronously.
	ObserverWorkers int `yaml:"observer_workers"`
	ObserverBuffer  int `yaml:"observer_buffer"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// TracingConfig selects the span exporter: "none" (default) or "stdout".
type TracingConfig struct {
	Exporter    string `yaml:"exporter"`
	ServiceName string `yaml:"service_name"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `yaml:"addr"`
}

// WorldConfig shapes the in-memory demo world.
type WorldConfig struct {
	GroundHeight int `yaml:"ground_height"`
	// Roughness adds a deterministic bump pattern of this amplitude.
	Roughness int `yaml:"roughness"`
}

// AgentConfig declares one agent.
type AgentConfig struct {
	Name         string         `yaml:"name"`
	ID           int            `yaml:"id"`
	Kind         string         `yaml:"kind"`
	TickInterval time.Duration  `yaml:"tick_interval"`
	IdleInterval time.Duration  `yaml:"idle_interval"`
	Settings     map[string]any `yaml:"settings"`
}

// Kinds understood by the driver.
const (
	KindScout   = "scout"
	KindBuilder = "builder"
)

// Defaults returns the demo configuration: an in-memory bus with one scout
// feeding one builder.
func Defaults() Config {
	return Config{
		Bus: BusConfig{
			Store:         "memory",
			CommandSource: "System",
		},
		Log:       LogConfig{Level: "info"},
		Tracing:   TracingConfig{Exporter: "none", ServiceName: "xagent"},
		AutoStart: true,
		World:     WorldConfig{GroundHeight: 64},
		Agents: []AgentConfig{
			{Name: "Scout", ID: 1, Kind: KindScout, TickInterval: 100 * time.Millisecond,
				Settings: map[string]any{"target": "Builder", "radius": 4, "areas": 3}},
			{Name: "Builder", ID: 2, Kind: KindBuilder, TickInterval: 50 * time.Millisecond,
				Settings: map[string]any{"blocks": 5}},
		},
	}
}

// Load reads path (optional) over Defaults, then applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes YAML into cfg; keys absent from data keep their current values.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// ApplyEnv applies XAGENT_* overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("XAGENT_STORE"); v != "" {
		c.Bus.Store = v
	}
	if v := getenv("XAGENT_REDIS_ADDR"); v != "" {
		if c.Bus.Options == nil {
			c.Bus.Options = map[string]any{}
		}
		c.Bus.Options["addr"] = v
	}
	if v := getenv("XAGENT_REDIS_PASSWORD"); v != "" {
		if c.Bus.Options == nil {
			c.Bus.Options = map[string]any{}
		}
		c.Bus.Options["password"] = v
	}
	if v := getenv("XAGENT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("XAGENT_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := getenv("XAGENT_TRACING"); v != "" {
		c.Tracing.Exporter = v
	}
	if v := getenv("XAGENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("XAGENT_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks the configuration is runnable.
func (c *Config) Validate() error {
	if c.Bus.Store == "" {
		return errors.New("bus.store is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("tracing.exporter %q is not one of none, stdout", c.Tracing.Exporter)
	}
	if len(c.Agents) == 0 {
		return errors.New("at least one agent must be configured")
	}
	seen := map[string]bool{}
	for i, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agents[%d]: name is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("agents[%d]: duplicate name %q", i, a.Name)
		}
		seen[a.Name] = true
		switch a.Kind {
		case KindScout, KindBuilder:
		default:
			return fmt.Errorf("agents[%d]: unknown kind %q", i, a.Kind)
		}
		if a.TickInterval < 0 || a.IdleInterval < 0 {
			return fmt.Errorf("agents[%d]: intervals must not be negative", i)
		}
	}
	for i, e := range c.Schedule {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("schedule[%d]: %w", i, err)
		}
	}
	return nil
}

// Int reads an integer setting, accepting the numeric types YAML produces.
func (a AgentConfig) Int(key string, def int) int {
	switch v := a.Settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// String reads a string setting.
func (a AgentConfig) String(key, def string) string {
	if v, ok := a.Settings[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Duration reads a duration setting written as "250ms" or similar.
func (a AgentConfig) Duration(key string, def time.Duration) time.Duration {
	if v, ok := a.Settings[key].(string); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

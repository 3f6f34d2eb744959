// Package config loads appsim settings from a YAML file with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvDB                = "APPSIM_DB"
	EnvLogLevel          = "APPSIM_LOG_LEVEL"
	EnvMaxDepth          = "APPSIM_MAX_DEPTH"
	EnvMaxLoopIterations = "APPSIM_MAX_LOOP_ITERATIONS"
)

// Config is the full appsim configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

// EngineConfig holds interpreter resource limits.
type EngineConfig struct {
	MaxNestedDepth    int `yaml:"maxNestedDepth"`
	MaxLoopIterations int `yaml:"maxLoopIterations"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls the CLI log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// RateLimitConfig configures the per-agent token bucket. A zero
// PerAgentRPS disables limiting.
type RateLimitConfig struct {
	PerAgentRPS float64 `yaml:"perAgentRPS"`
	Burst       int     `yaml:"burst"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			MaxNestedDepth:    10,
			MaxLoopIterations: 1000,
		},
		Store: StoreConfig{Path: "appsim.db"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path, merges it over Default and applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode unmarshals data over cfg, rejecting unknown keys. Keys absent
// from the file keep their current values.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides cfg from the environment. getenv is os.Getenv in
// production.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvDB)); v != "" {
		cfg.Store.Path = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	for _, o := range []struct {
		name string
		dst  *int
	}{
		{EnvMaxDepth, &cfg.Engine.MaxNestedDepth},
		{EnvMaxLoopIterations, &cfg.Engine.MaxLoopIterations},
	} {
		raw := strings.TrimSpace(getenv(o.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", o.name, err)
		}
		*o.dst = n
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Engine.MaxNestedDepth <= 0 {
		return fmt.Errorf("engine.maxNestedDepth must be positive, got %d", c.Engine.MaxNestedDepth)
	}
	if c.Engine.MaxLoopIterations <= 0 {
		return fmt.Errorf("engine.maxLoopIterations must be positive, got %d", c.Engine.MaxLoopIterations)
	}
	if c.RateLimit.PerAgentRPS < 0 {
		return fmt.Errorf("rateLimit.perAgentRPS must not be negative")
	}
	if c.RateLimit.PerAgentRPS > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rateLimit.burst must be positive when perAgentRPS is set")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

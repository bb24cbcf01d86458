// Package config loads the server configuration from YAML and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"automated-kingdom/server/internal/observability"
	"automated-kingdom/server/internal/session"
	"automated-kingdom/server/internal/sim"
	"automated-kingdom/server/internal/world"
	"automated-kingdom/server/logging"
)

const (
	EnvAddr           = "AK_ADDR"
	EnvTickRate       = "AK_TICK_RATE"
	EnvPersistenceDSN = "AK_PERSISTENCE_DSN"

	DefaultAddr            = ":8080"
	DefaultSnapshotEvery   = 3
	DefaultCommandCapacity = 1024
	DefaultPerAgentLimit   = 32
	DefaultCatchupMaxTicks = 5
	DefaultShutdownMillis  = 5000
	DefaultPersistenceDSN  = "data/snapshots.db"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Server      ServerConfig      `json:"server" yaml:"server"`
	Simulation  sim.Config        `json:"simulation" yaml:"simulation"`
	World       world.Config      `json:"world" yaml:"world"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
}

type ServerConfig struct {
	Addr            string `json:"addr" yaml:"addr"`
	TickRate        int    `json:"tickRate" yaml:"tickRate" jsonschema:"minimum=1,maximum=240"`
	CatchupMaxTicks int    `json:"catchupMaxTicks" yaml:"catchupMaxTicks" jsonschema:"minimum=0"`
	CommandCapacity int    `json:"commandCapacity" yaml:"commandCapacity" jsonschema:"minimum=1"`
	PerAgentLimit   int    `json:"perAgentLimit" yaml:"perAgentLimit" jsonschema:"minimum=0"`
	SnapshotEvery   int    `json:"snapshotEvery" yaml:"snapshotEvery" jsonschema:"minimum=1"`
	ShutdownMillis  int    `json:"shutdownMillis" yaml:"shutdownMillis" jsonschema:"minimum=0"`
	Pprof           bool   `json:"pprof" yaml:"pprof"`
}

type LoggingConfig struct {
	Level      string   `json:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	JSONFormat bool     `json:"jsonFormat" yaml:"jsonFormat"`
	Sinks      []string `json:"sinks" yaml:"sinks"`
	JSONPath   string   `json:"jsonPath,omitempty" yaml:"jsonPath,omitempty"`
	BufferSize int      `json:"bufferSize" yaml:"bufferSize" jsonschema:"minimum=0"`

	// MemoryEvents bounds the memory sink; zero keeps the router default.
	MemoryEvents int `json:"memoryEvents,omitempty" yaml:"memoryEvents,omitempty" jsonschema:"minimum=0"`
}

// PersistenceConfig selects the snapshot store. postgres:// DSNs use
// Postgres, anything else is a SQLite file path.
type PersistenceConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			TickRate:        sim.DefaultTickRate,
			CatchupMaxTicks: DefaultCatchupMaxTicks,
			CommandCapacity: DefaultCommandCapacity,
			PerAgentLimit:   DefaultPerAgentLimit,
			SnapshotEvery:   DefaultSnapshotEvery,
			ShutdownMillis:  DefaultShutdownMillis,
		},
		Simulation: sim.DefaultConfig(),
		World:      world.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
			Sinks: []string{logging.SinkConsole},
		},
		Persistence: PersistenceConfig{DSN: DefaultPersistenceDSN},
	}
}

func (c Config) normalized() Config {
	n := c
	n.Server.Addr = strings.TrimSpace(n.Server.Addr)
	if n.Server.Addr == "" {
		n.Server.Addr = DefaultAddr
	}
	if n.Server.TickRate <= 0 {
		n.Server.TickRate = sim.DefaultTickRate
	}
	if n.Server.CatchupMaxTicks < 0 {
		n.Server.CatchupMaxTicks = 0
	}
	if n.Server.CommandCapacity <= 0 {
		n.Server.CommandCapacity = DefaultCommandCapacity
	}
	if n.Server.PerAgentLimit < 0 {
		n.Server.PerAgentLimit = 0
	}
	if n.Server.SnapshotEvery <= 0 {
		n.Server.SnapshotEvery = DefaultSnapshotEvery
	}
	if n.Server.ShutdownMillis < 0 {
		n.Server.ShutdownMillis = 0
	}
	n.Simulation = n.Simulation.Normalized()
	n.World = n.World.Normalized()
	n.Logging.Level = strings.ToLower(strings.TrimSpace(n.Logging.Level))
	if n.Logging.Level == "" {
		n.Logging.Level = "info"
	}
	if len(n.Logging.Sinks) == 0 {
		n.Logging.Sinks = []string{logging.SinkConsole}
	}
	n.Persistence.DSN = strings.TrimSpace(n.Persistence.DSN)
	if n.Persistence.DSN == "" {
		n.Persistence.DSN = DefaultPersistenceDSN
	}
	return n
}

// Load reads path, validates it against the schema, and applies environment
// overrides. An empty path yields the defaults plus overrides.
func Load(path string) (Config, error) {
	if path == "" {
		return FromEnv(Default(), os.LookupEnv)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return FromEnv(cfg, os.LookupEnv)
}

// Parse validates and decodes a YAML document on top of the defaults.
func Parse(raw []byte) (Config, error) {
	if err := Validate(raw); err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.normalized(), nil
}

// FromEnv applies the AK_* overrides found through lookup.
func FromEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if raw, ok := lookup(EnvAddr); ok && strings.TrimSpace(raw) != "" {
		cfg.Server.Addr = strings.TrimSpace(raw)
	}
	if raw, ok := lookup(EnvTickRate); ok && strings.TrimSpace(raw) != "" {
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || value <= 0 {
			return Config{}, fmt.Errorf("invalid %s=%q: want a positive integer", EnvTickRate, raw)
		}
		cfg.Server.TickRate = value
	}
	if raw, ok := lookup(EnvPersistenceDSN); ok && strings.TrimSpace(raw) != "" {
		cfg.Persistence.DSN = strings.TrimSpace(raw)
	}
	return cfg.normalized(), nil
}

// Session derives the per-session settings.
func (c Config) Session() session.Config {
	return session.Config{
		World: c.World,
		Sim:   c.Simulation,
		Loop: sim.LoopConfig{
			TickRate:        c.Server.TickRate,
			CatchupMaxTicks: c.Server.CatchupMaxTicks,
			CommandCapacity: c.Server.CommandCapacity,
			PerAgentLimit:   c.Server.PerAgentLimit,
		},
		SnapshotEvery: c.Server.SnapshotEvery,
	}
}

// Router derives the event router settings.
func (c Config) Router() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	if c.Logging.BufferSize > 0 {
		cfg.BufferSize = c.Logging.BufferSize
	}
	cfg.MinimumSeverity = logging.ParseSeverity(c.Logging.Level)
	cfg.JSON.FilePath = c.Logging.JSONPath
	if c.Logging.MemoryEvents > 0 {
		cfg.Memory.Capacity = c.Logging.MemoryEvents
	}
	return cfg
}

func (c Config) Observability() observability.Config {
	return observability.Config{EnablePprof: c.Server.Pprof}
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownMillis) * time.Millisecond
}

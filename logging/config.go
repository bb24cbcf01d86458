package logging

import (
	"fmt"
	"time"
)

// Sink names accepted in Config.EnabledSinks.
const (
	SinkConsole = "console"
	SinkJSON    = "json"
	SinkMemory  = "memory"
)

const (
	defaultBufferSize       = 512
	defaultDropWarnInterval = 5 * time.Second
	defaultJSONFlush        = 2 * time.Second
	defaultMemoryCapacity   = 4096
)

// Config tunes the event router. Every session publishes through the same
// router, so Fields is the place for process-wide tags such as the node name.
type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	Memory           MemoryConfig
	DropWarnInterval time.Duration
}

// JSONConfig controls the newline-delimited JSON sink. An empty FilePath
// writes to the process output.
type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

// MemoryConfig bounds the in-process event log. Zero keeps every event.
type MemoryConfig struct {
	Capacity int
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole},
		BufferSize:       defaultBufferSize,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: defaultDropWarnInterval,
		JSON: JSONConfig{
			FlushInterval: defaultJSONFlush,
		},
		Memory: MemoryConfig{
			Capacity: defaultMemoryCapacity,
		},
	}
}

// Validate rejects sink names the server does not know how to build.
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.EnabledSinks))
	for _, name := range c.EnabledSinks {
		switch name {
		case SinkConsole, SinkJSON, SinkMemory:
		default:
			return fmt.Errorf("logging: unknown sink %q", name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("logging: sink %q listed twice", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (c Config) normalized() Config {
	n := c
	if n.BufferSize <= 0 {
		n.BufferSize = defaultBufferSize
	}
	if n.DropWarnInterval <= 0 {
		n.DropWarnInterval = defaultDropWarnInterval
	}
	n.Fields = c.cloneFields()
	return n
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) cloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}

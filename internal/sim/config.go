package sim

import (
	"strings"

	"automated-kingdom/server/internal/world"
)

const (
	HeuristicManhattan = "manhattan"
	HeuristicChebyshev = "chebyshev"

	DefaultPlayers       = 1
	DefaultMaxExpansions = 20000
)

// Config tunes agent movement and path planning for a world.
type Config struct {
	Players          int     `json:"players" yaml:"players" jsonschema:"minimum=0,maximum=4"`
	WorkersPerPlayer int     `json:"workersPerPlayer" yaml:"workersPerPlayer" jsonschema:"minimum=0"`
	AgentSpeed       float64 `json:"agentSpeed" yaml:"agentSpeed" jsonschema:"minimum=1"`
	PushSpeed        float64 `json:"pushSpeed" yaml:"pushSpeed" jsonschema:"minimum=1"`
	Heuristic        string  `json:"heuristic" yaml:"heuristic" jsonschema:"enum=manhattan,enum=chebyshev"`
	MaxExpansions    int     `json:"maxExpansions" yaml:"maxExpansions" jsonschema:"minimum=0"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.Players < 0 {
		normalized.Players = 0
	}
	if normalized.Players > len(PlayerColors) {
		normalized.Players = len(PlayerColors)
	}
	if normalized.WorkersPerPlayer < 0 {
		normalized.WorkersPerPlayer = 0
	}
	if normalized.AgentSpeed <= 0 {
		normalized.AgentSpeed = DefaultAgentSpeed
	}
	if normalized.PushSpeed <= 0 {
		normalized.PushSpeed = DefaultPushSpeed
	}
	normalized.Heuristic = strings.ToLower(strings.TrimSpace(normalized.Heuristic))
	if normalized.Heuristic != HeuristicChebyshev {
		normalized.Heuristic = HeuristicManhattan
	}
	if normalized.MaxExpansions < 0 {
		normalized.MaxExpansions = 0
	}
	return normalized
}

// Normalized clamps out-of-range values and fills in defaults.
func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

// DefaultConfig returns the tuning used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		Players:          DefaultPlayers,
		WorkersPerPlayer: WorkersPerPlayer,
		AgentSpeed:       DefaultAgentSpeed,
		PushSpeed:        DefaultPushSpeed,
		Heuristic:        HeuristicManhattan,
		MaxExpansions:    DefaultMaxExpansions,
	}
}

// PathFinder builds the world.PathFinder described by cfg.
func (cfg Config) PathFinder() world.PathFinder {
	cfg = cfg.normalized()
	finder := world.PathFinder{MaxExpansions: cfg.MaxExpansions}
	if cfg.Heuristic == HeuristicChebyshev {
		finder.Heuristic = world.ChebyshevDistance
	}
	return finder
}

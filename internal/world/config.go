package world

import "strings"

const (
	DefaultSeed          = "kingdom"
	DefaultWidth         = 48
	DefaultHeight        = 32
	DefaultWallBlobs     = 12
	DefaultWallBlobSize  = 18
	DefaultSpawnClearing = 4
	DefaultOrePatches    = 6
	DefaultOrePatchSize  = 2
	DefaultOreAmount     = 50
)

// Config describes how a session's map is produced. When Layout is set it
// is parsed verbatim and the generator settings are ignored.
type Config struct {
	Seed          string `json:"seed" yaml:"seed"`
	Layout        string `json:"layout,omitempty" yaml:"layout,omitempty"`
	Width         int    `json:"width" yaml:"width" jsonschema:"minimum=3"`
	Height        int    `json:"height" yaml:"height" jsonschema:"minimum=3"`
	WallBlobs     int    `json:"wallBlobs" yaml:"wallBlobs" jsonschema:"minimum=0"`
	WallBlobSize  int    `json:"wallBlobSize" yaml:"wallBlobSize" jsonschema:"minimum=0"`
	SpawnClearing int    `json:"spawnClearing" yaml:"spawnClearing" jsonschema:"minimum=0"`
	OrePatches    int    `json:"orePatches" yaml:"orePatches" jsonschema:"minimum=0"`
	OrePatchSize  int    `json:"orePatchSize" yaml:"orePatchSize" jsonschema:"minimum=1"`
	OreAmount     int    `json:"oreAmount" yaml:"oreAmount" jsonschema:"minimum=1"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.Width < 3 {
		normalized.Width = DefaultWidth
	}
	if normalized.Height < 3 {
		normalized.Height = DefaultHeight
	}
	if normalized.WallBlobs < 0 {
		normalized.WallBlobs = 0
	}
	if normalized.WallBlobSize < 0 {
		normalized.WallBlobSize = 0
	}
	if normalized.SpawnClearing < 0 {
		normalized.SpawnClearing = 0
	}
	if normalized.OrePatches < 0 {
		normalized.OrePatches = 0
	}
	if normalized.OrePatchSize <= 0 {
		normalized.OrePatchSize = DefaultOrePatchSize
	}
	if normalized.OreAmount <= 0 {
		normalized.OreAmount = DefaultOreAmount
	}
	return normalized
}

func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

func DefaultConfig() Config {
	return Config{
		Seed:          DefaultSeed,
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		WallBlobs:     DefaultWallBlobs,
		WallBlobSize:  DefaultWallBlobSize,
		SpawnClearing: DefaultSpawnClearing,
		OrePatches:    DefaultOrePatches,
		OrePatchSize:  DefaultOrePatchSize,
		OreAmount:     DefaultOreAmount,
	}
}

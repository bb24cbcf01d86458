package sim

import (
	"errors"
	"fmt"
	"time"

	"automated-kingdom/server/internal/world"
	"automated-kingdom/server/logging"
	"automated-kingdom/server/logging/simulation"
)

// ErrInvalidCommand is returned when a command is malformed or names an
// unknown owner or building kind.
var ErrInvalidCommand = errors.New("sim: invalid command")

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandSpawn     CommandType = "spawn"
	CommandSetPath   CommandType = "path"
	CommandPathTo    CommandType = "pathTo"
	CommandClearPath CommandType = "clearPath"
	CommandMine      CommandType = "mine"
	CommandBuild     CommandType = "build"
	CommandRemove    CommandType = "remove"
)

// SpawnCommand places a new agent for a player at a world position.
type SpawnCommand struct {
	Owner PlayerColor `json:"owner"`
	X     float64     `json:"x"`
	Y     float64     `json:"y"`
}

// PathCommand identifies a navigation target cell for A* pathfinding.
type PathCommand struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PathToCommand targets a world position; the goal is the cell under it.
type PathToCommand struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MineCommand assigns an agent to an ore patch.
type MineCommand struct {
	Ore OreID `json:"ore"`
}

// BuildCommand places a building for a player.
type BuildCommand struct {
	Owner PlayerColor  `json:"owner"`
	Kind  BuildingKind `json:"kind"`
	X     int          `json:"x"`
	Y     int          `json:"y"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64         `json:"originTick"`
	AgentID    AgentID        `json:"agentId,omitempty"`
	Type       CommandType    `json:"type"`
	IssuedAt   time.Time      `json:"issuedAt"`
	Spawn      *SpawnCommand  `json:"spawn,omitempty"`
	Path       *PathCommand   `json:"path,omitempty"`
	PathTo     *PathToCommand `json:"pathTo,omitempty"`
	Mine       *MineCommand   `json:"mine,omitempty"`
	Build      *BuildCommand  `json:"build,omitempty"`
}

// Validate checks that the command carries the payload its type needs and
// that named owners and building kinds exist. Whether the owner is seated
// in a given world is only known when the command is applied.
func (c Command) Validate() error {
	switch c.Type {
	case CommandSpawn:
		if c.Spawn == nil {
			return fmt.Errorf("%w: spawn payload missing", ErrInvalidCommand)
		}
		if _, err := ParsePlayerColor(string(c.Spawn.Owner)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
	case CommandSetPath:
		if c.Path == nil {
			return fmt.Errorf("%w: path payload missing", ErrInvalidCommand)
		}
	case CommandPathTo:
		if c.PathTo == nil {
			return fmt.Errorf("%w: pathTo payload missing", ErrInvalidCommand)
		}
		if !(world.Vec2{X: c.PathTo.X, Y: c.PathTo.Y}).Finite() {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, world.ErrInvalidPosition)
		}
	case CommandMine:
		if c.Mine == nil {
			return fmt.Errorf("%w: mine payload missing", ErrInvalidCommand)
		}
	case CommandBuild:
		if c.Build == nil {
			return fmt.Errorf("%w: build payload missing", ErrInvalidCommand)
		}
		if _, err := ParsePlayerColor(string(c.Build.Owner)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		if _, err := LookupBuilding(c.Build.Kind); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
	case CommandClearPath, CommandRemove:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, c.Type)
	}
	switch c.Type {
	case CommandSetPath, CommandPathTo, CommandClearPath, CommandMine, CommandRemove:
		if c.AgentID == 0 {
			return fmt.Errorf("%w: %s needs an agent", ErrInvalidCommand, c.Type)
		}
	}
	return nil
}

// Apply executes commands in order. A failing command does not stop the
// rest; every failure is reported in the joined error.
func (w *World) Apply(commands []Command) error {
	var errs []error
	for _, cmd := range commands {
		if err := w.apply(cmd); err != nil {
			actor := logging.EntityRef{Kind: logging.EntityKindAgent}
			if cmd.AgentID != 0 {
				actor.ID = cmd.AgentID.String()
			}
			simulation.CommandRejected(w.ctx, w.deps.Publisher, w.tick, actor, simulation.CommandRejectedPayload{
				Command: string(cmd.Type),
				Reason:  err.Error(),
			}, nil)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *World) apply(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	switch cmd.Type {
	case CommandSpawn:
		_, err := w.Spawn(cmd.Spawn.Owner, world.Vec2{X: cmd.Spawn.X, Y: cmd.Spawn.Y})
		return err
	case CommandSetPath:
		_, err := w.RequestPath(cmd.AgentID, world.GridCell{X: cmd.Path.X, Y: cmd.Path.Y})
		return err
	case CommandPathTo:
		_, err := w.RequestPathTo(cmd.AgentID, world.Vec2{X: cmd.PathTo.X, Y: cmd.PathTo.Y})
		return err
	case CommandClearPath:
		return w.ClearPath(cmd.AgentID)
	case CommandMine:
		return w.AssignOre(cmd.AgentID, cmd.Mine.Ore)
	case CommandBuild:
		_, err := w.PlaceBuilding(cmd.Build.Owner, cmd.Build.Kind, world.GridCell{X: cmd.Build.X, Y: cmd.Build.Y})
		return err
	case CommandRemove:
		return w.Remove(cmd.AgentID, "command")
	}
	return nil
}

package sim

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"automated-kingdom/server/internal/world"
	"automated-kingdom/server/logging"
)

const (
	// DefaultAgentSpeed is the walking speed of a worker in world units per second.
	DefaultAgentSpeed = 200.0
	// AgentSize is the side length of an agent's square footprint.
	AgentSize = world.TileSize
)

var (
	// ErrUnknownAgent is returned when an operation names an agent that does not exist.
	ErrUnknownAgent = errors.New("sim: unknown agent")
	// ErrInvalidSpeed is returned when an agent is created with a non-positive speed.
	ErrInvalidSpeed = world.ErrInvalidSpeed
)

// AgentID identifies an agent for its whole lifetime. IDs are never reused
// within a world.
type AgentID uint32

func (id AgentID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// IDAllocator hands out monotonically increasing agent ids starting at 1.
type IDAllocator struct {
	next AgentID
}

// Next returns a fresh id.
func (a *IDAllocator) Next() AgentID {
	a.next++
	return a.next
}

// Peek reports the last id handed out.
func (a *IDAllocator) Peek() AgentID {
	return a.next
}

// Reset restores the allocator so the next id follows last.
func (a *IDAllocator) Reset(last AgentID) {
	a.next = last
}

// AgentState is derived from an agent's path and ore assignment.
type AgentState string

const (
	AgentIdle      AgentState = "idle"
	AgentFollowing AgentState = "following"
	AgentMining    AgentState = "mining"
)

// Agent is a worker moving over the tile map. Position is the top-left of a
// square footprint of side AgentSize.
type Agent struct {
	ID         AgentID
	Owner      PlayerColor
	Position   world.Vec2
	Speed      float64
	Path       []world.Vec2
	Facing     FacingDirection
	YieldingTo *AgentID
	Ore        *OreID
	Mining     bool

	velocity    world.Vec2
	snapTarget  world.Vec2
	pendingSnap bool
}

// NewAgent validates the spawn parameters.
func NewAgent(id AgentID, owner PlayerColor, position world.Vec2, speed float64) (*Agent, error) {
	if !position.Finite() {
		return nil, fmt.Errorf("agent %d: %w", id, world.ErrInvalidPosition)
	}
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return nil, fmt.Errorf("agent %d: %w", id, ErrInvalidSpeed)
	}
	return &Agent{
		ID:       id,
		Owner:    owner,
		Position: position,
		Speed:    speed,
		Facing:   FacingUp,
	}, nil
}

// State reports the agent's motion state.
func (a *Agent) State() AgentState {
	if a == nil {
		return AgentIdle
	}
	if a.Mining {
		return AgentMining
	}
	if len(a.Path) > 0 {
		return AgentFollowing
	}
	return AgentIdle
}

// SetPath replaces any previous path wholesale. An empty path leaves the
// agent idle.
func (a *Agent) SetPath(path []world.Vec2) {
	if a == nil {
		return
	}
	a.Path = world.ClonePath(path)
}

// ClearPath drops the current path.
func (a *Agent) ClearPath() {
	if a == nil {
		return
	}
	a.Path = nil
}

// Footprint returns the agent's collision rectangle at its current position.
func (a *Agent) Footprint() world.Rect {
	return world.RectAt(a.Position, AgentSize, AgentSize)
}

// Velocity returns the displacement resolved for the current tick.
func (a *Agent) Velocity() world.Vec2 {
	return a.velocity
}

// Cell returns the grid cell containing the agent's top-left corner.
func (a *Agent) Cell() world.GridCell {
	return world.WorldToCell(a.Position)
}

// IsYieldingTo reports whether the agent yielded to other this tick.
func (a *Agent) IsYieldingTo(other AgentID) bool {
	return a != nil && a.YieldingTo != nil && *a.YieldingTo == other
}

func (a *Agent) entityRef() logging.EntityRef {
	return logging.EntityRef{ID: a.ID.String(), Kind: logging.EntityKindAgent}
}

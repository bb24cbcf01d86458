package sim

import (
	"fmt"

	"automated-kingdom/server/internal/world"
)

// AgentSnapshot is the serialisable state of an agent.
type AgentSnapshot struct {
	ID         AgentID         `json:"id"`
	Owner      PlayerColor     `json:"owner"`
	Position   world.Vec2      `json:"position"`
	Speed      float64         `json:"speed"`
	Path       []world.Vec2    `json:"path,omitempty"`
	Facing     FacingDirection `json:"facing"`
	YieldingTo *AgentID        `json:"yieldingTo,omitempty"`
	Ore        *OreID          `json:"ore,omitempty"`
	State      AgentState      `json:"state"`
}

// PlayerSnapshot is the serialisable state of a player.
type PlayerSnapshot struct {
	Color     PlayerColor     `json:"color"`
	Stockpile map[OreKind]int `json:"stockpile"`
}

// OreSnapshot is the serialisable state of an ore patch.
type OreSnapshot struct {
	ID        OreID               `json:"id"`
	Kind      OreKind             `json:"kind"`
	Origin    world.GridCell      `json:"origin"`
	Width     int                 `json:"width"`
	Height    int                 `json:"height"`
	Max       int                 `json:"max"`
	Remaining int                 `json:"remaining"`
	LastMined map[AgentID]float64 `json:"lastMined,omitempty"`
}

// BuildingSnapshot is the serialisable state of a building.
type BuildingSnapshot struct {
	ID     BuildingID     `json:"id"`
	Kind   BuildingKind   `json:"kind"`
	Owner  PlayerColor    `json:"owner"`
	Origin world.GridCell `json:"origin"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
}

// Snapshot is a complete copy of a world between ticks.
type Snapshot struct {
	Tick         uint64             `json:"tick"`
	Elapsed      float64            `json:"elapsed"`
	Seed         string             `json:"seed"`
	Width        int                `json:"width"`
	Height       int                `json:"height"`
	Layout       string             `json:"layout"`
	Blocked      []world.GridCell   `json:"blocked,omitempty"`
	Players      []PlayerSnapshot   `json:"players"`
	Agents       []AgentSnapshot    `json:"agents"`
	Ores         []OreSnapshot      `json:"ores"`
	Buildings    []BuildingSnapshot `json:"buildings"`
	LastAgentID  AgentID            `json:"lastAgentId"`
	LastOre      OreID              `json:"lastOre"`
	LastBuilding BuildingID         `json:"lastBuilding"`
}

// Snapshot captures the world. Agents, ores and buildings are ordered by id
// and players by seating order.
func (w *World) Snapshot() Snapshot {
	if w == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		Tick:         w.tick,
		Elapsed:      w.elapsed,
		Seed:         w.seed,
		Width:        w.tiles.Width(),
		Height:       w.tiles.Height(),
		Layout:       w.tiles.Layout(),
		Blocked:      w.tiles.BlockedCells(),
		LastAgentID:  w.ids.Peek(),
		LastOre:      w.nextOre,
		LastBuilding: w.nextBuilding,
	}

	for _, color := range PlayerColors {
		player, ok := w.players[color]
		if !ok {
			continue
		}
		clone := clonePlayer(player)
		snap.Players = append(snap.Players, PlayerSnapshot{Color: clone.Color, Stockpile: clone.Stockpile})
	}

	for _, agent := range w.sortedAgents() {
		clone := cloneAgent(agent)
		snap.Agents = append(snap.Agents, AgentSnapshot{
			ID:         clone.ID,
			Owner:      clone.Owner,
			Position:   clone.Position,
			Speed:      clone.Speed,
			Path:       clone.Path,
			Facing:     clone.Facing,
			YieldingTo: clone.YieldingTo,
			Ore:        clone.Ore,
			State:      clone.State(),
		})
	}

	for _, id := range w.OreIDs() {
		patch := cloneOrePatch(w.ores[id])
		if len(patch.lastMined) == 0 {
			patch.lastMined = nil
		}
		snap.Ores = append(snap.Ores, OreSnapshot{
			ID:        patch.ID,
			Kind:      patch.Kind,
			Origin:    patch.Origin,
			Width:     patch.Width,
			Height:    patch.Height,
			Max:       patch.Max,
			Remaining: patch.Remaining,
			LastMined: patch.lastMined,
		})
	}

	for _, building := range w.Buildings() {
		snap.Buildings = append(snap.Buildings, BuildingSnapshot{
			ID:     building.ID,
			Kind:   building.Kind,
			Owner:  building.Owner,
			Origin: building.Origin,
			Width:  building.Width,
			Height: building.Height,
		})
	}
	return snap
}

// Restore rebuilds a world from a snapshot. Stepping the restored world
// produces the same states as stepping the original.
func Restore(snap Snapshot, cfg Config, deps Deps) (*World, error) {
	tiles, err := world.ParseLayout(snap.Layout)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	if tiles.Width() != snap.Width || tiles.Height() != snap.Height {
		return nil, fmt.Errorf("restore: layout is %dx%d, snapshot says %dx%d: %w",
			tiles.Width(), tiles.Height(), snap.Width, snap.Height, world.ErrInvalidDimensions)
	}
	if err := tiles.MarkBlocked(snap.Blocked...); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}

	w, err := NewWorld(tiles, snap.Seed, cfg, deps)
	if err != nil {
		return nil, err
	}
	w.tick = snap.Tick
	w.elapsed = snap.Elapsed
	w.ids.Reset(snap.LastAgentID)
	w.nextOre = snap.LastOre
	w.nextBuilding = snap.LastBuilding

	for _, p := range snap.Players {
		player := w.AddPlayer(p.Color)
		for kind, amount := range p.Stockpile {
			player.Stockpile[kind] = amount
		}
	}

	for _, o := range snap.Ores {
		patch, err := NewOrePatch(o.ID, o.Kind, o.Origin, o.Width, o.Height, o.Max)
		if err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
		patch.Remaining = o.Remaining
		for id, at := range o.LastMined {
			patch.lastMined[id] = at
		}
		w.ores[patch.ID] = patch
	}

	for _, b := range snap.Buildings {
		building := Building{ID: b.ID, Kind: b.Kind, Owner: b.Owner, Origin: b.Origin, Width: b.Width, Height: b.Height}
		w.buildings[building.ID] = &building
	}

	for _, a := range snap.Agents {
		if a.ID > snap.LastAgentID {
			return nil, fmt.Errorf("restore: agent %d is past the id allocator (%d)", a.ID, snap.LastAgentID)
		}
		agent, err := NewAgent(a.ID, a.Owner, a.Position, a.Speed)
		if err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
		agent.Path = world.ClonePath(a.Path)
		agent.Facing = a.Facing
		if a.YieldingTo != nil {
			yield := *a.YieldingTo
			agent.YieldingTo = &yield
		}
		if a.Ore != nil {
			ore := *a.Ore
			agent.Ore = &ore
		}
		agent.Mining = a.State == AgentMining
		w.agents[agent.ID] = agent
	}
	w.storeAgentCount()
	return w, nil
}

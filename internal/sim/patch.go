package sim

import (
	"automated-kingdom/server/internal/world"
)

// PatchKind identifies the type of diff entry.
type PatchKind string

const (
	PatchAgentAdded   PatchKind = "agent_added"
	PatchAgentPos     PatchKind = "agent_pos"
	PatchAgentFacing  PatchKind = "agent_facing"
	PatchAgentState   PatchKind = "agent_state"
	PatchAgentRemoved PatchKind = "agent_removed"

	PatchOreRemaining   PatchKind = "ore_remaining"
	PatchStockpile      PatchKind = "stockpile"
	PatchBuildingPlaced PatchKind = "building_placed"
)

// Patch represents a diff entry that can be applied to the client state.
type Patch struct {
	Kind     PatchKind `json:"kind"`
	EntityID string    `json:"entityId"`
	Payload  any       `json:"payload,omitempty"`
}

// PositionPayload captures the coordinates for an agent position patch.
type PositionPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FacingPayload captures the facing for an agent patch.
type FacingPayload struct {
	Facing FacingDirection `json:"facing"`
}

// StatePayload captures an agent's motion state and yield target.
type StatePayload struct {
	State      AgentState `json:"state"`
	YieldingTo *AgentID   `json:"yieldingTo,omitempty"`
}

// RemainingPayload captures what is left of an ore patch.
type RemainingPayload struct {
	Remaining int `json:"remaining"`
}

// StockpilePayload captures a player's full stockpile.
type StockpilePayload struct {
	Stockpile map[OreKind]int `json:"stockpile"`
}

// Diff lists the patches that turn prev into next. Agents are visited in id
// order, so equal inputs always give equal output.
func Diff(prev, next Snapshot) []Patch {
	var patches []Patch

	before := make(map[AgentID]AgentSnapshot, len(prev.Agents))
	for _, agent := range prev.Agents {
		before[agent.ID] = agent
	}
	seen := make(map[AgentID]struct{}, len(next.Agents))
	for _, agent := range next.Agents {
		seen[agent.ID] = struct{}{}
		id := agent.ID.String()
		old, ok := before[agent.ID]
		if !ok {
			patches = append(patches, Patch{Kind: PatchAgentAdded, EntityID: id, Payload: agent})
			continue
		}
		if old.Position != agent.Position {
			patches = append(patches, Patch{Kind: PatchAgentPos, EntityID: id, Payload: PositionPayload{X: agent.Position.X, Y: agent.Position.Y}})
		}
		if old.Facing != agent.Facing {
			patches = append(patches, Patch{Kind: PatchAgentFacing, EntityID: id, Payload: FacingPayload{Facing: agent.Facing}})
		}
		if old.State != agent.State || !sameAgentRef(old.YieldingTo, agent.YieldingTo) {
			patches = append(patches, Patch{Kind: PatchAgentState, EntityID: id, Payload: StatePayload{State: agent.State, YieldingTo: agent.YieldingTo}})
		}
	}
	for _, agent := range prev.Agents {
		if _, ok := seen[agent.ID]; !ok {
			patches = append(patches, Patch{Kind: PatchAgentRemoved, EntityID: agent.ID.String()})
		}
	}

	oldOres := make(map[OreID]int, len(prev.Ores))
	for _, ore := range prev.Ores {
		oldOres[ore.ID] = ore.Remaining
	}
	for _, ore := range next.Ores {
		if remaining, ok := oldOres[ore.ID]; !ok || remaining != ore.Remaining {
			patches = append(patches, Patch{Kind: PatchOreRemaining, EntityID: ore.ID.String(), Payload: RemainingPayload{Remaining: ore.Remaining}})
		}
	}

	oldStock := make(map[PlayerColor]map[OreKind]int, len(prev.Players))
	for _, player := range prev.Players {
		oldStock[player.Color] = player.Stockpile
	}
	for _, player := range next.Players {
		if !sameStockpile(oldStock[player.Color], player.Stockpile) {
			patches = append(patches, Patch{Kind: PatchStockpile, EntityID: string(player.Color), Payload: StockpilePayload{Stockpile: player.Stockpile}})
		}
	}

	known := make(map[BuildingID]struct{}, len(prev.Buildings))
	for _, building := range prev.Buildings {
		known[building.ID] = struct{}{}
	}
	for _, building := range next.Buildings {
		if _, ok := known[building.ID]; !ok {
			patches = append(patches, Patch{Kind: PatchBuildingPlaced, EntityID: building.ID.String(), Payload: building})
		}
	}
	return patches
}

func sameAgentRef(a, b *AgentID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameStockpile(a, b map[OreKind]int) bool {
	if len(a) != len(b) {
		return false
	}
	for kind, amount := range a {
		if other, ok := b[kind]; !ok || other != amount {
			return false
		}
	}
	return true
}

// AgentView is the client-side picture of an agent that patches update.
type AgentView struct {
	ID         AgentID         `json:"id"`
	Owner      PlayerColor     `json:"owner"`
	Position   world.Vec2      `json:"position"`
	Facing     FacingDirection `json:"facing"`
	State      AgentState      `json:"state"`
	YieldingTo *AgentID        `json:"yieldingTo,omitempty"`
}

// ViewOf projects a snapshot agent onto its client view.
func ViewOf(agent AgentSnapshot) AgentView {
	return AgentView{
		ID:         agent.ID,
		Owner:      agent.Owner,
		Position:   agent.Position,
		Facing:     agent.Facing,
		State:      agent.State,
		YieldingTo: agent.YieldingTo,
	}
}

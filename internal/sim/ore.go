package sim

import (
	"errors"
	"fmt"
	"strconv"

	"automated-kingdom/server/internal/world"
	"automated-kingdom/server/logging"
)

// ErrUnknownOre is returned when a command names an ore patch that does not exist.
var ErrUnknownOre = errors.New("sim: unknown ore patch")

// MiningReach is how far, in world units, an agent's footprint is grown in
// each dimension when testing whether it can reach a patch.
const MiningReach = 20.0

// OreKind is a minable resource.
type OreKind string

const (
	OreGold OreKind = "gold"
)

// Cooldown is the simulated seconds an agent waits between extractions.
func (k OreKind) Cooldown() float64 {
	switch k {
	case OreGold:
		return 0.5
	default:
		return 1
	}
}

// OreID identifies a patch within a world.
type OreID uint32

func (id OreID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// OrePatch is a rectangle of blocked cells holding a finite amount of ore.
type OrePatch struct {
	ID        OreID
	Kind      OreKind
	Origin    world.GridCell
	Width     int
	Height    int
	Max       int
	Remaining int

	lastMined map[AgentID]float64
}

// NewOrePatch builds a full patch.
func NewOrePatch(id OreID, kind OreKind, origin world.GridCell, width, height, amount int) (*OrePatch, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ore patch %d: %w", id, world.ErrInvalidDimensions)
	}
	if amount < 0 {
		amount = 0
	}
	return &OrePatch{
		ID:        id,
		Kind:      kind,
		Origin:    origin,
		Width:     width,
		Height:    height,
		Max:       amount,
		Remaining: amount,
		lastMined: make(map[AgentID]float64),
	}, nil
}

// Rect returns the patch's world-space rectangle.
func (p *OrePatch) Rect() world.Rect {
	return world.CellRect(p.Origin, p.Width, p.Height)
}

// Cells lists the blocked cells the patch occupies.
func (p *OrePatch) Cells() []world.GridCell {
	return world.SquareCells(p.Origin, p.Width, p.Height)
}

// Depleted reports whether nothing is left to mine.
func (p *OrePatch) Depleted() bool {
	return p.Remaining <= 0
}

// Mine extracts one unit for agent at simulation time now, honouring the
// per-agent cooldown. It returns the amount extracted.
func (p *OrePatch) Mine(agent AgentID, now float64) int {
	if last, ok := p.lastMined[agent]; ok && now-last < p.Kind.Cooldown() {
		return 0
	}
	if p.Remaining <= 0 {
		return 0
	}
	p.Remaining--
	if p.lastMined == nil {
		p.lastMined = make(map[AgentID]float64)
	}
	p.lastMined[agent] = now
	return 1
}

// CooldownLeft reports how many simulated seconds agent must still wait.
func (p *OrePatch) CooldownLeft(agent AgentID, now float64) float64 {
	last, ok := p.lastMined[agent]
	if !ok {
		return 0
	}
	left := p.Kind.Cooldown() - (now - last)
	if left < 0 {
		return 0
	}
	return left
}

// InReach reports whether the agent's footprint, grown by MiningReach, touches
// the patch.
func (p *OrePatch) InReach(agent *Agent) bool {
	return agent.Footprint().Expand(MiningReach, MiningReach).Overlaps(p.Rect())
}

// ApproachCell picks the walkable cell of the ring around the patch that is
// closest to from. Ties keep the first cell in row-major order.
func (p *OrePatch) ApproachCell(m *world.TileMap, from world.GridCell) (world.GridCell, bool) {
	best := world.GridCell{}
	bestDist := -1
	for y := p.Origin.Y - 1; y <= p.Origin.Y+p.Height; y++ {
		for x := p.Origin.X - 1; x <= p.Origin.X+p.Width; x++ {
			cell := world.GridCell{X: x, Y: y}
			if !m.Walkable(cell) {
				continue
			}
			dx := cell.X - from.X
			dy := cell.Y - from.Y
			dist := dx*dx + dy*dy
			if bestDist < 0 || dist < bestDist {
				best = cell
				bestDist = dist
			}
		}
	}
	return best, bestDist >= 0
}

func (p *OrePatch) entityRef() logging.EntityRef {
	return logging.EntityRef{ID: p.ID.String(), Kind: logging.EntityKindOre}
}

package sim

import (
	"math"

	"automated-kingdom/server/internal/world"
)

// DefaultPushSpeed is how fast an agent drifts away from one it overlaps, in
// world units per second.
const DefaultPushSpeed = 50.0

// collisionResult records the yield decided for one agent.
type collisionResult struct {
	agent      *Agent
	yieldingTo *Agent
}

// resolveCollisions adjusts the desired velocities of agents (sorted by id)
// against every other agent's tentative footprint. The first overlapping
// agent wins: the mover yields to it, drifts away at pushSpeed and then has
// each axis of its motion clamped against collidable cells.
func resolveCollisions(m *world.TileMap, agents []*Agent, dt, pushSpeed float64) []collisionResult {
	tentative := make([]world.Rect, len(agents))
	for i, agent := range agents {
		tentative[i] = world.RectAt(agent.Position.Add(agent.velocity), AgentSize, AgentSize)
	}

	var results []collisionResult
	for i, agent := range agents {
		for j, other := range agents {
			if i == j || other.IsYieldingTo(agent.ID) {
				continue
			}
			if !tentative[i].Overlaps(tentative[j]) {
				continue
			}

			yield := other.ID
			agent.YieldingTo = &yield
			agent.velocity = agent.velocity.Add(pushAway(tentative[i].TopLeft(), tentative[j].TopLeft(), pushSpeed*dt))
			agent.pendingSnap = false
			clampToWalls(m, agent)
			results = append(results, collisionResult{agent: agent, yieldingTo: other})
			break
		}
	}
	return results
}

// pushAway returns a displacement of length distance pointing from other to
// self. Coincident points push along +X.
func pushAway(self, other world.Vec2, distance float64) world.Vec2 {
	offset := self.Sub(other)
	length := offset.Len()
	if length == 0 {
		return world.Vec2{X: distance}
	}
	return offset.Scale(distance / length)
}

// clampToWalls limits each axis of the agent's velocity independently so the
// horizontal-only and vertical-only moves stop flush against collidable
// cells. The near edge is picked by comparing the cell centre with the
// displaced footprint's centre. Only cells under the displaced footprints
// are visited, in row-major order, which matches a full map scan.
func clampToWalls(m *world.TileMap, agent *Agent) {
	current := agent.Footprint()
	hRect := current.Translate(world.Vec2{X: agent.velocity.X})
	vRect := current.Translate(world.Vec2{Y: agent.velocity.Y})

	minCell, maxCell := cellSpan(m, hRect, vRect)
	for y := minCell.Y; y <= maxCell.Y; y++ {
		for x := minCell.X; x <= maxCell.X; x++ {
			cell := world.GridCell{X: x, Y: y}
			if !m.Collidable(cell) {
				continue
			}
			wall := world.CellRect(cell, 1, 1)

			if hRect.Overlaps(wall) {
				if wall.Center().X > hRect.Center().X {
					agent.velocity.X = wall.Left() - current.Right()
				} else {
					agent.velocity.X = wall.Right() - current.Left()
				}
			}
			if vRect.Overlaps(wall) {
				if wall.Center().Y > vRect.Center().Y {
					agent.velocity.Y = wall.Top() - current.Bottom()
				} else {
					agent.velocity.Y = wall.Bottom() - current.Top()
				}
			}
		}
	}
}

// cellSpan returns the in-bounds cell range touched by either rectangle.
func cellSpan(m *world.TileMap, a, b world.Rect) (world.GridCell, world.GridCell) {
	left := math.Min(a.Left(), b.Left())
	top := math.Min(a.Top(), b.Top())
	right := math.Max(a.Right(), b.Right())
	bottom := math.Max(a.Bottom(), b.Bottom())

	minCell := world.WorldToCell(world.Vec2{X: left, Y: top})
	maxCell := world.WorldToCell(world.Vec2{X: right, Y: bottom})
	if minCell.X < 0 {
		minCell.X = 0
	}
	if minCell.Y < 0 {
		minCell.Y = 0
	}
	if maxCell.X > m.Width()-1 {
		maxCell.X = m.Width() - 1
	}
	if maxCell.Y > m.Height()-1 {
		maxCell.Y = m.Height() - 1
	}
	return minCell, maxCell
}

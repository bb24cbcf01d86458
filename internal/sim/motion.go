package sim

import "automated-kingdom/server/internal/world"

// stepMotion computes the agent's desired displacement for one tick from its
// path. When the front waypoint is within reach it is popped and the commit
// snaps exactly onto it. An exhausted path becomes nil.
func stepMotion(agent *Agent, dt float64) {
	agent.velocity = world.Vec2{}
	agent.pendingSnap = false
	if agent.Path == nil {
		return
	}
	if len(agent.Path) == 0 {
		agent.Path = nil
		return
	}

	target := agent.Path[0]
	offset := target.Sub(agent.Position)
	distance := offset.Len()
	step := agent.Speed * dt

	if distance > step {
		agent.velocity = offset.Scale(step / distance)
		return
	}

	agent.velocity = offset
	agent.snapTarget = target
	agent.pendingSnap = true
	agent.Path = agent.Path[1:]
	if len(agent.Path) == 0 {
		agent.Path = nil
	}
}

// commitMotion applies the resolved velocity once.
func commitMotion(agent *Agent) {
	if agent.pendingSnap {
		agent.Position = agent.snapTarget
		agent.pendingSnap = false
		return
	}
	agent.Position = agent.Position.Add(agent.velocity)
}

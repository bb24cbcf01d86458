package patches

import (
	"fmt"
	"strings"

	"automated-kingdom/server/internal/sim"
)

// ApplyAgents replays agent patches onto a client view keyed by agent id.
// Patches for ores, stockpiles and buildings are skipped. The base map is not
// modified.
func ApplyAgents(base map[string]sim.AgentView, patches []sim.Patch) (map[string]sim.AgentView, error) {
	next := make(map[string]sim.AgentView, len(base))
	for id, view := range base {
		next[id] = cloneView(view)
	}

	for _, patch := range patches {
		if !strings.HasPrefix(string(patch.Kind), "agent_") {
			continue
		}
		if patch.EntityID == "" {
			return nil, fmt.Errorf("apply patches: missing entity id for kind %q", patch.Kind)
		}

		switch patch.Kind {
		case sim.PatchAgentAdded:
			payload, ok := payloadAs[sim.AgentSnapshot](patch.Payload)
			if !ok {
				return nil, fmt.Errorf("apply patches: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			next[patch.EntityID] = sim.ViewOf(payload)
			continue
		case sim.PatchAgentRemoved:
			delete(next, patch.EntityID)
			continue
		}

		view, ok := next[patch.EntityID]
		if !ok {
			return nil, fmt.Errorf("apply patches: unknown entity %q for kind %q", patch.EntityID, patch.Kind)
		}

		switch patch.Kind {
		case sim.PatchAgentPos:
			payload, ok := payloadAs[sim.PositionPayload](patch.Payload)
			if !ok {
				return nil, fmt.Errorf("apply patches: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			view.Position.X = payload.X
			view.Position.Y = payload.Y
		case sim.PatchAgentFacing:
			payload, ok := payloadAs[sim.FacingPayload](patch.Payload)
			if !ok {
				return nil, fmt.Errorf("apply patches: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			view.Facing = payload.Facing
		case sim.PatchAgentState:
			payload, ok := payloadAs[sim.StatePayload](patch.Payload)
			if !ok {
				return nil, fmt.Errorf("apply patches: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			view.State = payload.State
			view.YieldingTo = cloneRef(payload.YieldingTo)
		default:
			return nil, fmt.Errorf("apply patches: unsupported patch kind %q", patch.Kind)
		}

		next[patch.EntityID] = view
	}

	return next, nil
}

// Views builds the client view of every agent in a snapshot.
func Views(snapshot sim.Snapshot) map[string]sim.AgentView {
	views := make(map[string]sim.AgentView, len(snapshot.Agents))
	for _, agent := range snapshot.Agents {
		views[agent.ID.String()] = sim.ViewOf(agent)
	}
	return views
}

func payloadAs[T any](value any) (T, bool) {
	switch v := value.(type) {
	case T:
		return v, true
	case *T:
		if v == nil {
			var zero T
			return zero, false
		}
		return *v, true
	default:
		var zero T
		return zero, false
	}
}

func cloneView(view sim.AgentView) sim.AgentView {
	view.YieldingTo = cloneRef(view.YieldingTo)
	return view
}

func cloneRef(ref *sim.AgentID) *sim.AgentID {
	if ref == nil {
		return nil
	}
	id := *ref
	return &id
}

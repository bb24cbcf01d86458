package navigation

import (
	"context"

	"automated-kingdom/server/logging"
)

const (
	// EventPathResolved is emitted when a path request produced a route.
	EventPathResolved logging.EventType = "navigation.path_resolved"
	// EventPathNotFound is emitted when no route exists or the search budget ran out.
	EventPathNotFound logging.EventType = "navigation.path_not_found"
	// EventAgentYielded is emitted when an agent is nudged away from another.
	EventAgentYielded logging.EventType = "navigation.agent_yielded"
)

// Cell identifies a grid cell in event payloads.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PathResolvedPayload describes a successful search.
type PathResolvedPayload struct {
	Start            Cell    `json:"start"`
	Goal             Cell    `json:"goal"`
	Steps            int     `json:"steps"`
	Expanded         int     `json:"expanded"`
	EstimatedSeconds float64 `json:"estimatedSeconds"`
}

// PathNotFoundPayload describes a failed search.
type PathNotFoundPayload struct {
	Start     Cell `json:"start"`
	Goal      Cell `json:"goal"`
	Expanded  int  `json:"expanded"`
	Truncated bool `json:"truncated"`
}

// AgentYieldedPayload names the agent that was yielded to.
type AgentYieldedPayload struct {
	YieldingTo uint32 `json:"yieldingTo"`
}

// PathResolved publishes a path resolution event.
func PathResolved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PathResolvedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPathResolved,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}

// PathNotFound publishes a failed path request.
func PathNotFound(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PathNotFoundPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if payload.Truncated {
		severity = logging.SeverityWarn
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPathNotFound,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}

// AgentYielded publishes a collision yield.
func AgentYielded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload AgentYieldedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAgentYielded,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNavigation,
		Payload:  payload,
	})
}

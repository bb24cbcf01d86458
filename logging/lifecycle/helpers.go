package lifecycle

import (
	"context"

	"automated-kingdom/server/logging"
)

const (
	// EventSessionCreated is emitted when a session starts ticking.
	EventSessionCreated logging.EventType = "lifecycle.session_created"
	// EventSessionClosed is emitted when a session is stopped.
	EventSessionClosed logging.EventType = "lifecycle.session_closed"
	// EventAgentSpawned is emitted when an agent enters the world.
	EventAgentSpawned logging.EventType = "lifecycle.agent_spawned"
	// EventAgentRemoved is emitted when an agent leaves the world.
	EventAgentRemoved logging.EventType = "lifecycle.agent_removed"
)

// SessionCreatedPayload captures the map a session was started with.
type SessionCreatedPayload struct {
	Seed    string `json:"seed"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Players int    `json:"players"`
	Agents  int    `json:"agents"`
}

// SessionClosedPayload captures why a session ended.
type SessionClosedPayload struct {
	Reason string `json:"reason"`
	Ticks  uint64 `json:"ticks"`
}

// AgentSpawnedPayload captures spawn metadata for a new agent.
type AgentSpawnedPayload struct {
	Owner  string  `json:"owner"`
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
	Speed  float64 `json:"speed"`
}

// AgentRemovedPayload captures the reason an agent left.
type AgentRemovedPayload struct {
	Reason string `json:"reason"`
}

// SessionCreated publishes a session start event.
func SessionCreated(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SessionCreatedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionCreated,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// SessionClosed publishes a session stop event.
func SessionClosed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionClosedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionClosed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// AgentSpawned publishes an agent spawn event.
func AgentSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AgentSpawnedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAgentSpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// AgentRemoved publishes an agent removal event.
func AgentRemoved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AgentRemovedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAgentRemoved,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

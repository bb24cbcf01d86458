package logging

import (
	"context"
	"strings"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a level name to a Severity, defaulting to info.
func ParseSeverity(level string) Severity {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return SeverityDebug
	case "warn", "warning":
		return SeverityWarn
	case "error":
		return SeverityError
	default:
		return SeverityInfo
	}
}

type EntityKind string

const (
	EntityKindUnknown  EntityKind = "unknown"
	EntityKindAgent    EntityKind = "agent"
	EntityKindPlayer   EntityKind = "player"
	EntityKindOre      EntityKind = "ore"
	EntityKindBuilding EntityKind = "building"
	EntityKindSession  EntityKind = "session"
	EntityKindWorld    EntityKind = "world"
)

type Event struct {
	Type      EventType      `json:"type"`
	Tick      uint64         `json:"tick"`
	Time      time.Time      `json:"time"`
	Actor     EntityRef      `json:"actor"`
	Targets   []EntityRef    `json:"targets,omitempty"`
	Severity  Severity       `json:"severity"`
	Category  string         `json:"category,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

const (
	CategoryNavigation = "navigation"
	CategoryLifecycle  = "lifecycle"
	CategoryEconomy    = "economy"
	CategorySimulation = "simulation"
	CategorySystem     = "system"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

type fieldPublisher struct {
	next      Publisher
	sessionID string
	fields    map[string]any
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	if p.sessionID != "" && event.SessionID == "" {
		event.SessionID = p.sessionID
	}
	if len(p.fields) > 0 {
		event = mergeExtra(event, p.fields)
	}
	p.next.Publish(ctx, event)
}

// mergeExtra copies fields into a clone of event's Extra without
// overriding keys the event already sets.
func mergeExtra(event Event, fields map[string]any) Event {
	event = cloneForFields(event)
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
	return event
}

func cloneForFields(event Event) Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}

// WithFields decorates p so every event carries fields in Extra unless the
// event already sets the key.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &fieldPublisher{next: p, fields: copied}
}

// ForSession stamps every event published through p with sessionID.
func ForSession(p Publisher, sessionID string) Publisher {
	if p == nil {
		return NopPublisher()
	}
	return &fieldPublisher{next: p, sessionID: sessionID}
}

func (e Event) WithExtra(key string, value any) Event {
	if e.Extra == nil {
		e.Extra = make(map[string]any, 1)
	}
	e.Extra[key] = value
	return e
}

package economy

import (
	"context"

	"automated-kingdom/server/logging"
)

const (
	// EventOreMined is emitted whenever an agent extracts one unit of ore.
	EventOreMined logging.EventType = "economy.ore_mined"
	// EventOreDepleted is emitted when a patch runs out.
	EventOreDepleted logging.EventType = "economy.ore_depleted"
	// EventBuildingPlaced is emitted when a player places a building.
	EventBuildingPlaced logging.EventType = "economy.building_placed"
	// EventBuildingRejected is emitted when a placement fails.
	EventBuildingRejected logging.EventType = "economy.building_rejected"
)

// OreMinedPayload describes a single extraction.
type OreMinedPayload struct {
	Kind      string `json:"kind"`
	Owner     string `json:"owner"`
	Remaining int    `json:"remaining"`
	Stockpile int    `json:"stockpile"`
}

// OreDepletedPayload identifies the exhausted patch.
type OreDepletedPayload struct {
	Kind string `json:"kind"`
}

// BuildingPlacedPayload describes a placed building.
type BuildingPlacedPayload struct {
	Kind string `json:"kind"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Cost int    `json:"cost"`
}

// BuildingRejectedPayload describes why a placement failed.
type BuildingRejectedPayload struct {
	Kind   string `json:"kind"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Reason string `json:"reason"`
}

// OreMined publishes an extraction event.
func OreMined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload OreMinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventOreMined,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryEconomy,
		Payload:  payload,
		Extra:    extra,
	})
}

// OreDepleted publishes a depletion event.
func OreDepleted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload OreDepletedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventOreDepleted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
		Extra:    extra,
	})
}

// BuildingPlaced publishes a placement event.
func BuildingPlaced(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BuildingPlacedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBuildingPlaced,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
		Extra:    extra,
	})
}

// BuildingRejected publishes a failed placement.
func BuildingRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BuildingRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBuildingRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryEconomy,
		Payload:  payload,
		Extra:    extra,
	})
}

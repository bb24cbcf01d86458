package simulation

import (
	"context"

	"automated-kingdom/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when a tick takes longer than its budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventCommandRejected is emitted when a queued command cannot be applied.
	EventCommandRejected logging.EventType = "simulation.command_rejected"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// CommandRejectedPayload captures the command and the failure.
type CommandRejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// TickBudgetOverrun publishes a warning when the simulation exceeds the configured tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}

// CommandRejected publishes a command application failure.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}

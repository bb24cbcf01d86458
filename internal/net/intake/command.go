package intake

import (
	"time"

	"automated-kingdom/server/internal/net/proto"
	"automated-kingdom/server/internal/sim"
)

const (
	// RejectInvalidCommand marks a command that failed decoding or validation.
	RejectInvalidCommand = "invalid_command"
	// RejectUnknownAgent marks a command addressed to an agent that does not exist.
	RejectUnknownAgent = "unknown_agent"
)

type CommandContext struct {
	Enqueue  func(sim.Command) (bool, string)
	HasAgent func(sim.AgentID) bool
	Tick     func() uint64
	Now      func() time.Time
}

// StageCommand validates req and queues it for the next tick. On rejection
// the reason is one of the Reject constants or a sim queue reason.
func StageCommand(ctx CommandContext, req proto.CommandRequest) (sim.Command, bool, string) {
	var zero sim.Command

	command, err := req.Command()
	if err != nil {
		return zero, false, RejectInvalidCommand
	}

	if command.AgentID != 0 && ctx.HasAgent != nil && !ctx.HasAgent(command.AgentID) {
		return zero, false, RejectUnknownAgent
	}

	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Enqueue == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Enqueue(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}

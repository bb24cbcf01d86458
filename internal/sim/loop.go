package sim

import (
	"context"
	"sync"
	"time"

	"automated-kingdom/server/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-agent
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	// DefaultTickRate is the number of steps per second when none is configured.
	DefaultTickRate = 30
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerAgentLimit   int
	WarningStep     int
}

// LoopTickContext describes the tick about to run.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult reports what a single Advance did.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Commands     []Command
	Rejected     error
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
}

// LoopHooks lets the owner observe the loop without reaching into it.
type LoopHooks struct {
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	OnQueueWarning func(length int)
	OnCommandDrop  func(reason string, cmd Command)
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
// The guard is held while commands are applied and the engine steps, so
// readers holding the same guard see whole ticks only.
type Loop struct {
	core    Engine
	guard   sync.Locker
	queue   *commandQueue
	hooks   LoopHooks
	config  LoopConfig
	deps    Deps
	overrun uint64
}

// NewLoop wraps the provided engine with a staged command queue and loop.
func NewLoop(core Engine, guard sync.Locker, deps Deps, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	if guard == nil {
		guard = &sync.Mutex{}
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	deps = deps.normalized()
	return &Loop{
		core:   core,
		guard:  guard,
		queue:  newCommandQueue(cfg.CommandCapacity, cfg.PerAgentLimit, deps.Metrics),
		hooks:  hooks,
		config: cfg,
		deps:   deps,
	}
}

// Snapshot captures the engine state under the guard.
func (l *Loop) Snapshot() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	l.guard.Lock()
	defer l.guard.Unlock()
	return l.core.Snapshot()
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.queue.pending()
}

// Enqueue stages a command for the next tick. A refusal carries
// CommandRejectQueueLimit or CommandRejectQueueFull.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	result := l.queue.stage(cmd)
	if result.reason != "" {
		l.reportDrop(result.reason, cmd, result.rejections)
		return false, result.reason
	}
	if step := l.config.WarningStep; step > 0 && result.length >= step && result.length%step == 0 {
		l.warnQueue(result.length)
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.queue.drain()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	l.guard.Lock()
	rejected := l.core.Apply(commands)
	l.core.Step(ctx.Delta)
	tick := l.core.Tick()
	l.guard.Unlock()
	for _, cmd := range commands {
		if cmd.Type == CommandRemove {
			l.queue.forget(cmd.AgentID)
		}
	}
	return LoopStepResult{
		Tick:     tick,
		Now:      ctx.Now,
		Delta:    ctx.Delta,
		Commands: commands,
		Rejected: rejected,
	}
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	clock := l.deps.Clock
	last := clock.Now()
	budgetSeconds := 1.0 / float64(tickRate)
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}
	budgetDuration := time.Second / time.Duration(tickRate)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			start := clock.Now()
			result := l.Advance(LoopTickContext{Tick: l.core.Tick() + 1, Now: now, Delta: dt})
			result.Duration = clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt
			l.checkBudget(result)

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) checkBudget(result LoopStepResult) {
	if result.Budget <= 0 || result.Duration <= result.Budget {
		l.overrun = 0
		return
	}
	l.overrun++
	if l.deps.Metrics != nil {
		l.deps.Metrics.Add("sim_tick_budget_overrun_total", 1)
	}
	simulation.TickBudgetOverrun(context.Background(), l.deps.Publisher, result.Tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         l.overrun,
	}, nil)
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if reason == CommandRejectQueueLimit && count > 0 && count&(count-1) == 0 {
		l.deps.Logger.Printf(
			"[backpressure] dropping command agent=%d type=%s count=%d limit=%d",
			cmd.AgentID,
			cmd.Type,
			count,
			l.config.PerAgentLimit,
		)
	}
}

// Ensure World implements Engine.
var _ Engine = (*World)(nil)

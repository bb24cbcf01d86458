package sim

import (
	"sync"

	"automated-kingdom/server/internal/telemetry"
)

const (
	commandQueueOccupancyMetricKey = "sim_command_queue_occupancy"
	commandQueueOverflowMetricKey  = "sim_command_queue_overflow_total"
	commandQueueThrottledMetricKey = "sim_command_queue_throttled_total"
)

// commandQueue stages commands between ticks in a fixed ring. Each agent
// holds at most perAgent slots until the next drain; perAgent <= 0 disables
// the quota. Producers may be concurrent, the drain side is the tick loop.
type commandQueue struct {
	mu       sync.Mutex
	ring     []Command
	head     int
	count    int
	perAgent int
	held     map[AgentID]int
	rejected map[AgentID]uint64
	metrics  telemetry.Metrics
}

// stageResult reports the outcome of staging one command. rejections counts
// every refusal recorded so far for the command's agent.
type stageResult struct {
	reason     string
	rejections uint64
	length     int
}

func newCommandQueue(capacity, perAgent int, metrics telemetry.Metrics) *commandQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &commandQueue{
		ring:     make([]Command, capacity),
		perAgent: perAgent,
		held:     make(map[AgentID]int),
		rejected: make(map[AgentID]uint64),
		metrics:  metrics,
	}
}

func (q *commandQueue) stage(cmd Command) stageResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.perAgent > 0 && cmd.AgentID != 0 && q.held[cmd.AgentID] >= q.perAgent {
		q.add(commandQueueThrottledMetricKey)
		return q.rejectLocked(cmd.AgentID, CommandRejectQueueLimit)
	}
	if q.count == len(q.ring) {
		q.add(commandQueueOverflowMetricKey)
		return q.rejectLocked(cmd.AgentID, CommandRejectQueueFull)
	}

	q.ring[(q.head+q.count)%len(q.ring)] = cmd
	q.count++
	if cmd.AgentID != 0 {
		q.held[cmd.AgentID]++
	}
	q.storeOccupancyLocked()
	return stageResult{length: q.count}
}

func (q *commandQueue) rejectLocked(id AgentID, reason string) stageResult {
	result := stageResult{reason: reason, length: q.count}
	if id != 0 {
		q.rejected[id]++
		result.rejections = q.rejected[id]
	}
	return result
}

// drain hands over the staged commands in arrival order and resets every
// agent's quota.
func (q *commandQueue) drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.held) > 0 {
		clear(q.held)
	}
	if q.count == 0 {
		return nil
	}
	commands := make([]Command, q.count)
	for i := range commands {
		idx := (q.head + i) % len(q.ring)
		commands[i] = q.ring[idx]
		q.ring[idx] = Command{}
	}
	q.head = (q.head + q.count) % len(q.ring)
	q.count = 0
	q.storeOccupancyLocked()
	return commands
}

func (q *commandQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// forget drops the rejection history of an agent that left the world.
func (q *commandQueue) forget(id AgentID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.rejected, id)
}

func (q *commandQueue) add(key string) {
	if q.metrics != nil {
		q.metrics.Add(key, 1)
	}
}

func (q *commandQueue) storeOccupancyLocked() {
	if q.metrics != nil {
		q.metrics.Store(commandQueueOccupancyMetricKey, uint64(q.count))
	}
}

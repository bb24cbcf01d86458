package sim

import "testing"

func TestCommandQueueWraparound(t *testing.T) {
	queue := newCommandQueue(3, 0, nil)
	for _, id := range []AgentID{1, 2, 3} {
		if result := queue.stage(Command{AgentID: id}); result.reason != "" {
			t.Fatalf("expected agent %d to be staged, got %q", id, result.reason)
		}
	}
	if result := queue.stage(Command{AgentID: 9}); result.reason != CommandRejectQueueFull {
		t.Fatalf("expected a full queue, got %q", result.reason)
	}
	if drained := queue.drain(); len(drained) != 3 || drained[0].AgentID != 1 || drained[2].AgentID != 3 {
		t.Fatalf("unexpected drain order %+v", drained)
	}

	queue.stage(Command{AgentID: 4})
	queue.stage(Command{AgentID: 5})
	queue.drain()
	// Head now sits at the last slot, so the next batch wraps.
	queue.stage(Command{AgentID: 6})
	queue.stage(Command{AgentID: 7})
	queue.stage(Command{AgentID: 8})
	drained := queue.drain()
	if len(drained) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(drained))
	}
	for i, want := range []AgentID{6, 7, 8} {
		if drained[i].AgentID != want {
			t.Fatalf("expected agent %d at %d, got %d", want, i, drained[i].AgentID)
		}
	}
	if queue.drain() != nil {
		t.Fatalf("expected an empty drain")
	}
}

func TestCommandQueuePerAgentQuota(t *testing.T) {
	queue := newCommandQueue(8, 2, nil)
	queue.stage(Command{AgentID: 1})
	queue.stage(Command{AgentID: 1})

	first := queue.stage(Command{AgentID: 1})
	second := queue.stage(Command{AgentID: 1})
	if first.reason != CommandRejectQueueLimit || first.rejections != 1 || second.rejections != 2 {
		t.Fatalf("expected counted quota rejections, got %+v then %+v", first, second)
	}
	if result := queue.stage(Command{Type: CommandSpawn}); result.reason != "" {
		t.Fatalf("expected commands without an agent to bypass the quota, got %q", result.reason)
	}

	queue.drain()
	if result := queue.stage(Command{AgentID: 1}); result.reason != "" {
		t.Fatalf("expected the quota to reset after drain, got %q", result.reason)
	}
	if result := queue.stage(Command{AgentID: 1}); result.length != 2 {
		t.Fatalf("expected length 2, got %d", result.length)
	}
	third := queue.stage(Command{AgentID: 1})
	if third.rejections != 3 {
		t.Fatalf("expected rejection history to persist across ticks, got %d", third.rejections)
	}
	queue.forget(1)
	queue.drain()
	queue.stage(Command{AgentID: 1})
	queue.stage(Command{AgentID: 1})
	if again := queue.stage(Command{AgentID: 1}); again.rejections != 1 {
		t.Fatalf("expected forgotten history to restart, got %d", again.rejections)
	}
}

type countingMetrics struct {
	added  map[string]uint64
	stored map[string]uint64
}

func (m *countingMetrics) Add(key string, delta uint64) { m.added[key] += delta }

func (m *countingMetrics) Store(key string, value uint64) { m.stored[key] = value }

func TestCommandQueueReportsMetrics(t *testing.T) {
	metrics := &countingMetrics{added: map[string]uint64{}, stored: map[string]uint64{}}
	queue := newCommandQueue(2, 1, metrics)
	queue.stage(Command{AgentID: 1})
	queue.stage(Command{AgentID: 1})
	queue.stage(Command{AgentID: 2})
	queue.stage(Command{AgentID: 3})
	if got := metrics.stored[commandQueueOccupancyMetricKey]; got != 2 {
		t.Fatalf("expected occupancy 2, got %d", got)
	}
	if got := metrics.added[commandQueueThrottledMetricKey]; got != 1 {
		t.Fatalf("expected 1 throttled command, got %d", got)
	}
	if got := metrics.added[commandQueueOverflowMetricKey]; got != 1 {
		t.Fatalf("expected 1 overflow, got %d", got)
	}
	queue.drain()
	if got := metrics.stored[commandQueueOccupancyMetricKey]; got != 0 {
		t.Fatalf("expected occupancy 0 after drain, got %d", got)
	}
}

package session

import (
	"context"
	"sync"
	"time"

	"automated-kingdom/server/internal/sim"
	"automated-kingdom/server/logging"
	"automated-kingdom/server/logging/lifecycle"
)

// Summary describes a running session for listings.
type Summary struct {
	ID      string    `json:"id"`
	Seed    string    `json:"seed"`
	Created time.Time `json:"created"`
	Tick    uint64    `json:"tick"`
	Agents  int       `json:"agents"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
}

// Session is one running world. Every access to the world goes through the
// session mutex, which the tick loop also holds while it applies commands and
// steps, so callers only ever observe whole ticks.
type Session struct {
	id        string
	created   time.Time
	publisher logging.Publisher

	mu    sync.Mutex
	world *sim.World
	loop  *sim.Loop

	every int
	subMu sync.Mutex
	subs  map[int]chan sim.Snapshot
	next  int

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, w *sim.World, created time.Time, cfg Config, deps sim.Deps) *Session {
	s := &Session{
		id:        id,
		created:   created,
		publisher: deps.Publisher,
		world:     w,
		every:     cfg.SnapshotEvery,
		subs:      make(map[int]chan sim.Snapshot),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if s.every <= 0 {
		s.every = 1
	}
	s.loop = sim.NewLoop(w, &s.mu, deps, cfg.Loop, sim.LoopHooks{
		AfterStep: s.afterStep,
		OnCommandDrop: func(reason string, cmd sim.Command) {
			deps.Logger.Printf("[session %s] dropped %s command for agent %d: %s", id, cmd.Type, cmd.AgentID, reason)
		},
	})
	return s
}

func (s *Session) start() {
	go func() {
		defer close(s.done)
		s.loop.Run(s.stop)
	}()
}

// ID returns the session's UUID.
func (s *Session) ID() string {
	return s.id
}

// Created returns when the session started.
func (s *Session) Created() time.Time {
	return s.created
}

// Snapshot captures the world between ticks.
func (s *Session) Snapshot() sim.Snapshot {
	return s.loop.Snapshot()
}

// Tick returns the number of completed ticks.
func (s *Session) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Tick()
}

// Summary describes the session.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	tiles := s.world.TileMap()
	return Summary{
		ID:      s.id,
		Seed:    s.world.Seed(),
		Created: s.created,
		Tick:    s.world.Tick(),
		Agents:  len(s.world.AgentIDs()),
		Width:   tiles.Width(),
		Height:  tiles.Height(),
	}
}

// Done is closed once the session's tick loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Enqueue stages a command for the next tick.
func (s *Session) Enqueue(cmd sim.Command) (bool, string) {
	return s.loop.Enqueue(cmd)
}

// Inspect runs fn with exclusive access to the world. fn must not retain the
// world.
func (s *Session) Inspect(fn func(*sim.World) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.world)
}

// Subscribe returns a channel of periodic snapshots and a function that
// cancels the subscription. Slow subscribers miss snapshots rather than
// stalling the loop.
func (s *Session) Subscribe() (<-chan sim.Snapshot, func()) {
	ch := make(chan sim.Snapshot, 1)
	s.subMu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) afterStep(result sim.LoopStepResult) {
	if result.Tick%uint64(s.every) != 0 {
		return
	}
	s.subMu.Lock()
	empty := len(s.subs) == 0
	s.subMu.Unlock()
	if empty {
		return
	}

	snapshot := s.loop.Snapshot()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// close stops the tick loop and waits for it to exit.
func (s *Session) close(reason string) {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		lifecycle.SessionClosed(context.Background(), s.publisher, s.Tick(), logging.EntityRef{ID: s.id, Kind: logging.EntityKindSession}, lifecycle.SessionClosedPayload{
			Reason: reason,
			Ticks:  s.Tick(),
		}, nil)
	})
}

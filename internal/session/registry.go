package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"automated-kingdom/server/internal/sim"
	"automated-kingdom/server/internal/world"
	"automated-kingdom/server/logging"
	"automated-kingdom/server/logging/lifecycle"
)

var (
	// ErrSessionNotFound is returned for ids the registry does not hold.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionExists is returned when loading into an id that is already running.
	ErrSessionExists = errors.New("session: already running")
	// ErrInvalidID is returned for ids that are not UUIDs.
	ErrInvalidID = errors.New("session: invalid id")
)

// Config holds the settings every new session starts from.
type Config struct {
	World         world.Config
	Sim           sim.Config
	Loop          sim.LoopConfig
	SnapshotEvery int
}

// Options override per-session parts of Config.
type Options struct {
	Seed    string `json:"seed,omitempty"`
	Layout  string `json:"layout,omitempty"`
	Players int    `json:"players,omitempty"`
}

// Registry owns every running session.
type Registry struct {
	cfg  Config
	deps sim.Deps
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg Config, deps sim.Deps) *Registry {
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &Registry{
		cfg:      cfg,
		deps:     deps,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// Create generates a new world and starts its tick loop.
func (r *Registry) Create(opts Options) (*Session, error) {
	worldCfg := r.cfg.World
	if seed := strings.TrimSpace(opts.Seed); seed != "" {
		worldCfg.Seed = seed
	}
	if opts.Layout != "" {
		worldCfg.Layout = opts.Layout
	}
	simCfg := r.cfg.Sim
	if opts.Players > 0 {
		simCfg.Players = opts.Players
	}

	id := uuid.NewString()
	deps := r.sessionDeps(id)
	w, err := sim.GenerateWorld(worldCfg, simCfg, deps)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s := r.register(id, w, deps)
	snap := s.Snapshot()
	lifecycle.SessionCreated(context.Background(), deps.Publisher, logging.EntityRef{ID: id, Kind: logging.EntityKindSession}, lifecycle.SessionCreatedPayload{
		Seed:    snap.Seed,
		Width:   snap.Width,
		Height:  snap.Height,
		Players: len(snap.Players),
		Agents:  len(snap.Agents),
	}, nil)
	return s, nil
}

// Load restores a snapshot under id and starts its tick loop.
func (r *Registry) Load(id string, snapshot sim.Snapshot) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	r.mu.RLock()
	_, running := r.sessions[id]
	r.mu.RUnlock()
	if running {
		return nil, fmt.Errorf("load %s: %w", id, ErrSessionExists)
	}

	deps := r.sessionDeps(id)
	w, err := sim.Restore(snapshot, r.cfg.Sim, deps)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	return r.register(id, w, deps), nil
}

func (r *Registry) sessionDeps(id string) sim.Deps {
	deps := r.deps
	deps.Publisher = logging.ForSession(r.deps.Publisher, id)
	return deps
}

func (r *Registry) register(id string, w *sim.World, deps sim.Deps) *Session {
	s := newSession(id, w, r.now(), r.cfg, deps)
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	s.start()
	return s
}

// Get returns a running session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// List summarises running sessions, oldest first.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	summaries := make([]Summary, len(sessions))
	for i, s := range sessions {
		summaries[i] = s.Summary()
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Created.Equal(summaries[j].Created) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].Created.Before(summaries[j].Created)
	})
	return summaries
}

// Close stops a session and forgets it.
func (r *Registry) Close(id, reason string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.close(reason)
	return nil
}

// Shutdown stops every session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.close("shutdown")
	}
}

package net

import (
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"time"

	"github.com/matryer/way"

	"automated-kingdom/server/internal/net/intake"
	"automated-kingdom/server/internal/net/proto"
	"automated-kingdom/server/internal/net/ws"
	"automated-kingdom/server/internal/persistence"
	"automated-kingdom/server/internal/session"
	"automated-kingdom/server/internal/sim"
	"automated-kingdom/server/internal/telemetry"
	"automated-kingdom/server/internal/world"
)

const maxBodyBytes = 1 << 20

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Store         persistence.Store
	KeyframeEvery int
	Now           func() time.Time
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type handler struct {
	registry *session.Registry
	store    persistence.Store
	stream   *ws.Handler
	logger   telemetry.Logger
	now      func() time.Time
}

// NewHTTPHandler routes the session API. Save and load answer 503 when no
// store is configured.
func NewHTTPHandler(registry *session.Registry, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	h := &handler{
		registry: registry,
		store:    cfg.Store,
		stream:   ws.NewHandler(ws.HandlerConfig{Logger: logger, KeyframeEvery: cfg.KeyframeEvery}),
		logger:   logger,
		now:      now,
	}

	router := way.NewRouter()
	router.HandleFunc(nethttp.MethodGet, "/health", h.health)
	router.HandleFunc(nethttp.MethodGet, "/sessions", h.listSessions)
	router.HandleFunc(nethttp.MethodPost, "/sessions", h.createSession)
	router.HandleFunc(nethttp.MethodPost, "/sessions/load/:id", h.loadSession)
	router.HandleFunc(nethttp.MethodGet, "/sessions/:id", h.getSession)
	router.HandleFunc(nethttp.MethodDelete, "/sessions/:id", h.deleteSession)
	router.HandleFunc(nethttp.MethodPost, "/sessions/:id/commands", h.postCommand)
	router.HandleFunc(nethttp.MethodPost, "/sessions/:id/save", h.saveSession)
	router.HandleFunc(nethttp.MethodGet, "/sessions/:id/stream", h.streamSession)
	router.HandleFunc(nethttp.MethodGet, "/snapshots", h.listSnapshots)
	router.HandleFunc(nethttp.MethodDelete, "/snapshots/:id", h.deleteSnapshot)
	router.NotFound = nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusNotFound, errorResponse{Error: "not found"})
	})
	return router
}

func (h *handler) health(w nethttp.ResponseWriter, r *nethttp.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (h *handler) listSessions(w nethttp.ResponseWriter, r *nethttp.Request) {
	summaries := h.registry.List()
	if summaries == nil {
		summaries = []session.Summary{}
	}
	writeJSON(w, nethttp.StatusOK, summaries)
}

func (h *handler) createSession(w nethttp.ResponseWriter, r *nethttp.Request) {
	var opts session.Options
	if r.Body != nil {
		defer r.Body.Close()
		decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&opts); err != nil && err != io.EOF {
			writeJSON(w, nethttp.StatusBadRequest, errorResponse{Error: "invalid payload: " + err.Error()})
			return
		}
	}
	s, err := h.registry.Create(opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Printf("[http] created session %s", s.ID())
	writeJSON(w, nethttp.StatusCreated, s.Summary())
}

func (h *handler) getSession(w nethttp.ResponseWriter, r *nethttp.Request) {
	s, err := h.registry.Get(way.Param(r.Context(), "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, s.Snapshot())
}

func (h *handler) deleteSession(w nethttp.ResponseWriter, r *nethttp.Request) {
	if err := h.registry.Close(way.Param(r.Context(), "id"), "deleted"); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(nethttp.StatusNoContent)
}

func (h *handler) postCommand(w nethttp.ResponseWriter, r *nethttp.Request) {
	s, err := h.registry.Get(way.Param(r.Context(), "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, nethttp.StatusBadRequest, errorResponse{Error: "read body: " + err.Error()})
		return
	}
	req, err := proto.DecodeCommand(body)
	if err != nil {
		writeJSON(w, nethttp.StatusBadRequest, errorResponse{Error: err.Error(), Reason: intake.RejectInvalidCommand})
		return
	}
	if _, err := req.Command(); err != nil {
		writeJSON(w, nethttp.StatusBadRequest, errorResponse{Error: err.Error(), Reason: intake.RejectInvalidCommand})
		return
	}

	cmd, ok, reason := intake.StageCommand(intake.CommandContext{
		Enqueue: s.Enqueue,
		HasAgent: func(id sim.AgentID) bool {
			found := false
			_ = s.Inspect(func(w *sim.World) error {
				_, found = w.Agent(id)
				return nil
			})
			return found
		},
		Tick: s.Tick,
		Now:  h.now,
	}, req)
	if !ok {
		writeJSON(w, rejectStatus(reason), errorResponse{Error: "command rejected", Reason: reason})
		return
	}
	writeJSON(w, nethttp.StatusAccepted, proto.CommandAccepted{Ver: proto.Version, Type: cmd.Type, Tick: cmd.OriginTick})
}

func (h *handler) saveSession(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h.store == nil {
		writeJSON(w, nethttp.StatusServiceUnavailable, errorResponse{Error: "persistence is not configured"})
		return
	}
	id := way.Param(r.Context(), "id")
	s, err := h.registry.Get(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.store.Save(r.Context(), id, s.Snapshot())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, entry)
}

func (h *handler) loadSession(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h.store == nil {
		writeJSON(w, nethttp.StatusServiceUnavailable, errorResponse{Error: "persistence is not configured"})
		return
	}
	id := way.Param(r.Context(), "id")
	snapshot, err := h.store.Load(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	s, err := h.registry.Load(id, snapshot)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Printf("[http] loaded session %s at tick %d", id, snapshot.Tick)
	writeJSON(w, nethttp.StatusCreated, s.Summary())
}

func (h *handler) streamSession(w nethttp.ResponseWriter, r *nethttp.Request) {
	id := way.Param(r.Context(), "id")
	s, err := h.registry.Get(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.stream.Serve(w, r, id, s)
}

func (h *handler) listSnapshots(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h.store == nil {
		writeJSON(w, nethttp.StatusServiceUnavailable, errorResponse{Error: "persistence is not configured"})
		return
	}
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if entries == nil {
		entries = []persistence.Entry{}
	}
	writeJSON(w, nethttp.StatusOK, entries)
}

func (h *handler) deleteSnapshot(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h.store == nil {
		writeJSON(w, nethttp.StatusServiceUnavailable, errorResponse{Error: "persistence is not configured"})
		return
	}
	if err := h.store.Delete(r.Context(), way.Param(r.Context(), "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(nethttp.StatusNoContent)
}

func (h *handler) fail(w nethttp.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= nethttp.StatusInternalServerError {
		h.logger.Printf("[http] request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var layoutErr *world.LayoutError
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, sim.ErrUnknownAgent),
		errors.Is(err, persistence.ErrNotFound):
		return nethttp.StatusNotFound
	case errors.Is(err, session.ErrSessionExists):
		return nethttp.StatusConflict
	case errors.Is(err, session.ErrInvalidID),
		errors.Is(err, sim.ErrInvalidCommand),
		errors.Is(err, proto.ErrUnsupportedCommand),
		errors.Is(err, world.ErrInvalidDimensions),
		errors.As(err, &layoutErr):
		return nethttp.StatusBadRequest
	default:
		return nethttp.StatusInternalServerError
	}
}

func rejectStatus(reason string) int {
	switch reason {
	case intake.RejectInvalidCommand:
		return nethttp.StatusBadRequest
	case intake.RejectUnknownAgent:
		return nethttp.StatusNotFound
	case sim.CommandRejectQueueLimit:
		return nethttp.StatusTooManyRequests
	default:
		return nethttp.StatusServiceUnavailable
	}
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		nethttp.Error(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

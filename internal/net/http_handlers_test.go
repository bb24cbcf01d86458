package net

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automated-kingdom/server/internal/net/intake"
	"automated-kingdom/server/internal/net/proto"
	"automated-kingdom/server/internal/persistence"
	"automated-kingdom/server/internal/session"
	"automated-kingdom/server/internal/sim"
	"automated-kingdom/server/internal/world"
)

const testLayout = `##########
#........#
#........#
#........#
#........#
#........#
##########`

func newTestRegistry(t *testing.T) *session.Registry {
	t.Helper()
	simCfg := sim.DefaultConfig()
	simCfg.Players = 1
	simCfg.WorkersPerPlayer = 2
	worldCfg := world.DefaultConfig()
	worldCfg.OrePatches = 0
	registry := session.NewRegistry(session.Config{
		World:         worldCfg,
		Sim:           simCfg,
		Loop:          sim.LoopConfig{TickRate: 100, CommandCapacity: 16, PerAgentLimit: 2},
		SnapshotEvery: 1,
	}, sim.Deps{})
	t.Cleanup(registry.Shutdown)
	return registry
}

func newTestStore(t *testing.T) persistence.Store {
	t.Helper()
	store, err := persistence.OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, h http.Handler) session.Summary {
	t.Helper()
	body, err := json.Marshal(session.Options{Seed: "meadow", Layout: testLayout})
	require.NoError(t, err)
	resp := do(t, h, http.MethodPost, "/sessions", string(body))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var summary session.Summary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &summary))
	return summary
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var payload errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload), resp.Body.String())
	return payload
}

func TestHealth(t *testing.T) {
	h := NewHTTPHandler(newTestRegistry(t), HTTPHandlerConfig{})
	resp := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", resp.Body.String())
}

func TestCreateListGetDeleteSession(t *testing.T) {
	h := NewHTTPHandler(newTestRegistry(t), HTTPHandlerConfig{})

	summary := createSession(t, h)
	assert.Equal(t, "meadow", summary.Seed)
	assert.Equal(t, 10, summary.Width)
	assert.Equal(t, 2, summary.Agents)

	resp := do(t, h, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var summaries []session.Summary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, summary.ID, summaries[0].ID)

	resp = do(t, h, http.MethodGet, "/sessions/"+summary.ID, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
	var snapshot sim.Snapshot
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snapshot))
	assert.Len(t, snapshot.Agents, 2)
	assert.Equal(t, testLayout+"\n", snapshot.Layout)

	resp = do(t, h, http.MethodDelete, "/sessions/"+summary.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = do(t, h, http.MethodGet, "/sessions/"+summary.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListStartsEmpty(t *testing.T) {
	h := NewHTTPHandler(newTestRegistry(t), HTTPHandlerConfig{})
	resp := do(t, h, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestCreateSessionRejectsBadInput(t *testing.T) {
	h := NewHTTPHandler(newTestRegistry(t), HTTPHandlerConfig{})

	resp := do(t, h, http.MethodPost, "/sessions", `{"layout":"#x#"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	resp = do(t, h, http.MethodPost, "/sessions", `{"size":3}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, h, http.MethodPost, "/sessions", `{"seed":`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateSessionWithoutBody(t *testing.T) {
	h := NewHTTPHandler(newTestRegistry(t), HTTPHandlerConfig{})
	resp := do(t, h, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
}

func TestUnknownSessionAndRoute(t *testing.T) {
	h := NewHTTPHandler(newTestRegistry(t), HTTPHandlerConfig{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/sessions/missing"},
		{http.MethodDelete, "/sessions/missing"},
		{http.MethodPost, "/sessions/missing/commands"},
		{http.MethodGet, "/nowhere"},
	} {
		resp := do(t, h, tc.method, tc.path, `{"type":"clearPath","agentId":1}`)
		assert.Equal(t, http.StatusNotFound, resp.Code, "%s %s", tc.method, tc.path)
	}
}

func TestPostCommand(t *testing.T) {
	registry := newTestRegistry(t)
	issuedAt := time.Unix(1700000000, 0)
	h := NewHTTPHandler(registry, HTTPHandlerConfig{Now: func() time.Time { return issuedAt }})
	summary := createSession(t, h)
	path := "/sessions/" + summary.ID + "/commands"

	resp := do(t, h, http.MethodPost, path, `{"type":"path","agentId":1,"path":{"x":7,"y":4}}`)
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	var accepted proto.CommandAccepted
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &accepted))
	assert.Equal(t, sim.CommandSetPath, accepted.Type)

	s, err := registry.Get(summary.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		var moving bool
		_ = s.Inspect(func(w *sim.World) error {
			agent, ok := w.Agent(1)
			moving = ok && (len(agent.Path) > 0 || agent.Position == world.CellToWorld(world.GridCell{X: 7, Y: 4}))
			return nil
		})
		return moving
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPostCommandRejections(t *testing.T) {
	h := NewHTTPHandler(newTestRegistry(t), HTTPHandlerConfig{})
	summary := createSession(t, h)
	path := "/sessions/" + summary.ID + "/commands"

	resp := do(t, h, http.MethodPost, path, `{"type":"path","agentId":99,"path":{"x":2,"y":2}}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, intake.RejectUnknownAgent, decodeError(t, resp).Reason)

	resp = do(t, h, http.MethodPost, path, `{"type":"path","agentId":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, intake.RejectInvalidCommand, decodeError(t, resp).Reason)

	resp = do(t, h, http.MethodPost, path, `{"type":"spawn","spawn":{"owner":"purple","x":40,"y":40}}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, intake.RejectInvalidCommand, decodeError(t, resp).Reason)

	resp = do(t, h, http.MethodPost, path, `{"type":"remove","agentId":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, h, http.MethodPost, path, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{session.ErrSessionNotFound, http.StatusNotFound},
		{sim.ErrUnknownAgent, http.StatusNotFound},
		{persistence.ErrNotFound, http.StatusNotFound},
		{session.ErrSessionExists, http.StatusConflict},
		{session.ErrInvalidID, http.StatusBadRequest},
		{sim.ErrInvalidCommand, http.StatusBadRequest},
		{&world.LayoutError{Reason: "bad"}, http.StatusBadRequest},
		{world.ErrInvalidDimensions, http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
	assert.Equal(t, http.StatusTooManyRequests, rejectStatus(sim.CommandRejectQueueLimit))
	assert.Equal(t, http.StatusServiceUnavailable, rejectStatus(sim.CommandRejectQueueFull))
}

func TestSaveAndLoadSession(t *testing.T) {
	store := newTestStore(t)
	h := NewHTTPHandler(newTestRegistry(t), HTTPHandlerConfig{Store: store})
	summary := createSession(t, h)

	resp := do(t, h, http.MethodPost, "/sessions/"+summary.ID+"/save", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var entry persistence.Entry
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &entry))
	assert.Equal(t, summary.ID, entry.SessionID)

	resp = do(t, h, http.MethodGet, "/snapshots", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var entries []persistence.Entry
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	resp = do(t, h, http.MethodPost, "/sessions/load/"+summary.ID, "")
	assert.Equal(t, http.StatusConflict, resp.Code)

	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/sessions/"+summary.ID, "").Code)

	resp = do(t, h, http.MethodPost, "/sessions/load/"+summary.ID, "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var loaded session.Summary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &loaded))
	assert.Equal(t, summary.ID, loaded.ID)
	assert.Equal(t, 2, loaded.Agents)
	assert.GreaterOrEqual(t, loaded.Tick, entry.Tick)

	resp = do(t, h, http.MethodPost, "/sessions/load/00000000-0000-4000-8000-000000000000", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/snapshots/"+summary.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/snapshots/"+summary.ID, "").Code)
}

func TestPersistenceRoutesNeedStore(t *testing.T) {
	h := NewHTTPHandler(newTestRegistry(t), HTTPHandlerConfig{})
	summary := createSession(t, h)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/sessions/"+summary.ID+"/save", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/sessions/load/"+summary.ID, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/snapshots", "").Code)
}

func TestStreamRoute(t *testing.T) {
	h := NewHTTPHandler(newTestRegistry(t), HTTPHandlerConfig{})
	summary := createSession(t, h)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + summary.ID + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var keyframe proto.KeyframeMessage
	require.NoError(t, conn.ReadJSON(&keyframe))
	assert.Equal(t, proto.TypeKeyframe, keyframe.Type)
	assert.Len(t, keyframe.Snapshot.Agents, 2)

	var patch proto.PatchMessage
	require.NoError(t, conn.ReadJSON(&patch))
	assert.Equal(t, proto.TypePatch, patch.Type)
	assert.Greater(t, patch.Tick, patch.Since)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/sessions/missing/stream", nil)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
}

package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automated-kingdom/server/internal/net/proto"
	"automated-kingdom/server/internal/sim"
	"automated-kingdom/server/internal/world"
)

type fakeSession struct {
	snapshot  sim.Snapshot
	updates   chan sim.Snapshot
	done      chan struct{}
	cancelled chan struct{}
	once      sync.Once
}

func newFakeSession(snapshot sim.Snapshot) *fakeSession {
	return &fakeSession{
		snapshot:  snapshot,
		updates:   make(chan sim.Snapshot, 1),
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

func (f *fakeSession) Snapshot() sim.Snapshot { return f.snapshot }

func (f *fakeSession) Subscribe() (<-chan sim.Snapshot, func()) {
	return f.updates, func() { f.once.Do(func() { close(f.cancelled) }) }
}

func (f *fakeSession) Done() <-chan struct{} { return f.done }

func agentAt(x float64) sim.AgentSnapshot {
	return sim.AgentSnapshot{ID: 1, Owner: sim.ColorBlue, Position: world.Vec2{X: x, Y: 48}, Speed: 200}
}

func dial(t *testing.T, handler *Handler, target Observable) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Serve(w, r, "session-1", target)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	u.Scheme = "ws"

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func messageType(t *testing.T, msg map[string]json.RawMessage) string {
	t.Helper()
	var kind string
	require.NoError(t, json.Unmarshal(msg["type"], &kind))
	return kind
}

func TestStreamStartsWithKeyframeThenPatches(t *testing.T) {
	first := sim.Snapshot{Tick: 3, Agents: []sim.AgentSnapshot{agentAt(48)}}
	target := newFakeSession(first)
	conn := dial(t, NewHandler(HandlerConfig{}), target)

	msg := readMessage(t, conn)
	assert.Equal(t, proto.TypeKeyframe, messageType(t, msg))
	var keyframe proto.KeyframeMessage
	raw, _ := json.Marshal(msg)
	require.NoError(t, json.Unmarshal(raw, &keyframe))
	assert.Equal(t, uint64(3), keyframe.Tick)
	require.Len(t, keyframe.Snapshot.Agents, 1)

	target.updates <- sim.Snapshot{Tick: 6, Agents: []sim.AgentSnapshot{agentAt(58)}}
	msg = readMessage(t, conn)
	require.Equal(t, proto.TypePatch, messageType(t, msg))

	var patch proto.PatchMessage
	raw, _ = json.Marshal(msg)
	require.NoError(t, json.Unmarshal(raw, &patch))
	assert.Equal(t, uint64(3), patch.Since)
	assert.Equal(t, uint64(6), patch.Tick)
	require.Len(t, patch.Patches, 1)
	assert.Equal(t, sim.PatchAgentPos, patch.Patches[0].Kind)
	assert.Equal(t, "1", patch.Patches[0].EntityID)
}

func TestStreamSendsPeriodicKeyframes(t *testing.T) {
	target := newFakeSession(sim.Snapshot{Tick: 1})
	conn := dial(t, NewHandler(HandlerConfig{KeyframeEvery: 2}), target)

	assert.Equal(t, proto.TypeKeyframe, messageType(t, readMessage(t, conn)))
	target.updates <- sim.Snapshot{Tick: 2}
	assert.Equal(t, proto.TypePatch, messageType(t, readMessage(t, conn)))
	target.updates <- sim.Snapshot{Tick: 3}
	assert.Equal(t, proto.TypeKeyframe, messageType(t, readMessage(t, conn)))
}

func TestStreamSkipsStaleSnapshots(t *testing.T) {
	target := newFakeSession(sim.Snapshot{Tick: 5})
	conn := dial(t, NewHandler(HandlerConfig{}), target)

	readMessage(t, conn)
	target.updates <- sim.Snapshot{Tick: 4}
	target.updates <- sim.Snapshot{Tick: 8}
	msg := readMessage(t, conn)
	var patch proto.PatchMessage
	raw, _ := json.Marshal(msg)
	require.NoError(t, json.Unmarshal(raw, &patch))
	assert.Equal(t, uint64(8), patch.Tick)
}

func TestStreamReportsSessionClose(t *testing.T) {
	target := newFakeSession(sim.Snapshot{Tick: 1})
	conn := dial(t, NewHandler(HandlerConfig{}), target)

	readMessage(t, conn)
	close(target.done)

	msg := readMessage(t, conn)
	assert.Equal(t, proto.TypeClosed, messageType(t, msg))

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)

	select {
	case <-target.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the subscription to be cancelled")
	}
}

func TestStreamCancelsSubscriptionWhenPeerLeaves(t *testing.T) {
	target := newFakeSession(sim.Snapshot{Tick: 1})
	conn := dial(t, NewHandler(HandlerConfig{}), target)

	readMessage(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	select {
	case <-target.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the subscription to be cancelled")
	}
}

package ws

import (
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"automated-kingdom/server/internal/net/proto"
	"automated-kingdom/server/internal/sim"
	"automated-kingdom/server/internal/telemetry"
)

// DefaultKeyframeEvery is how many patch messages are sent between keyframes.
const DefaultKeyframeEvery = 30

// Observable is a running session that can be streamed.
type Observable interface {
	Snapshot() sim.Snapshot
	Subscribe() (<-chan sim.Snapshot, func())
	Done() <-chan struct{}
}

type HandlerConfig struct {
	Logger        telemetry.Logger
	KeyframeEvery int
}

type Handler struct {
	logger        telemetry.Logger
	keyframeEvery int
	upgrader      websocket.Upgrader
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	every := cfg.KeyframeEvery
	if every <= 0 {
		every = DefaultKeyframeEvery
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		logger:        logger,
		keyframeEvery: every,
		upgrader:      upgrader,
	}
}

// Serve upgrades the request and streams target until either side goes
// away. The first message is a keyframe; later messages are patches against
// the previously sent snapshot, with a keyframe every keyframeEvery messages.
func (h *Handler) Serve(w nethttp.ResponseWriter, r *nethttp.Request, id string, target Observable) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[stream] upgrade failed for session %s: %v", id, err)
		return
	}

	updates, cancel := target.Subscribe()
	defer cancel()

	stream := newStreamSession(conn)
	peerGone := make(chan struct{})
	go stream.readLoop(peerGone)

	last := target.Snapshot()
	if err := stream.writeJSON(proto.Keyframe(last)); err != nil {
		h.logger.Printf("[stream] initial keyframe for session %s failed: %v", id, err)
		_ = conn.Close()
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	sinceKeyframe := 0
	for {
		select {
		case <-peerGone:
			_ = conn.Close()
			return
		case <-target.Done():
			_ = stream.writeJSON(proto.Closed("session closed"))
			stream.closeWith(websocket.CloseNormalClosure, "session closed")
			return
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				_ = conn.Close()
				return
			}
		case next := <-updates:
			if next.Tick <= last.Tick {
				continue
			}
			var payload any
			sinceKeyframe++
			if sinceKeyframe >= h.keyframeEvery {
				payload = proto.Keyframe(next)
				sinceKeyframe = 0
			} else {
				payload = proto.Delta(last, next)
			}
			if err := stream.writeJSON(payload); err != nil {
				h.logger.Printf("[stream] write to session %s observer failed: %v", id, err)
				_ = conn.Close()
				return
			}
			last = next
		}
	}
}

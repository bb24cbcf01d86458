package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// streamSession serialises writes to one observer connection.
type streamSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newStreamSession(conn *websocket.Conn) *streamSession {
	return &streamSession{conn: conn}
}

func (s *streamSession) writeJSON(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, data)
}

func (s *streamSession) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *streamSession) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *streamSession) closeWith(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	message := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	_ = s.conn.Close()
}

// readLoop discards inbound messages and returns when the peer goes away.
// The stream is read-only; reading keeps pong handling alive.
func (s *streamSession) readLoop(done chan<- struct{}) {
	defer close(done)
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

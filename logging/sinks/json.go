package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"automated-kingdom/server/logging"
)

// JSON emits newline-delimited structured events.
type JSON struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	encoder   *json.Encoder
	closer    io.Closer
	autoFlush bool
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewJSON constructs a JSON sink writing to w. A non-positive flushInterval
// flushes after every event.
func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{
		writer:    buf,
		encoder:   json.NewEncoder(buf),
		autoFlush: flushInterval <= 0,
		stop:      make(chan struct{}),
	}
	if flushInterval > 0 {
		go sink.periodicFlush(flushInterval)
	}
	return sink
}

// OpenJSONFile appends events to the file at path, creating it if needed.
func OpenJSONFile(path string, flushInterval time.Duration) (*JSON, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open json log %s: %w", path, err)
	}
	sink := NewJSON(file, flushInterval)
	sink.closer = file
	return sink, nil
}

type jsonEvent struct {
	Type      logging.EventType   `json:"type"`
	Tick      uint64              `json:"tick"`
	Time      string              `json:"time"`
	Severity  string              `json:"severity"`
	Category  string              `json:"category,omitempty"`
	SessionID string              `json:"sessionId,omitempty"`
	Actor     logging.EntityRef   `json:"actor"`
	Targets   []logging.EntityRef `json:"targets,omitempty"`
	Payload   any                 `json:"payload,omitempty"`
	Extra     map[string]any      `json:"extra,omitempty"`
}

// Write satisfies logging.Sink.
func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := jsonEvent{
		Type:      event.Type,
		Tick:      event.Tick,
		Time:      event.Time.Format(time.RFC3339Nano),
		Severity:  event.Severity.String(),
		Category:  event.Category,
		SessionID: event.SessionID,
		Actor:     event.Actor,
		Targets:   event.Targets,
		Payload:   event.Payload,
		Extra:     event.Extra,
	}
	if err := s.encoder.Encode(wire); err != nil {
		return err
	}
	if s.autoFlush {
		return s.writer.Flush()
	}
	return nil
}

// Close stops the flusher, flushes buffers and closes an owned file.
func (s *JSON) Close(context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.writer.Flush()
	if s.closer != nil {
		if closeErr := s.closer.Close(); err == nil {
			err = closeErr
		}
		s.closer = nil
	}
	return err
}

func (s *JSON) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.writer.Flush()
			s.mu.Unlock()
		}
	}
}

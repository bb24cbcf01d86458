package logging_test

import (
	"context"
	"testing"
	"time"

	"automated-kingdom/server/logging"
	"automated-kingdom/server/logging/navigation"
	"automated-kingdom/server/logging/sinks"
)

func newTestRouter(t *testing.T, cfg logging.Config) (*logging.Router, *sinks.MemorySink) {
	t.Helper()
	memory := sinks.NewMemorySink()
	clock := logging.ClockFunc(func() time.Time { return time.Unix(100, 0).UTC() })
	router := logging.NewRouter(clock, cfg, nil, []logging.NamedSink{{Name: logging.SinkMemory, Sink: memory}})
	return router, memory
}

func TestRouterDeliversOnClose(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityDebug
	cfg.Fields = map[string]any{"node": "a"}
	router, memory := newTestRouter(t, cfg)

	pub := logging.ForSession(router, "s-1")
	navigation.PathResolved(context.Background(), pub, 7, logging.EntityRef{ID: "1", Kind: logging.EntityKindAgent}, navigation.PathResolvedPayload{Steps: 3}, nil)

	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	events := memory.EventsOfType(navigation.EventPathResolved)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	event := events[0]
	if event.SessionID != "s-1" {
		t.Fatalf("expected session stamp, got %q", event.SessionID)
	}
	if event.Extra["node"] != "a" {
		t.Fatalf("expected router field, got %v", event.Extra)
	}
	if !event.Time.Equal(time.Unix(100, 0)) {
		t.Fatalf("expected clock time, got %v", event.Time)
	}
	if stats := router.Stats(); stats.EventsTotal != 1 || stats.DroppedTotal != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router, memory := newTestRouter(t, cfg)

	actor := logging.EntityRef{ID: "2", Kind: logging.EntityKindAgent}
	navigation.PathNotFound(context.Background(), router, 1, actor, navigation.PathNotFoundPayload{}, nil)
	navigation.PathNotFound(context.Background(), router, 2, actor, navigation.PathNotFoundPayload{Truncated: true}, nil)

	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	events := memory.Events()
	if len(events) != 1 || events[0].Tick != 2 {
		t.Fatalf("expected only the truncated search, got %+v", events)
	}
}

func TestRouterIgnoresPublishAfterClose(t *testing.T) {
	router, memory := newTestRouter(t, logging.DefaultConfig())
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityError})
	if got := len(memory.Events()); got != 0 {
		t.Fatalf("expected no events after close, got %d", got)
	}
	if router.Sink(logging.SinkMemory) != memory {
		t.Fatalf("expected sink lookup by name")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]logging.Severity{
		"debug":   logging.SeverityDebug,
		" WARN ":  logging.SeverityWarn,
		"warning": logging.SeverityWarn,
		"error":   logging.SeverityError,
		"":        logging.SeverityInfo,
		"verbose": logging.SeverityInfo,
	}
	for input, want := range cases {
		if got := logging.ParseSeverity(input); got != want {
			t.Fatalf("ParseSeverity(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestWithFieldsKeepsEventValues(t *testing.T) {
	memory := sinks.NewMemorySink()
	pub := logging.WithFields(memory, map[string]any{"zone": "north", "tick": "x"})
	pub.Publish(context.Background(), logging.Event{Type: "probe", Extra: map[string]any{"zone": "south"}})

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Extra["zone"] != "south" || events[0].Extra["tick"] != "x" {
		t.Fatalf("unexpected extra %v", events[0].Extra)
	}
}

func TestRouterMirrorsCountersIntoMetrics(t *testing.T) {
	router, _ := newTestRouter(t, logging.DefaultConfig())
	metrics := logging.NewMetrics()
	router.AttachMetrics(metrics)

	router.Publish(context.Background(), logging.Event{Type: "probe", Severity: logging.SeverityInfo, Category: logging.CategoryEconomy})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("expected a second close to be a no-op, got %v", err)
	}
	if got := metrics.Value("logging_events_total"); got != 1 {
		t.Fatalf("expected 1 event counted, got %d", got)
	}
	if got := metrics.Value("logging_events_economy_total"); got != 1 {
		t.Fatalf("expected 1 economy event counted, got %d", got)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{logging.SinkConsole, logging.SinkJSON, logging.SinkMemory}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected known sinks to validate, got %v", err)
	}
	cfg.EnabledSinks = []string{"syslog"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown sink to fail")
	}
	cfg.EnabledSinks = []string{logging.SinkJSON, logging.SinkJSON}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate sink to fail")
	}
}

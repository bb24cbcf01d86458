package logging

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

const (
	metricEventsTotal  = "logging_events_total"
	metricDroppedTotal = "logging_events_dropped_total"
	metricSinkFailures = "logging_sink_failures_total"

	minSinkBuffer = 32
	maxSinkBuffer = 1024
)

// Router fans published events out to one worker per sink. Publish never
// blocks the tick loop: when the queue is full the event is dropped and
// counted.
type Router struct {
	cfg      Config
	queue    chan Event
	sinks    []*sinkWorker
	clock    Clock
	fallback logrus.FieldLogger
	metrics  atomic.Pointer[Metrics]

	stop      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	nextDropLog  atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

// NewRouter starts the dispatch goroutine and the sink workers. A nil
// fallback logger writes router diagnostics through the logrus standard
// logger.
func NewRouter(clock Clock, cfg Config, fallback logrus.FieldLogger, namedSinks []NamedSink) *Router {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = logrus.StandardLogger()
	}
	cfg = cfg.normalized()
	r := &Router{
		cfg:      cfg,
		queue:    make(chan Event, cfg.BufferSize),
		clock:    clock,
		fallback: fallback.WithField("component", "logging"),
		stop:     make(chan struct{}),
	}

	sinkBuffer := min(max(cfg.BufferSize, minSinkBuffer), maxSinkBuffer)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.sinks = append(r.sinks, &sinkWorker{
			name:     named.Name,
			sink:     named.Sink,
			events:   make(chan Event, sinkBuffer),
			fallback: r.fallback.WithField("sink", named.Name),
			failed:   r.countSinkFailure,
		})
	}

	r.wg.Add(1 + len(r.sinks))
	go r.dispatch()
	for _, worker := range r.sinks {
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(worker)
	}
	return r
}

// AttachMetrics mirrors the router counters into m so they show up next to
// the simulation metrics.
func (r *Router) AttachMetrics(m *Metrics) {
	if r != nil {
		r.metrics.Store(m)
	}
}

func (r *Router) dispatch() {
	defer func() {
		for _, worker := range r.sinks {
			close(worker.events)
		}
		r.wg.Done()
	}()
	for {
		select {
		case <-r.stop:
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		case event := <-r.queue:
			r.forward(event)
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if len(r.cfg.Fields) > 0 {
		event = mergeExtra(event, r.cfg.Fields)
	}
	r.eventsTotal.Add(1)
	r.count(metricEventsTotal)
	if event.Category != "" {
		r.count("logging_events_" + event.Category + "_total")
	}
	for _, worker := range r.sinks {
		worker.enqueue(event)
	}
}

// Publish implements Publisher. Events without a type and events published
// after Close are ignored.
func (r *Router) Publish(_ context.Context, event Event) {
	if r == nil || event.Type == "" || r.closing.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped(event)
	}
}

func (r *Router) dropped(event Event) {
	total := r.droppedTotal.Add(1)
	r.count(metricDroppedTotal)
	now := r.clock.Now().UnixNano()
	next := r.nextDropLog.Load()
	if now < next || !r.nextDropLog.CompareAndSwap(next, now+r.cfg.DropWarnInterval.Nanoseconds()) {
		return
	}
	r.fallback.WithFields(logrus.Fields{
		"type":    event.Type,
		"tick":    event.Tick,
		"session": event.SessionID,
		"dropped": total,
	}).Warn("dropping event")
}

func (r *Router) count(key string) {
	if m := r.metrics.Load(); m != nil {
		m.TelemetryAdd(key, 1)
	}
}

func (r *Router) countSinkFailure() {
	r.count(metricSinkFailures)
}

// Close stops accepting events, flushes the queue into the sinks and closes
// them. Later calls return the first call's result.
func (r *Router) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.closing.Store(true)
		close(r.stop)
		done := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			r.closeErr = ctx.Err()
			return
		}
		for _, worker := range r.sinks {
			if err := worker.sink.Close(ctx); err != nil && r.closeErr == nil {
				r.closeErr = err
			}
		}
	})
	return r.closeErr
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
}

// Sink looks a sink up by the name it was registered with.
func (r *Router) Sink(name string) Sink {
	for _, worker := range r.sinks {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}

// sinkWorker serialises writes to one sink and backs off exponentially, up
// to 32s, while the sink keeps failing.
type sinkWorker struct {
	name      string
	sink      Sink
	events    chan Event
	fallback  logrus.FieldLogger
	failed    func()
	failures  int
	nextRetry time.Time
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- cloneForFields(event):
	default:
		w.fallback.WithField("type", event.Type).Warn("sink backlog full, dropping event")
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if w.failures > 0 {
			if wait := time.Until(w.nextRetry); wait > 0 {
				time.Sleep(wait)
			}
		}
		if err := w.sink.Write(event); err != nil {
			w.fail(err)
			continue
		}
		w.failures = 0
	}
}

func (w *sinkWorker) fail(err error) {
	w.failures++
	delay := time.Duration(1<<min(w.failures, 5)) * time.Second
	w.nextRetry = time.Now().Add(delay)
	if w.failed != nil {
		w.failed()
	}
	w.fallback.WithError(err).WithField("retry", delay).Error("sink write failed")
}

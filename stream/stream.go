// Package stream implements an in-process, append-only event-streaming
// substrate: an ordered, durable-in-memory Log of typed records that
// producers append to and that any number of independent Subscribers
// consume via their own SubscriptionScope-controlled Cursor.
//
// The design is adapted from HashiCorp Nomad's event-streaming
// subsystem (nomad/stream/event_publisher.go, nomad/event/event_buffer.go):
// a single EventPublisher-style Publish path serialized against itself,
// fanning out to an arbitrary number of independently progressing
// cursors woken by closing a shared channel rather than a condition
// variable. It generalizes Nomad's fixed, ACL-filtered Event type to an
// unfiltered, single-record-type Stream[T], per this package's spec.
package stream

import (
	"sync"

	metrics "github.com/hashicorp/go-metrics"

	"github.com/hashicorp/go-hclog"
)

// Stream owns a Log[T], accepts publishes, and fans out to active
// Cursors. A Stream's name is informational only (spec.md §3).
type Stream[T any] struct {
	name   string
	logger hclog.Logger
	clock  Clock
	sink   metrics.MetricSink

	log *Log[T]

	mu             sync.Mutex
	publishedCount uint64
	cursors        map[*cursor[T]]struct{}
	closed         bool
}

// Option configures a Stream at construction time.
type Option[T any] func(*Stream[T])

// WithLogger attaches an hclog.Logger. The default is a no-op logger,
// matching nomad/stream/event_publisher.go's logger field.
func WithLogger[T any](l hclog.Logger) Option[T] {
	return func(s *Stream[T]) { s.logger = l }
}

// WithClock overrides the "now in milliseconds" function used to stamp
// appended_at. Tests use this to inject a fixed or steppable clock, the
// Go rendition of the source's mocked BRICKS_MOCK_TIME.
func WithClock[T any](c Clock) Option[T] {
	return func(s *Stream[T]) { s.clock = c }
}

// WithMetrics attaches a go-metrics sink that receives publish counts
// and active-cursor gauges; no cursor-lag metric is emitted. Metrics are not part of
// spec.md's Non-goals; they're carried as ambient instrumentation the
// way the rest of the example pack wires observability into anything
// long-running.
func WithMetrics[T any](sink metrics.MetricSink) Option[T] {
	return func(s *Stream[T]) { s.sink = sink }
}

// New creates a Stream ready to Publish to and Subscribe against.
func New[T any](name string, opts ...Option[T]) *Stream[T] {
	s := &Stream[T]{
		name:    name,
		logger:  hclog.NewNullLogger(),
		clock:   defaultClock,
		log:     newLog[T](),
		cursors: make(map[*cursor[T]]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the Stream's informational name.
func (s *Stream[T]) Name() string { return s.name }

// ReadEntry returns the full LogEntry at index, including the
// Log-assigned appended_at that the plain Subscriber.Entry callback
// does not carry. HTTPBridge uses this as the fallback timestamp
// source for its recent= filter when a record does not implement
// Timestamped.
func (s *Stream[T]) ReadEntry(index uint64) LogEntry[T] {
	return s.log.Read(index)
}

// Size returns the number of records appended so far.
func (s *Stream[T]) Size() uint64 { return s.log.Size() }

// Publish appends record to the Log and wakes all live Cursors. The
// assigned index is returned. Publish is non-blocking except for the
// microsecond-scale append critical section (spec.md §5).
func (s *Stream[T]) Publish(record T) uint64 {
	s.mu.Lock()
	entry := s.log.Append(record, s.clock())
	s.publishedCount++
	name := s.name
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.IncrCounterWithLabels([]string{"sherlock", "stream", "published"}, 1,
			[]metrics.Label{{Name: "stream", Value: name}})
	}
	s.logger.Trace("published record", "stream", name, "index", entry.Index)
	return entry.Index
}

// Emplace constructs a record via ctor and Publishes it — the Go
// rendition of the source's variadic-constructor-forwarding Emplace,
// since Go has no equivalent of perfect-forwarding a constructor's
// argument list.
func (s *Stream[T]) Emplace(ctor func() T) uint64 {
	return s.Publish(ctor())
}

// SyncSubscribe starts a Cursor that borrows sub. In the source's C++
// this distinguishes lifetime ownership from AsyncSubscribe (the
// caller guarantees the subscriber outlives the scope); in Go both
// forms behave identically because the garbage collector — not scope
// exit — owns memory lifetime. Both entry points are kept for fidelity
// to the spec's API surface; see SPEC_FULL.md §4.2.
func (s *Stream[T]) SyncSubscribe(sub Subscriber[T]) *SubscriptionScope {
	return s.subscribe(sub)
}

// AsyncSubscribe starts a Cursor that takes ownership of sub. See
// SyncSubscribe for why this is identical to SyncSubscribe in Go.
func (s *Stream[T]) AsyncSubscribe(sub Subscriber[T]) *SubscriptionScope {
	return s.subscribe(sub)
}

func (s *Stream[T]) subscribe(sub Subscriber[T]) *SubscriptionScope {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		panic("sherlock: Subscribe called on a closed Stream")
	}
	var c *cursor[T]
	c = newCursor(s.log, sub, func() { s.deregister(c) })
	s.cursors[c] = struct{}{}
	count := len(s.cursors)
	name := s.name
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.SetGaugeWithLabels([]string{"sherlock", "stream", "cursors"}, float32(count),
			[]metrics.Label{{Name: "stream", Value: name}})
	}

	go c.run()
	return newScope(c)
}

func (s *Stream[T]) deregister(c *cursor[T]) {
	s.mu.Lock()
	delete(s.cursors, c)
	count := len(s.cursors)
	name := s.name
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.SetGaugeWithLabels([]string{"sherlock", "stream", "cursors"}, float32(count),
			[]metrics.Label{{Name: "stream", Value: name}})
	}
}

// CursorCount returns the number of currently live Cursors. It exists
// for tests and metrics; application code should prefer Subscribe's
// own SubscriptionScope for lifecycle control.
func (s *Stream[T]) CursorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cursors)
}

// Close stops the Stream from accepting new Subscribe calls, signals
// every live Cursor to stop, and blocks until they have all exited.
// Go has no destructor to hang "the Stream is going away" off of, so
// Close is the explicit trigger for what the source's Stream does
// implicitly when it goes out of scope: spec.md §3 requires that a
// Stream never be torn down while a non-detached Cursor is still
// attached, which Close enforces by waiting.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cursors := make([]*cursor[T], 0, len(s.cursors))
	for c := range s.cursors {
		cursors = append(cursors, c)
	}
	s.mu.Unlock()

	for _, c := range cursors {
		c.requestStop()
	}
	for _, c := range cursors {
		<-c.done()
	}
}

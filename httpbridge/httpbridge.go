// Package httpbridge exposes a stream.Stream over HTTP as a long-lived,
// chunked, newline-delimited-JSON response, per spec.md §4.5 and §6.
//
// The handler shape is grounded on
// luxury-yacht-app/backend/refresh/eventstream/handler.go: an
// http.Flusher capability check up front, a select against
// r.Context().Done() for disconnect, and "a write error ends the
// request" rather than any retry logic. What is new relative to that
// teacher handler is the delivery mechanism itself: instead of a
// hand-rolled fan-out channel/Manager, delivery is driven by a
// stream.Subscriber plugged directly into the stream package's
// Cursor, so HTTPBridge carries none of its own sequencing logic.
package httpbridge

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"

	"github.com/dkorolev/Sherlock/stream"
)

// entryEnvelope is the wire shape from spec.md §6: one JSON object per
// delivered record, wrapped under the key "entry", one per line.
type entryEnvelope[T any] struct {
	Entry T `json:"entry"`
}

// Bridge adapts a Stream's records onto an http.ResponseWriter. It
// implements stream.Subscriber[T] but never stream.Terminator, so a
// Join stops its Cursor at once. A client disconnect seen while records
// are flowing is a write failure (or the request context being done),
// either of which Entry converts into a self-stop; a Cursor blocked
// waiting for records is stopped by serveHTTP's disconnect watcher,
// which calls Join.
type Bridge[T any] struct {
	w       http.ResponseWriter
	flusher http.Flusher
	enc     *json.Encoder
	s       *stream.Stream[T]
	logger  hclog.Logger

	hasCap    bool
	cap       uint64
	delivered uint64

	// nMode implements n=K: a tail window, not a synonym for cap. Per
	// the original SubscribeToStreamViaHTTP test (test.cc) — ?n=1
	// against four already-published records returns only the last one
	// — n blocks (via the Cursor's ordinary wait) until K records exist,
	// then flushes exactly the most recent K and stops; ?n={>published}
	// blocks forever, since the tail window never fills. ring holds the
	// last (at most) nVal records seen so far, in order.
	nMode bool
	nVal  uint64
	ring  []T

	skipping bool
	cutoffMs int64

	stopped <-chan struct{}
	failed  bool
}

func newBridge[T any](w http.ResponseWriter, s *stream.Stream[T], logger hclog.Logger, mode deliveryMode, hasRecent bool, cutoffMs int64, stopped <-chan struct{}) *Bridge[T] {
	b := &Bridge[T]{
		w:        w,
		s:        s,
		logger:   logger,
		hasCap:   mode.kind == modeCap,
		cap:      mode.value,
		nMode:    mode.kind == modeN,
		nVal:     mode.value,
		skipping: hasRecent,
		cutoffMs: cutoffMs,
		stopped:  stopped,
		enc:      json.NewEncoder(w),
	}
	if mode.kind == modeN && mode.value > 0 {
		b.ring = make([]T, 0, mode.value)
	}
	if f, ok := w.(http.Flusher); ok {
		b.flusher = f
	}
	return b
}

// timestampOf prefers the record's own Timestamped capability; a
// record that doesn't implement it is timestamped by the Log's
// server-assigned appended_at instead.
func (b *Bridge[T]) timestampOf(record T, index uint64) int64 {
	if ts, ok := any(record).(stream.Timestamped); ok {
		return ts.ExtractTimestamp()
	}
	return b.s.ReadEntry(index).AppendedAt
}

// Entry implements stream.Subscriber[T].
func (b *Bridge[T]) Entry(record T, index, total uint64) bool {
	select {
	case <-b.stopped:
		return false
	default:
	}

	if b.nMode {
		return b.entryTail(record, index, total)
	}

	if b.skipping {
		if b.timestampOf(record, index) < b.cutoffMs {
			return true
		}
		b.skipping = false
	}

	if err := b.writeRecord(record); err != nil {
		return false
	}

	if b.hasCap && b.delivered >= b.cap {
		return false
	}
	return true
}

// entryTail implements n=K: buffer the last K records seen so far
// without writing anything, and only once index is the last one in the
// current batch (index+1 == total) — i.e. the Cursor has caught up to
// the Stream as last observed — check whether the tail window is full.
// If so, flush it and self-stop; otherwise keep waiting for more
// records, exactly like the "?n={>published}" blocks forever case in
// the original SubscribeToStreamViaHTTP test.
func (b *Bridge[T]) entryTail(record T, index, total uint64) bool {
	if b.nVal == 0 {
		return false
	}
	b.ring = append(b.ring, record)
	if uint64(len(b.ring)) > b.nVal {
		b.ring = b.ring[1:]
	}
	if index+1 != total || uint64(len(b.ring)) < b.nVal {
		return true
	}
	for _, rec := range b.ring {
		if err := b.writeRecord(rec); err != nil {
			return false
		}
	}
	return false
}

// writeRecord encodes one record as a newline-delimited JSON chunk and
// flushes it. A write failure marks the Bridge failed and is reported
// to the caller as an error so Entry/entryTail can self-stop.
func (b *Bridge[T]) writeRecord(record T) error {
	if err := b.enc.Encode(entryEnvelope[T]{Entry: record}); err != nil {
		b.failed = true
		b.logger.Debug("httpbridge: write failed, self-stopping", "error", err)
		return err
	}
	if b.flusher != nil {
		b.flusher.Flush()
	}
	b.delivered++
	return nil
}

var _ stream.Subscriber[int] = (*Bridge[int])(nil)

// Register attaches s at path on router as a GET endpoint implementing
// spec.md §4.5/§6's HTTP fan-out surface.
func Register[T any](router *mux.Router, path string, s *stream.Stream[T], opts ...Option) {
	cfg := defaultOptions()
	for _, o := range opts {
		o(&cfg)
	}
	router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		serveHTTP(w, r, s, cfg)
	}).Methods(http.MethodGet)
}

func serveHTTP[T any](w http.ResponseWriter, r *http.Request, s *stream.Stream[T], cfg options) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	mode, err := parseDeliveryMode(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hasRecent, cutoffMs, err := parseRecentFilter(r, cfg.clock)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	bridge := newBridge(w, s, cfg.logger, mode, hasRecent, cutoffMs, r.Context().Done())
	scope := s.SyncSubscribe(bridge)

	// The handler itself must not request a stop: Join does both
	// ("signal stop" and "wait"), and since Bridge is not a Terminator
	// the Cursor would agree immediately and exit after draining only
	// whatever was already in the Log — breaking both the "stream
	// indefinitely with no filter" default and n's "block until K
	// records exist". The handler only waits for the Cursor to finish
	// on its own (self-stop from cap/n, or the disconnect watcher below
	// actually requesting one). A disconnect observed with no data in
	// flight never reaches Bridge.Entry (the Cursor is blocked waiting
	// for new records), so it is watched here, and this goroutine is the
	// only caller of Join.
	go func() {
		<-r.Context().Done()
		scope.Join()
	}()
	scope.Wait()
	scope.Detach()
}

type modeKind int

const (
	modeNone modeKind = iota
	modeCap
	modeN
)

// deliveryMode is the result of parsing n/cap: they are NOT synonyms.
// cap truncates from the head (deliver the first C records, self-stop
// once C are sent); n is a tail window (block until K records exist,
// deliver only the most recent K, then stop) — see the
// SubscribeToStreamViaHTTP scenario in test.cc, where ?n=1 against four
// already-published records returns only the last one. n takes
// precedence if both are given, since the original test never combines
// them and the spec names n a standalone filter.
type deliveryMode struct {
	kind  modeKind
	value uint64
}

func parseDeliveryMode(r *http.Request) (deliveryMode, error) {
	q := r.URL.Query()
	if raw := q.Get("n"); raw != "" {
		v, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil {
			return deliveryMode{}, errInvalidParam("n")
		}
		return deliveryMode{kind: modeN, value: v}, nil
	}
	if raw := q.Get("cap"); raw != "" {
		v, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil {
			return deliveryMode{}, errInvalidParam("cap")
		}
		return deliveryMode{kind: modeCap, value: v}, nil
	}
	return deliveryMode{kind: modeNone}, nil
}

func parseRecentFilter(r *http.Request, clock func() int64) (hasRecent bool, cutoffMs int64, err error) {
	raw := r.URL.Query().Get("recent")
	if raw == "" {
		return false, 0, nil
	}
	v, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil {
		return false, 0, errInvalidParam("recent")
	}
	return true, clock() - v, nil
}

func errInvalidParam(name string) error {
	return &invalidParamError{name: name}
}

type invalidParamError struct{ name string }

func (e *invalidParamError) Error() string { return "httpbridge: invalid " + e.name + " parameter" }

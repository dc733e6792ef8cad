package httpbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkorolev/Sherlock/stream"
)

type numberedRecord struct {
	Value int   `json:"value"`
	TsMs  int64 `json:"ts_ms"`
}

func (r numberedRecord) ExtractTimestamp() int64 { return r.TsMs }

var _ stream.Timestamped = numberedRecord{}

func decodeEntries(t *testing.T, body string) []int {
	t.Helper()
	var out []int
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		var env entryEnvelope[numberedRecord]
		require.NoError(t, json.Unmarshal([]byte(line), &env))
		out = append(out, env.Entry.Value)
	}
	return out
}

func newRouterWithStream(t *testing.T, s *stream.Stream[numberedRecord], opts ...Option) *mux.Router {
	t.Helper()
	router := mux.NewRouter()
	Register(router, "/stream", s, opts...)
	return router
}

// Scenario 5 (spec.md §8): cap bounds the number of records delivered.
func TestHTTPBridgeCapLimitsDelivery(t *testing.T) {
	s := stream.New[numberedRecord]("http-cap")
	for i := 1; i <= 5; i++ {
		s.Publish(numberedRecord{Value: i})
	}

	router := newRouterWithStream(t, s)
	req := httptest.NewRequest(http.MethodGet, "/stream?cap=3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, []int{1, 2, 3}, decodeEntries(t, rec.Body.String()))
}

// n is a tail window, not a synonym for cap: per the original
// SubscribeToStreamViaHTTP scenario (test.cc), ?n=K against already-
// published records returns only the most recent K of them.
func TestHTTPBridgeNReturnsTailWindow(t *testing.T) {
	s := stream.New[numberedRecord]("http-n")
	for i := 1; i <= 5; i++ {
		s.Publish(numberedRecord{Value: i})
	}

	router := newRouterWithStream(t, s)
	req := httptest.NewRequest(http.MethodGet, "/stream?n=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, []int{4, 5}, decodeEntries(t, rec.Body.String()))
}

// n=1 against four already-published records returns only the last
// one (the scenario 5 ?n=1 case).
func TestHTTPBridgeNOneReturnsLastRecord(t *testing.T) {
	s := stream.New[numberedRecord]("http-n-one")
	now := int64(1_000_000)
	s.Publish(numberedRecord{Value: 1, TsMs: now - 40_000})
	s.Publish(numberedRecord{Value: 2, TsMs: now - 30_000})
	s.Publish(numberedRecord{Value: 3, TsMs: now - 20_000})
	s.Publish(numberedRecord{Value: 4, TsMs: now - 10_000})

	router := newRouterWithStream(t, s)
	req := httptest.NewRequest(http.MethodGet, "/stream?n=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, []int{4}, decodeEntries(t, rec.Body.String()))
}

// n blocks until enough records accumulate, then stops, instead of
// ever re-opening the tail window for records published afterward.
func TestHTTPBridgeNBlocksUntilFilled(t *testing.T) {
	s := stream.New[numberedRecord]("http-n-block")
	s.Publish(numberedRecord{Value: 1})

	router := newRouterWithStream(t, s)
	req := httptest.NewRequest(http.MethodGet, "/stream?n=2", nil)
	rec := httptest.NewRecorder()

	serveDone := make(chan struct{})
	go func() {
		router.ServeHTTP(rec, req)
		close(serveDone)
	}()

	select {
	case <-serveDone:
		t.Fatal("ServeHTTP returned before the tail window could fill")
	case <-time.After(50 * time.Millisecond):
	}

	s.Publish(numberedRecord{Value: 2})

	select {
	case <-serveDone:
	case <-time.After(time.Second):
		t.Fatal("ServeHTTP did not return once the tail window filled")
	}
	assert.Equal(t, []int{1, 2}, decodeEntries(t, rec.Body.String()))
}

// recent skips everything older than the window, then delivers the
// rest unfiltered.
func TestHTTPBridgeRecentSkipsOldRecords(t *testing.T) {
	s := stream.New[numberedRecord]("http-recent")
	now := int64(1_000_000)
	s.Publish(numberedRecord{Value: 1, TsMs: now - 10_000})
	s.Publish(numberedRecord{Value: 2, TsMs: now - 6_000})
	s.Publish(numberedRecord{Value: 3, TsMs: now - 1_000})

	router := newRouterWithStream(t, s, WithClock(func() int64 { return now }))
	req := httptest.NewRequest(http.MethodGet, "/stream?recent=7000&cap=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, []int{2, 3}, decodeEntries(t, rec.Body.String()))
}

// [ADD] scenario 7: a client disconnect (request context canceled)
// while the Cursor is blocked waiting for more data must stop it
// promptly rather than leaking it forever.
func TestHTTPBridgeClientDisconnectStopsCursor(t *testing.T) {
	s := stream.New[numberedRecord]("http-disconnect")
	s.Publish(numberedRecord{Value: 1})

	router := newRouterWithStream(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	serveDone := make(chan struct{})
	go func() {
		router.ServeHTTP(rec, req)
		close(serveDone)
	}()

	require.Eventually(t, func() bool { return s.CursorCount() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-serveDone:
	case <-time.After(time.Second):
		t.Fatal("ServeHTTP did not return after client disconnect")
	}
	assert.Equal(t, []int{1}, decodeEntries(t, rec.Body.String()))
	require.Eventually(t, func() bool { return s.CursorCount() == 0 }, time.Second, time.Millisecond)
}

func TestHTTPBridgeInvalidQueryParamRejected(t *testing.T) {
	s := stream.New[numberedRecord]("http-invalid")
	router := newRouterWithStream(t, s)
	req := httptest.NewRequest(http.MethodGet, "/stream?cap=notanumber", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package kv

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intKey int

type kvEntry struct {
	K intKey
	V float64
}

func (e kvEntry) Key() intKey { return e.K }

func spinUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

// aggregateListener is the Go rendition of yoda/test.cc's
// KeyValueAggregateListener: it records every delivered entry as
// "key=value.2f", comma-joined, appending "DONE" once Terminate fires.
type aggregateListener struct {
	mu      sync.Mutex
	seen    int
	results []string
	max     int
}

func (l *aggregateListener) Entry(record kvEntry, index, total uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, fmt.Sprintf("%d=%.2f", record.K, record.V))
	l.seen++
	return l.seen < l.max
}

func (l *aggregateListener) Terminate() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, "DONE")
	return true
}

func (l *aggregateListener) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.results, ",")
}

// Scenario 6 (spec.md §8), ported from yoda/test.cc's
// NonPolymorphicKeyValueStorage.
func TestNonPolymorphicKeyValueStorage(t *testing.T) {
	api := New[intKey, kvEntry]("non_polymorphic_yoda")

	api.UnsafeStream().Emplace(func() kvEntry { return kvEntry{K: 2, V: 0.5} })
	spinUntil(t, time.Second, api.CaughtUp)

	r1, err := api.AsyncGet(2).Get()
	require.NoError(t, err)
	assert.Equal(t, 0.5, r1.V)

	r2, err := api.Get(2)
	require.NoError(t, err)
	assert.Equal(t, 0.5, r2.V)

	foundCh := make(chan kvEntry, 1)
	api.AsyncGetWithCallbacks(2,
		func(v kvEntry) { foundCh <- v },
		func(intKey) { t.Fatal("key 2 unexpectedly not found") },
	)
	select {
	case v := <-foundCh:
		assert.Equal(t, 0.5, v.V)
	case <-time.After(time.Second):
		t.Fatal("AsyncGetWithCallbacks for key 2 never called back")
	}

	api.UnsafeStream().Emplace(func() kvEntry { return kvEntry{K: 3, V: 0.33} })
	api.UnsafeStream().Emplace(func() kvEntry { return kvEntry{K: 4, V: 0.25} })
	spinUntil(t, time.Second, func() bool { return api.EntriesSeen() >= 3 })

	v3, err := api.AsyncGet(3).Get()
	require.NoError(t, err)
	assert.Equal(t, 0.33, v3.V)

	v4, err := api.Get(4)
	require.NoError(t, err)
	assert.Equal(t, 0.25, v4.V)

	_, err = api.AsyncGet(5).Get()
	assert.IsType(t, &KeyNotFoundError[intKey]{}, err)
	_, err = api.Get(6)
	assert.IsType(t, &KeyNotFoundError[intKey]{}, err)

	notFoundCh := make(chan intKey, 1)
	api.AsyncGetWithCallbacks(7,
		func(kvEntry) { t.Fatal("key 7 unexpectedly found") },
		func(k intKey) { notFoundCh <- k },
	)
	select {
	case k := <-notFoundCh:
		assert.Equal(t, intKey(7), k)
	case <-time.After(time.Second):
		t.Fatal("AsyncGetWithCallbacks for key 7 never called back")
	}

	require.NoError(t, api.AsyncAdd(kvEntry{K: 5, V: 0.2}).Wait())
	require.NoError(t, api.Add(kvEntry{K: 6, V: 0.17}))

	addedCh := make(chan struct{}, 1)
	api.AsyncAddWithCallbacks(kvEntry{K: 7, V: 0.76},
		func() { addedCh <- struct{}{} },
		func() { t.Fatal("key 7 unexpectedly already exists") },
	)
	select {
	case <-addedCh:
	case <-time.After(time.Second):
		t.Fatal("AsyncAddWithCallbacks for key 7 never called back")
	}

	// Default policy rejects overwriting on Add.
	assert.IsType(t, &KeyAlreadyExistsError[intKey]{}, api.AsyncAdd(kvEntry{K: 5, V: 1.1}).Wait())
	assert.IsType(t, &KeyAlreadyExistsError[intKey]{}, api.Add(kvEntry{K: 6, V: 0.28}))

	alreadyExistsCh := make(chan struct{}, 1)
	api.AsyncAddWithCallbacks(kvEntry{K: 7, V: 0.0},
		func() { t.Fatal("key 7 unexpectedly added twice") },
		func() { alreadyExistsCh <- struct{}{} },
	)
	select {
	case <-alreadyExistsCh:
	case <-time.After(time.Second):
		t.Fatal("AsyncAddWithCallbacks already-exists callback never fired")
	}

	// Eventual consistency: these reads must not have to wait for the
	// materializer to replay what Add already wrote optimistically.
	v5, err := api.AsyncGet(5).Get()
	require.NoError(t, err)
	assert.Equal(t, 0.20, v5.V)
	v6, err := api.Get(6)
	require.NoError(t, err)
	assert.Equal(t, 0.17, v6.V)

	_, err = api.AsyncGet(8).Get()
	assert.Error(t, err)
	_, err = api.Get(9)
	assert.Error(t, err)

	listener := &aggregateListener{max: 6}
	api.Subscribe(listener).Join()
	assert.Equal(t, 6, listener.seen)
	assert.Equal(t, "2=0.50,3=0.33,4=0.25,5=0.20,6=0.17,7=0.76", listener.String())
}

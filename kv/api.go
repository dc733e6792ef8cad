package kv

import (
	"sync"

	"github.com/dkorolev/Sherlock/stream"
)

// API is KeyValueAPI from spec.md §4.6: a Stream[V] of Keyed records
// plus a materialized map[K]V kept current by a permanently-detached
// background Cursor. Add rejects collisions against the current
// materialized state; Get decides "not found" only once the
// materializer has caught up to the Stream size observed at call
// time, so a key that genuinely doesn't exist yet doesn't block
// forever.
type API[K comparable, V Keyed[K]] struct {
	s *stream.Stream[V]

	mu   sync.Mutex
	cond *sync.Cond
	data map[K]V
	seen uint64
}

// New constructs a KeyValueAPI backed by a freshly created Stream[V]
// named name.
func New[K comparable, V Keyed[K]](name string, opts ...stream.Option[V]) *API[K, V] {
	a := &API[K, V]{
		s:    stream.New[V](name, opts...),
		data: make(map[K]V),
	}
	a.cond = sync.NewCond(&a.mu)
	a.s.AsyncSubscribe(a).Detach()
	return a
}

// Entry implements stream.Subscriber[V]: it is the materializer. It
// never self-stops (always returns true) and, being Detach()-ed at
// construction, is never asked to Terminate either — it runs for the
// lifetime of the API.
func (a *API[K, V]) Entry(record V, index, total uint64) bool {
	a.mu.Lock()
	if _, exists := a.data[record.Key()]; !exists {
		a.data[record.Key()] = record
	}
	a.seen++
	a.cond.Broadcast()
	a.mu.Unlock()
	return true
}

// UnsafeStream exposes the underlying Stream directly, for callers
// that need to bypass Add's uniqueness policy (spec.md §4.6 names this
// as an explicit, intentional escape hatch, not an oversight).
func (a *API[K, V]) UnsafeStream() *stream.Stream[V] {
	return a.s
}

// Subscribe passes through to the underlying Stream, letting a
// KeyValueAPI be observed the same way a plain Stream is — every
// mutation to the materialized view is also a stream record, so
// nothing is visible through Get/Add that isn't also visible here.
func (a *API[K, V]) Subscribe(sub stream.Subscriber[V]) *stream.SubscriptionScope {
	return a.s.SyncSubscribe(sub)
}

// EntriesSeen returns the number of records the materializer has
// applied so far.
func (a *API[K, V]) EntriesSeen() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seen
}

// CaughtUp reports whether the materializer has applied every record
// published to the Stream as of this call.
func (a *API[K, V]) CaughtUp() bool {
	target := a.s.Size()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seen >= target
}

// Get blocks until key is resolvable: present in the materialized view
// (fast path, possibly before the corresponding stream record has even
// been replayed — see Add), or the materializer has caught up to the
// Stream size observed when Get was called, in which case a still-
// absent key resolves to KeyNotFoundError.
func (a *API[K, V]) Get(key K) (V, error) {
	return a.blockingGet(key)
}

// AsyncGet returns a Future resolved the same way as Get, on its own
// goroutine.
func (a *API[K, V]) AsyncGet(key K) *Future[V] {
	fut, resolve := newFuture[V]()
	go func() {
		v, err := a.blockingGet(key)
		resolve(v, err)
	}()
	return fut
}

// AsyncGetWithCallbacks is the callback-flavored entry point: exactly
// one of found or notFound is invoked, on its own goroutine.
func (a *API[K, V]) AsyncGetWithCallbacks(key K, found func(V), notFound func(K)) {
	go func() {
		v, err := a.blockingGet(key)
		if err != nil {
			notFound(key)
			return
		}
		found(v)
	}()
}

func (a *API[K, V]) blockingGet(key K) (V, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.data[key]; ok {
		return v, nil
	}
	target := a.s.Size()
	for a.seen < target {
		a.cond.Wait()
	}
	if v, ok := a.data[key]; ok {
		return v, nil
	}
	var zero V
	return zero, &KeyNotFoundError[K]{Key: key}
}

// Add materializes value immediately (so a subsequent Get sees it
// without waiting for the round trip through the Stream) and publishes
// it, rejecting a key already present in the materialized view.
func (a *API[K, V]) Add(value V) error {
	return a.AsyncAdd(value).Wait()
}

// AsyncAdd is Add's future-returning form.
func (a *API[K, V]) AsyncAdd(value V) *Future[struct{}] {
	fut, resolve := newFuture[struct{}]()
	go func() {
		resolve(struct{}{}, a.tryAdd(value))
	}()
	return fut
}

// AsyncAddWithCallbacks is Add's callback-flavored form: exactly one of
// added or alreadyExists is invoked, on its own goroutine.
func (a *API[K, V]) AsyncAddWithCallbacks(value V, added func(), alreadyExists func()) {
	go func() {
		if err := a.tryAdd(value); err != nil {
			alreadyExists()
			return
		}
		added()
	}()
}

func (a *API[K, V]) tryAdd(value V) error {
	key := value.Key()
	a.mu.Lock()
	if _, exists := a.data[key]; exists {
		a.mu.Unlock()
		return &KeyAlreadyExistsError[K]{Key: key}
	}
	a.data[key] = value
	a.cond.Broadcast()
	a.mu.Unlock()

	a.s.Publish(value)
	return nil
}

package stream

import (
	"runtime"
	"sync"
)

// stopWaiter is implemented by cursor[T] for any T, letting
// SubscriptionScope itself stay non-generic — a SubscriptionScope
// doesn't need to know the record type it was issued for.
type stopWaiter interface {
	requestStop()
	done() <-chan struct{}
}

// SubscriptionScope is the handle returned by Stream.SyncSubscribe and
// Stream.AsyncSubscribe. It owns exactly one Cursor and controls its
// lifetime: a joinable scope (the default, and the only kind this
// package produces) must be resolved with Join or Detach before it is
// dropped, or the implementation raises ErrScopeDroppedWithoutJoinOrDetach.
//
// Go has no destructors and no move semantics, so "move-only handle"
// is approximated rather than enforced by the type system: Move
// transfers the underlying Cursor to a new SubscriptionScope and
// leaves the receiver inert (a further Join/Detach/Move on it is a
// no-op, matching the source's "no-op on destruction" for a
// moved-from scope). The primary enforcement of "must Join or Detach"
// is a runtime.SetFinalizer backstop: finalizers are not guaranteed to
// run promptly, so callers are expected to resolve every scope
// explicitly rather than rely on garbage collection timing.
type SubscriptionScope struct {
	mu       sync.Mutex
	ctrl     stopWaiter
	doneCh   <-chan struct{}
	resolved bool
}

func newScope(ctrl stopWaiter) *SubscriptionScope {
	s := &SubscriptionScope{ctrl: ctrl, doneCh: ctrl.done()}
	runtime.SetFinalizer(s, scopeFinalizer)
	return s
}

// closedCh is shared by every inert (moved-from or never-subscribed)
// SubscriptionScope: there is nothing to wait for, so Join/Detach on
// one return immediately.
var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func scopeFinalizer(s *SubscriptionScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.resolved && s.ctrl != nil {
		panic(ErrScopeDroppedWithoutJoinOrDetach)
	}
}

// Join signals the Cursor to stop and blocks until it has exited. If
// the Subscriber implements Terminator, Terminate is invoked before
// exit; a false return keeps the Cursor running (it will only stop via
// the Subscriber's own Entry returning false, since nothing asks it to
// stop a second time), and Join still returns once the Cursor has
// actually exited by whatever means.
//
// Join on a moved-from scope is a no-op. Join on an already-resolved
// scope requests no stop but still blocks until the Cursor has exited.
// Join may therefore safely be called concurrently with another Join
// (or Wait, or Detach) on the same scope: only a Join that resolves the
// scope requests the stop, but every Join caller blocks until the
// Cursor has genuinely exited, not just until the resolve race is
// decided.
func (s *SubscriptionScope) Join() {
	if ctrl, ok := s.resolve(); ok {
		ctrl.requestStop()
	}
	<-s.doneCh
}

// Wait blocks until the underlying Cursor has exited — by self-stop,
// by someone else's Join, or (for a detached scope) never — without
// itself requesting a stop and without resolving the scope. Unlike
// Join, Wait does not satisfy the must-Join-or-Detach contract: a
// caller that only calls Wait must still Join or Detach afterward (a
// Detach is enough once the Cursor has already exited). This is for
// a caller that needs to block on completion triggered by someone
// else — for example httpbridge's request handler, which must not be
// the one requesting the stop, leaving a dedicated disconnect-watcher
// goroutine as the only caller of Join.
//
// Wait on a moved-from scope returns immediately; on a Joined or
// Detached scope it still waits for the Cursor to exit.
func (s *SubscriptionScope) Wait() {
	<-s.doneCh
}

// Detach renounces ownership of the Cursor: it keeps running until its
// Subscriber's own Entry returns false or the Stream is Closed.
// Detaching never invokes Terminate; Stream.Close does stop a detached
// Cursor like any other, asking its Subscriber to Terminate if it has
// that capability.
//
// Detach on an already-resolved or moved-from scope is a no-op.
func (s *SubscriptionScope) Detach() {
	s.resolve()
}

// Move transfers ownership of the underlying Cursor to a newly
// returned SubscriptionScope and renders the receiver inert. It is the
// Go rendition of the source's move constructor / move assignment.
func (s *SubscriptionScope) Move() *SubscriptionScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved || s.ctrl == nil {
		return &SubscriptionScope{resolved: true, doneCh: closedCh}
	}
	moved := newScope(s.ctrl)
	s.ctrl = nil
	s.doneCh = closedCh
	s.resolved = true
	runtime.SetFinalizer(s, nil)
	return moved
}

// resolve marks the scope resolved exactly once and returns the
// controller to act on, or (nil, false) if the scope was already
// resolved or moved-from.
func (s *SubscriptionScope) resolve() (stopWaiter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved || s.ctrl == nil {
		return nil, false
	}
	s.resolved = true
	ctrl := s.ctrl
	runtime.SetFinalizer(s, nil)
	return ctrl, true
}

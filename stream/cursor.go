package stream

import "sync"

// cursor is the per-subscription worker described by spec.md §4.3. It
// runs on its own goroutine (Go's rendition of "a dedicated execution
// context"), pulls from the owning Stream's Log starting at index 0,
// and feeds its Subscriber until self-stop, external Join, or the
// owning Stream is Closed.
//
// The run loop's shape is new relative to the teacher: nomad's
// Subscription.Next (nomad/stream/subscription.go) is pull-based — the
// caller drives iteration by calling Next() in its own loop. This spec
// requires push delivery: the Cursor itself must call
// Subscriber.Entry. What is carried over unchanged is the
// cancellation primitive — a stop channel checked in a select
// alongside the data-ready channel, exactly as nomad's bufferItem.Next
// selects on forceClose alongside its link channel.
type cursor[T any] struct {
	sub       Subscriber[T]
	log       *Log[T]
	nextIndex uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	exitedCh chan struct{}

	onExit func()
}

func newCursor[T any](log *Log[T], sub Subscriber[T], onExit func()) *cursor[T] {
	return &cursor[T]{
		sub:      sub,
		log:      log,
		stopCh:   make(chan struct{}),
		exitedCh: make(chan struct{}),
		onExit:   onExit,
	}
}

// requestStop signals the cursor to stop at its next opportunity. It is
// idempotent: only the first call has any effect.
func (c *cursor[T]) requestStop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// done returns the channel closed once the cursor goroutine has
// actually exited, regardless of how it stopped (self-stop, Terminate
// agreeing, or Close). It is read through the stopWaiter interface so
// that SubscriptionScope can wait for real completion even when a
// second, racing caller "wins" the one-time requestStop.
func (c *cursor[T]) done() <-chan struct{} { return c.exitedCh }

// run is the Cursor loop from spec.md §4.3:
//  1. Observe total = Size(). Deliver every entry with index < total,
//     in order, invoking Subscriber.Entry for each. A false return is
//     self-stop: exit without invoking Terminate.
//  2. Once the currently-available batch is drained, check for a
//     pending stop request. If present, invoke the Terminate policy
//     (terminatePolicy) and exit if it agrees, or keep running if a
//     Terminator refuses.
//  3. Otherwise wait for the Log's wake signal (or a stop request)
//     before looping again.
func (c *cursor[T]) run() {
	defer close(c.exitedCh)
	defer func() {
		if c.onExit != nil {
			c.onExit()
		}
	}()

	// stopCh is read through a local variable so it can be nil'd out
	// once a Terminator has refused to stop: a nil channel never fires
	// in a select, which is exactly "don't re-attempt Terminate until
	// asked to stop again" — and nobody asks again in this design, so
	// the cursor simply keeps delivering until it self-stops.
	stopCh := (<-chan struct{})(c.stopCh)

	for {
		size, ready := c.log.waitState()
		for c.nextIndex < size {
			entry := c.log.Read(c.nextIndex)
			keepGoing := c.sub.Entry(entry.Record, entry.Index, size)
			c.nextIndex++
			if !keepGoing {
				return
			}
		}

		select {
		case <-ready:
			continue
		case <-stopCh:
			if c.terminate() {
				return
			}
			stopCh = nil
		}
	}
}

// terminate applies the Terminate policy from spec.md §4.4: a
// Subscriber with no Terminate capability stops immediately; one that
// has it is asked, and its answer is authoritative.
func (c *cursor[T]) terminate() bool {
	t, ok := c.sub.(Terminator)
	if !ok {
		return true
	}
	return t.Terminate()
}

package stream

// Subscriber is implemented by a user-supplied record handler. Entry is
// the only mandatory capability; Terminator is an optional second
// capability detected with a type assertion rather than a discriminator
// field, following the spec's "tagged-variant or small capability
// discriminator" guidance (design note §9) the Go-idiomatic way.
type Subscriber[T any] interface {
	// Entry is invoked once per delivered record, in strictly
	// increasing index order starting at 0. total is the Size the
	// Cursor observed when this delivery batch began; it may be stale
	// (larger by the time Entry runs) but is never ahead of reality.
	// Returning false tells the Cursor to stop immediately after this
	// record (self-stop); Terminate is not invoked in that case.
	Entry(record T, index uint64, total uint64) bool
}

// Terminator is the optional second capability of a Subscriber. A
// Subscriber that implements it is asked, on external Join or
// Stream.Close, whether it is ready to stop. Returning false keeps the
// Cursor delivering; a Cursor's stop request is one-shot, so Terminate
// is not asked again and the Cursor runs until the Subscriber's own
// Entry returns false.
type Terminator interface {
	Terminate() bool
}

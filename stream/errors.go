package stream

import "errors"

var (
	// ErrScopeDroppedWithoutJoinOrDetach is the panic value raised when a
	// joinable SubscriptionScope is finalized by the garbage collector
	// without an explicit Join or Detach call having resolved it first.
	ErrScopeDroppedWithoutJoinOrDetach = errors.New("sherlock: subscription scope dropped without Join or Detach")

	// ErrIndexOutOfRange is the panic value raised by Log.Read when the
	// requested index is not less than Size(). Reading an index that
	// hasn't been appended yet is a programmer error, not a data error.
	ErrIndexOutOfRange = errors.New("sherlock: log index out of range")
)

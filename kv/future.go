package kv

// Future is a minimal channel-based stand-in for std::future, used by
// AsyncGet/AsyncAdd's "future expanded syntax" entry points (spec.md
// §4.6). It is single-resolution and single-receiver, matching the
// original API's usage: exactly one Get/Wait call drains it.
type Future[T any] struct {
	ch chan futureResult[T]
}

type futureResult[T any] struct {
	val T
	err error
}

func newFuture[T any]() (*Future[T], func(T, error)) {
	ch := make(chan futureResult[T], 1)
	resolve := func(v T, err error) { ch <- futureResult[T]{val: v, err: err} }
	return &Future[T]{ch: ch}, resolve
}

// Get blocks until the future is resolved and returns its value and
// error.
func (f *Future[T]) Get() (T, error) {
	r := <-f.ch
	return r.val, r.err
}

// Wait blocks until the future is resolved and returns only its error,
// for callers that don't need the value (the Go rendition of
// std::future<void>::wait()).
func (f *Future[T]) Wait() error {
	_, err := f.Get()
	return err
}

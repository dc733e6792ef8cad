// Package kv implements KeyValueAPI, a materialized-view layer over a
// stream.Stream: every published record is both durably appended to
// the underlying Stream and reflected into an in-memory map, kept
// current by a dedicated, detached background Cursor. Grounded on
// original_source/yoda's API<ENTRY> (see yoda/test.cc's
// NonPolymorphicKeyValueStorage scenario) and, for the Go rendition of
// its internal subscriber/materializer split, on the same
// Stream/Cursor primitives the stream package already exposes.
package kv

// Keyed is implemented by a record type to make it usable with
// API[K, V]: it must know its own key, the way yoda's ENTRY template
// parameter requires a key() accessor.
type Keyed[K comparable] interface {
	Key() K
}

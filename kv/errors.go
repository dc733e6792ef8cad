package kv

import "fmt"

// KeyNotFoundError is returned by Get/AsyncGet when a key is not (yet,
// and never will be, given the stream size observed at call time)
// present in the materialized view. The Go rendition of yoda's
// KeyNotFoundCoverException.
type KeyNotFoundError[K comparable] struct {
	Key K
}

func (e *KeyNotFoundError[K]) Error() string {
	return fmt.Sprintf("kv: key not found: %v", e.Key)
}

// KeyAlreadyExistsError is returned by Add/AsyncAdd when the key is
// already present. The Go rendition of yoda's
// KeyAlreadyExistsCoverException; this implementation's only Add
// policy is "reject on collision" (spec.md §4.6 names no overwrite
// policy option).
type KeyAlreadyExistsError[K comparable] struct {
	Key K
}

func (e *KeyAlreadyExistsError[K]) Error() string {
	return fmt.Sprintf("kv: key already exists: %v", e.Key)
}

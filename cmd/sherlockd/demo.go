package main

// Event is the demo record type sherlockd streams over HTTP: a
// numbered, timestamped message. It implements stream.Timestamped so
// HTTPBridge's recent= filter uses Event's own AtMs rather than the
// Log's server-assigned appended_at.
type Event struct {
	Seq     uint64 `json:"seq"`
	Message string `json:"message"`
	AtMs    int64  `json:"at_ms"`
}

// ExtractTimestamp implements stream.Timestamped.
func (e Event) ExtractTimestamp() int64 { return e.AtMs }

// Counter is the demo KeyValueAPI record: a named, independently
// addable/gettable counter value.
type Counter struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Key implements kv.Keyed[string].
func (c Counter) Key() string { return c.Name }

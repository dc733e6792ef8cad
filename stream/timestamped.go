package stream

// Timestamped is an optional capability a record type may implement to
// expose its own logical timestamp (milliseconds since epoch),
// distinct from the Log's server-assigned appended_at. HTTPBridge's
// recent= filter prefers this when present, per spec.md §4.5, and
// falls back to appended_at otherwise.
type Timestamped interface {
	ExtractTimestamp() int64
}

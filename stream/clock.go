package stream

import "time"

// Clock returns the current time in epoch milliseconds. Production code
// uses time.Now().UnixMilli(); tests inject a fixed or steppable
// function instead, the Go rendition of the source's mocked
// BRICKS_MOCK_TIME clock.
type Clock func() int64

func defaultClock() int64 {
	return time.Now().UnixMilli()
}

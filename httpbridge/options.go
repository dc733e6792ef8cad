package httpbridge

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

type options struct {
	clock  func() int64
	logger hclog.Logger
}

func defaultOptions() options {
	return options{
		clock:  func() int64 { return time.Now().UnixMilli() },
		logger: hclog.NewNullLogger(),
	}
}

// Option configures Register.
type Option func(*options)

// WithLogger attaches an hclog.Logger, matching the rest of this
// module's ambient logging.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the "now in milliseconds" function used to
// evaluate the recent= query parameter. Tests use this to inject a
// fixed clock.
func WithClock(c func() int64) Option {
	return func(o *options) { o.clock = c }
}

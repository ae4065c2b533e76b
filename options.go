package gputimer

import (
	"time"

	"github.com/gogpu/gputimer/internal/window"
)

// DefaultSampleWindow is the number of samples averaged per published value.
const DefaultSampleWindow = window.DefaultSize

// Option configures a Timer during creation.
// Use functional options to customize Timer behavior.
//
// Example:
//
//	// Per-pass timers created up front, averaged over 100 frames
//	timer, err := gputimer.NewTimer(dev,
//	    gputimer.WithPasses("shadow", "geometry", "lighting"),
//	    gputimer.WithSampleWindow(100),
//	)
type Option func(*options)

// options holds optional configuration for Timer creation.
type options struct {
	window      int
	passes      []string
	strict      bool
	clock       func() time.Time
	labelPrefix string
	onMapError  func(name string, err error)
}

// defaultOptions returns the default timer options.
func defaultOptions() options {
	return options{
		window:      DefaultSampleWindow,
		clock:       time.Now,
		labelPrefix: "gputimer",
	}
}

// WithSampleWindow sets how many samples are averaged before a new value
// is published. Non-positive values select DefaultSampleWindow.
func WithSampleWindow(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = DefaultSampleWindow
		}
		o.window = n
	}
}

// WithPasses creates GPU timers for the named passes when the Timer is
// constructed, instead of on first use.
func WithPasses(names ...string) Option {
	return func(o *options) {
		o.passes = append(o.passes, names...)
	}
}

// WithStrictPasses disables lazy creation of GPU timers. Requesting a
// descriptor for a name not registered via WithPasses returns
// ErrUnknownTimer.
func WithStrictPasses() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithClock replaces the wall clock used by CPU timers.
// Useful for simulated time in tests and replays.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithLabelPrefix sets the prefix of debug labels given to device resources.
func WithLabelPrefix(prefix string) Option {
	return func(o *options) {
		o.labelPrefix = prefix
	}
}

// WithMapErrorHandler registers a function called when a GPU readback
// fails. The failed sample is dropped either way; the handler only
// observes. It may run on the goroutine that completes device maps.
func WithMapErrorHandler(fn func(name string, err error)) Option {
	return func(o *options) {
		o.onMapError = fn
	}
}

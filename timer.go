package gputimer

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/gputimer/gpucore"
)

// Timer measures CPU and GPU cost of named sections of a render loop.
//
// CPU timers are wall-clock stopwatches driven by StartCPU/StopCPU. GPU
// timers wrap a timestamp query pair per pass and read results back
// asynchronously, so a published GPU average may lag the frames it covers
// by any number of frames.
//
// All methods except the read accessors are meant to be called from the
// render loop goroutine. CPUAverage, GPUAverage, Names and Snapshot are
// safe to call from any goroutine.
type Timer struct {
	mu sync.RWMutex

	dev    gpucore.Device
	hasGPU bool
	opts   options
	closed bool

	cpu map[string]*cpuSlot
	gpu map[string]*gpuSlot

	// gpuOrder lists GPU timers in creation order.
	gpuOrder []string
}

// NewTimer creates a Timer on dev.
//
// dev may be nil, in which case only CPU timing is available, exactly as
// for a device without timestamp query support.
func NewTimer(dev gpucore.Device, opts ...Option) (*Timer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	t := &Timer{
		dev:    dev,
		hasGPU: dev != nil && dev.SupportsTimestampQuery(),
		opts:   o,
		cpu:    make(map[string]*cpuSlot),
		gpu:    make(map[string]*gpuSlot),
	}

	if t.hasGPU {
		t.mu.Lock()
		for _, name := range o.passes {
			if _, ok := t.gpu[name]; ok {
				continue
			}
			if _, err := t.createGPUSlot(name); err != nil {
				t.mu.Unlock()
				_ = t.Close()
				return nil, err
			}
		}
		t.mu.Unlock()
	}

	Logger().Info("gputimer: timer created",
		slog.Bool("timestamp_query", t.hasGPU),
		slog.Int("window", o.window),
		slog.Int("passes", len(t.gpu)))
	return t, nil
}

// HasGPUTimer reports whether GPU timing is available.
func (t *Timer) HasGPUTimer() bool {
	return t.hasGPU
}

// SampleWindow returns the number of samples averaged per published value.
func (t *Timer) SampleWindow() int {
	return t.opts.window
}

// CPUAverage returns the last published CPU average of name in
// milliseconds, or 0 if none has been published.
func (t *Timer) CPUAverage(name string) float64 {
	t.mu.RLock()
	s := t.cpu[name]
	t.mu.RUnlock()
	if s == nil {
		return 0
	}
	return s.win.Average()
}

// GPUAverage returns the last published GPU average of name in
// milliseconds, or 0 if none has been published.
func (t *Timer) GPUAverage(name string) float64 {
	t.mu.RLock()
	s := t.gpu[name]
	t.mu.RUnlock()
	if s == nil {
		return 0
	}
	return s.win.Average()
}

// Names returns the names of all CPU and GPU timers, sorted.
func (t *Timer) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.cpu)+len(t.gpu))
	for name := range t.cpu {
		names = append(names, name)
	}
	for name := range t.gpu {
		if _, ok := t.cpu[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Reading is the published state of one timer name.
type Reading struct {
	Name string

	// CPU and GPU are published averages in milliseconds.
	CPU float64
	GPU float64

	// HasCPU and HasGPU report which banks know the name.
	HasCPU bool
	HasGPU bool

	// GPUDiscarded counts GPU windows dropped because of an invalid sample.
	GPUDiscarded uint64

	// GPUFailed counts GPU readbacks that failed on the device.
	GPUFailed uint64
}

// Snapshot returns the published state of every timer, sorted by name.
func (t *Timer) Snapshot() []Reading {
	names := t.Names()

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Reading, 0, len(names))
	for _, name := range names {
		r := Reading{Name: name}
		if s, ok := t.cpu[name]; ok {
			r.HasCPU = true
			r.CPU = s.win.Average()
		}
		if s, ok := t.gpu[name]; ok {
			r.HasGPU = true
			r.GPU = s.win.Average()
			r.GPUDiscarded = s.discarded.Load()
			r.GPUFailed = s.failed.Load()
		}
		out = append(out, r)
	}
	return out
}

// Close releases every GPU resource owned by the Timer. Pending readbacks
// are cancelled without producing samples. CPU timers keep working; GPU
// operations return ErrClosed. Close is idempotent.
func (t *Timer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	for _, name := range t.gpuOrder {
		t.gpu[name].query.Destroy()
	}
	return nil
}

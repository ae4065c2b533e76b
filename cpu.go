package gputimer

import (
	"fmt"
	"time"

	"github.com/gogpu/gputimer/internal/window"
)

// cpuSlot is a wall-clock stopwatch with its sample window.
// start and running are only touched by the render loop.
type cpuSlot struct {
	win     *window.Window
	start   time.Time
	running bool
}

// StartCPU starts the CPU timer name, creating it on first use.
// Starting a running timer restarts its measurement.
func (t *Timer) StartCPU(name string) {
	t.mu.RLock()
	s := t.cpu[name]
	t.mu.RUnlock()

	if s == nil {
		t.mu.Lock()
		if s = t.cpu[name]; s == nil {
			s = &cpuSlot{win: window.New(t.opts.window, 1)}
			t.cpu[name] = s
		}
		t.mu.Unlock()
	}

	s.start = t.opts.clock()
	s.running = true
}

// StopCPU stops the CPU timer name and adds the elapsed time to its
// window. It returns ErrTimerNotStarted if name is not running.
func (t *Timer) StopCPU(name string) error {
	now := t.opts.clock()

	t.mu.RLock()
	s := t.cpu[name]
	t.mu.RUnlock()

	if s == nil || !s.running {
		return fmt.Errorf("%w: %q", ErrTimerNotStarted, name)
	}
	s.running = false

	elapsed := now.Sub(s.start)
	if s.win.Add(float64(elapsed) / float64(time.Millisecond)) {
		Logger().Debug("gputimer: cpu average published",
			"timer", name, "ms", s.win.Average())
	}
	return nil
}

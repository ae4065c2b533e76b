package gputimer

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gputimer/backend/software"
	"github.com/gogpu/gputimer/gpucore"
)

// fakeClock is a manually advanced wall clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// passHook runs after a timed pass is recorded, to tamper with its
// timestamps.
type passHook func(t *testing.T, enc *software.Encoder, writes gpucore.TimestampWrites)

// injectSample overwrites both timestamps of a pass.
func injectSample(begin, end int64) passHook {
	return func(t *testing.T, enc *software.Encoder, writes gpucore.TimestampWrites) {
		t.Helper()
		if writes.IsNoop() {
			return
		}
		if err := enc.WriteTimestamp(writes.QuerySet, 0, begin); err != nil {
			t.Fatalf("WriteTimestamp() error = %v", err)
		}
		if err := enc.WriteTimestamp(writes.QuerySet, 1, end); err != nil {
			t.Fatalf("WriteTimestamp() error = %v", err)
		}
	}
}

// runFrame encodes one pass of cost per name, resolves, submits and starts
// readback. It does not poll the device.
func runFrame(t *testing.T, dev *software.Device, timer *Timer, cost time.Duration, hook passHook, names ...string) {
	t.Helper()

	enc := dev.CreateCommandEncoder("frame")
	for _, name := range names {
		writes, err := timer.GPUPassDescriptor(name, WriteBoth)
		if err != nil {
			t.Fatalf("GPUPassDescriptor(%q) error = %v", name, err)
		}
		if err := enc.RenderPass(name, writes, cost); err != nil {
			t.Fatalf("RenderPass(%q) error = %v", name, err)
		}
		if hook != nil {
			hook(t, enc, writes)
		}
	}
	if err := timer.BeforeSubmit(enc, names...); err != nil {
		t.Fatalf("BeforeSubmit() error = %v", err)
	}
	cb, err := enc.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if err := dev.Submit(cb); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := timer.AfterSubmit(names...); err != nil {
		t.Fatalf("AfterSubmit() error = %v", err)
	}
}

// gpuPending returns the in-progress accumulation of a GPU timer.
func gpuPending(t *testing.T, timer *Timer, name string) (float64, int) {
	t.Helper()
	timer.mu.RLock()
	s := timer.gpu[name]
	timer.mu.RUnlock()
	if s == nil {
		t.Fatalf("no gpu timer %q", name)
	}
	return s.win.Pending()
}

// cpuPending returns the in-progress accumulation of a CPU timer.
func cpuPending(t *testing.T, timer *Timer, name string) (float64, int) {
	t.Helper()
	timer.mu.RLock()
	s := timer.cpu[name]
	timer.mu.RUnlock()
	if s == nil {
		t.Fatalf("no cpu timer %q", name)
	}
	return s.win.Pending()
}

var errNoMemory = errors.New("out of device memory")

// limitedDevice refuses buffer creation once its budget is spent.
type limitedDevice struct {
	*software.Device
	buffers int
}

func (d *limitedDevice) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	if d.buffers == 0 {
		return gpucore.InvalidID, errNoMemory
	}
	d.buffers--
	return d.Device.CreateBuffer(desc)
}

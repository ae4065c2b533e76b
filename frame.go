package gputimer

import "github.com/gogpu/gputimer/gpucore"

// FrameTimerName is the timer name used by FrameTimer for both banks.
const FrameTimerName = "frame"

// FrameTimer measures whole-frame cost with a single CPU timer and a
// single GPU timer. It is a Timer restricted to FrameTimerName, for loops
// that do not need a per-pass breakdown.
//
//	ft, _ := gputimer.NewFrameTimer(dev)
//	for running {
//	    ft.FrameStart()
//	    enc := dev.CreateCommandEncoder("frame")
//	    encodePass(enc, ft.PassDescriptor(gputimer.WriteBoth))
//	    _ = ft.BeforeSubmit(enc)
//	    submit(enc)
//	    _ = ft.AfterSubmit()
//	    _ = ft.FrameEnd()
//	}
type FrameTimer struct {
	timer *Timer
}

// NewFrameTimer creates a FrameTimer on dev. dev may be nil for CPU-only
// timing. WithPasses and WithStrictPasses are applied internally.
func NewFrameTimer(dev gpucore.Device, opts ...Option) (*FrameTimer, error) {
	opts = append(opts[:len(opts):len(opts)], WithPasses(FrameTimerName), WithStrictPasses())
	t, err := NewTimer(dev, opts...)
	if err != nil {
		return nil, err
	}
	return &FrameTimer{timer: t}, nil
}

// Timer returns the underlying Timer.
func (f *FrameTimer) Timer() *Timer {
	return f.timer
}

// FrameStart starts the CPU frame measurement.
func (f *FrameTimer) FrameStart() {
	f.timer.StartCPU(FrameTimerName)
}

// FrameEnd stops the CPU frame measurement.
func (f *FrameTimer) FrameEnd() error {
	return f.timer.StopCPU(FrameTimerName)
}

// PassDescriptor returns the timestamp writes for the frame GPU timer. To
// span several passes, request WriteStart for the first pass and WriteEnd
// for the last. The result is a no-op when GPU timing is unavailable or
// the timer is closed.
func (f *FrameTimer) PassDescriptor(flags WriteFlags) gpucore.TimestampWrites {
	w, err := f.timer.GPUPassDescriptor(FrameTimerName, flags)
	if err != nil {
		return gpucore.NoopTimestampWrites
	}
	return w
}

// BeforeSubmit records the resolve and copy of the frame GPU timer.
func (f *FrameTimer) BeforeSubmit(enc gpucore.CommandEncoder) error {
	return f.timer.BeforeSubmit(enc, FrameTimerName)
}

// AfterSubmit starts the readback of the frame GPU timer.
func (f *FrameTimer) AfterSubmit() error {
	return f.timer.AfterSubmit(FrameTimerName)
}

// CPUAverage returns the published CPU frame average in milliseconds.
func (f *FrameTimer) CPUAverage() float64 {
	return f.timer.CPUAverage(FrameTimerName)
}

// GPUAverage returns the published GPU frame average in milliseconds.
func (f *FrameTimer) GPUAverage() float64 {
	return f.timer.GPUAverage(FrameTimerName)
}

// HasGPUTimer reports whether GPU timing is available.
func (f *FrameTimer) HasGPUTimer() bool {
	return f.timer.HasGPUTimer()
}

// Close releases the GPU resources.
func (f *FrameTimer) Close() error {
	return f.timer.Close()
}

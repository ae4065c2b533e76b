// Package window implements the fixed-size sample window behind every timer.
//
// A Window accumulates raw samples and, once it holds Size samples,
// publishes their mean and starts over from zero. The published value is
// stored atomically so readers on other goroutines always observe a
// complete float64.
package window

import (
	"math"
	"sync/atomic"
)

// DefaultSize is the number of samples averaged per publish.
const DefaultSize = 50

// Window is a batch rolling average.
//
// Add and Discard must be called by a single writer at a time. Average
// may be called from any goroutine.
type Window struct {
	size  int
	scale float64

	accumulated float64
	count       int

	// average holds math.Float64bits of the last published value.
	average atomic.Uint64

	// published counts completed windows.
	published atomic.Uint64
}

// New creates a window averaging size samples. Published averages are
// divided by scale, which converts sample units to reporting units
// (1e6 turns nanoseconds into milliseconds). Non-positive arguments fall
// back to DefaultSize and 1.
func New(size int, scale float64) *Window {
	if size <= 0 {
		size = DefaultSize
	}
	if scale <= 0 {
		scale = 1
	}
	return &Window{size: size, scale: scale}
}

// Size returns the number of samples per window.
func (w *Window) Size() int {
	return w.size
}

// Add accumulates one sample. It reports whether the sample completed the
// window and a new average was published.
func (w *Window) Add(sample float64) bool {
	w.accumulated += sample
	w.count++

	if w.count < w.size {
		return false
	}

	avg := w.accumulated / float64(w.size) / w.scale
	w.average.Store(math.Float64bits(avg))
	w.published.Add(1)
	w.accumulated = 0
	w.count = 0
	return true
}

// Discard drops the in-progress accumulation. The published average is
// left untouched.
func (w *Window) Discard() {
	w.accumulated = 0
	w.count = 0
}

// Pending returns the in-progress accumulation. It must be called by the
// writer.
func (w *Window) Pending() (accumulated float64, count int) {
	return w.accumulated, w.count
}

// Average returns the last published average, or 0 before the first
// window completes.
func (w *Window) Average() float64 {
	return math.Float64frombits(w.average.Load())
}

// Published returns the number of completed windows.
func (w *Window) Published() uint64 {
	return w.published.Load()
}

package gputimer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gputimer/gpucore"
	"github.com/gogpu/gputimer/internal/readback"
	"github.com/gogpu/gputimer/internal/window"
)

// nanosecondsPerMillisecond converts device timestamps to published units.
const nanosecondsPerMillisecond = 1e6

// WriteFlags selects which pass boundaries a descriptor records.
type WriteFlags uint8

const (
	// WriteStart records the timestamp at the beginning of the pass.
	WriteStart WriteFlags = 1 << iota
	// WriteEnd records the timestamp at the end of the pass.
	WriteEnd

	// WriteBoth records both boundaries. The zero value means the same.
	WriteBoth = WriteStart | WriteEnd
)

func (f WriteFlags) normalize() WriteFlags {
	f &= WriteBoth
	if f == 0 {
		return WriteBoth
	}
	return f
}

// String returns the string representation of WriteFlags.
func (f WriteFlags) String() string {
	switch f.normalize() {
	case WriteStart:
		return "Start"
	case WriteEnd:
		return "End"
	default:
		return "Both"
	}
}

// gpuSlot is a timestamp query resource and its sample window.
//
// win is only mutated from readback completions, and a slot has at most
// one completion outstanding.
type gpuSlot struct {
	name  string
	query *readback.Query
	win   *window.Window

	discarded atomic.Uint64
	failed    atomic.Uint64

	onMapError func(name string, err error)
}

func (s *gpuSlot) onSample(begin, end int64) {
	elapsed := end - begin
	if elapsed < 0 {
		s.win.Discard()
		s.discarded.Add(1)
		Logger().Debug("gputimer: invalid gpu sample, window discarded",
			slog.String("timer", s.name),
			slog.Int64("begin", begin),
			slog.Int64("end", end))
		return
	}
	if s.win.Add(float64(elapsed)) {
		Logger().Debug("gputimer: gpu average published",
			slog.String("timer", s.name),
			slog.Float64("ms", s.win.Average()))
	}
}

func (s *gpuSlot) onFailure(err error) {
	s.failed.Add(1)
	if s.onMapError != nil {
		s.onMapError(s.name, err)
	}
}

// createGPUSlot must be called with t.mu held for writing.
func (t *Timer) createGPUSlot(name string) (*gpuSlot, error) {
	q, err := readback.New(t.dev, t.opts.labelPrefix+"-"+name)
	if err != nil {
		return nil, fmt.Errorf("gputimer: gpu timer %q: %w", name, err)
	}
	s := &gpuSlot{
		name:       name,
		query:      q,
		win:        window.New(t.opts.window, nanosecondsPerMillisecond),
		onMapError: t.opts.onMapError,
	}
	t.gpu[name] = s
	t.gpuOrder = append(t.gpuOrder, name)
	return s, nil
}

// GPUPassDescriptor returns the timestamp writes to attach to the pass
// timed as name. The GPU timer is created on first request unless
// WithStrictPasses was given.
//
// Without timestamp query support the result is always
// gpucore.NoopTimestampWrites and err is nil; callers should encode the
// pass without timestamps.
func (t *Timer) GPUPassDescriptor(name string, flags WriteFlags) (gpucore.TimestampWrites, error) {
	if !t.hasGPU {
		return gpucore.NoopTimestampWrites, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return gpucore.NoopTimestampWrites, ErrClosed
	}

	s, ok := t.gpu[name]
	if !ok {
		if t.opts.strict {
			return gpucore.NoopTimestampWrites, fmt.Errorf("%w: %q", ErrUnknownTimer, name)
		}
		var err error
		if s, err = t.createGPUSlot(name); err != nil {
			return gpucore.NoopTimestampWrites, err
		}
		Logger().Debug("gputimer: gpu timer created", slog.String("timer", name))
	}

	flags = flags.normalize()
	return s.query.Writes(flags&WriteStart != 0, flags&WriteEnd != 0), nil
}

// gpuSlots returns the slots for names, or all slots in creation order when
// names is empty. Unknown names are skipped.
func (t *Timer) gpuSlots(names []string) ([]*gpuSlot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return nil, ErrClosed
	}
	if len(names) == 0 {
		names = t.gpuOrder
	}

	slots := make([]*gpuSlot, 0, len(names))
	for _, name := range names {
		s, ok := t.gpu[name]
		if !ok {
			Logger().Debug("gputimer: skip unknown gpu timer", slog.String("timer", name))
			continue
		}
		slots = append(slots, s)
	}
	return slots, nil
}

// BeforeSubmit records, for each named GPU timer (all when names is
// empty), the resolve of its timestamps and the copy into its result
// buffer. Timers whose previous readback is still mapping are skipped.
//
// Call it after every pass using the timers has been encoded and before
// the command buffer is submitted.
func (t *Timer) BeforeSubmit(enc gpucore.CommandEncoder, names ...string) error {
	if !t.hasGPU {
		return nil
	}
	if enc == nil {
		return ErrNilEncoder
	}

	slots, err := t.gpuSlots(names)
	if err != nil {
		return err
	}

	var errs []error
	for _, s := range slots {
		if _, err := s.query.Resolve(enc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AfterSubmit starts the asynchronous readback of every named GPU timer
// (all when names is empty) resolved by BeforeSubmit. Timers with a
// readback already in flight are skipped.
//
// Call it after the command buffer has been submitted. Results are
// incorporated whenever the device completes the mapping.
func (t *Timer) AfterSubmit(names ...string) error {
	if !t.hasGPU {
		return nil
	}

	slots, err := t.gpuSlots(names)
	if err != nil {
		return err
	}

	var errs []error
	for _, s := range slots {
		if _, err := s.query.Map(s.onSample, s.onFailure); err != nil {
			s.failed.Add(1)
			Logger().Warn("gputimer: readback not started",
				slog.String("timer", s.name), slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

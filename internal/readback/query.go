// Package readback owns the GPU side of a timed pass.
//
// A Query bundles a two-entry timestamp query set, the resolve buffer the
// set is resolved into, and the host-visible result buffer that is mapped
// for reading. Its readback cycle is a small state machine:
//
//	Idle --Resolve--> Submitted --Map--> Mapping --completion--> Idle
//
// Resolve is refused while Mapping so the result buffer is never written
// while the host may be reading it, and Map starts at most one outstanding
// map request per Query.
package readback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gputimer/gpucore"
)

// Query set layout.
const (
	// BeginIndex is the query written at the start of a pass.
	BeginIndex uint32 = 0
	// EndIndex is the query written at the end of a pass.
	EndIndex uint32 = 1
	// QueryCount is the capacity of each query set.
	QueryCount uint32 = 2

	// ResultSize is the byte size of the resolve and result buffers.
	ResultSize = uint64(QueryCount) * gpucore.TimestampSize
)

// Errors.
var (
	// ErrNilDevice is returned by New without a device.
	ErrNilDevice = errors.New("readback: device is nil")

	// ErrMapFailed wraps a non-success map status.
	ErrMapFailed = errors.New("readback: result buffer mapping failed")

	// ErrDestroyed is returned when using a destroyed Query.
	ErrDestroyed = errors.New("readback: query has been destroyed")
)

// State is the readback state of a Query.
type State int32

const (
	// StateIdle means the result buffer is free for a new resolve.
	StateIdle State = iota
	// StateSubmitted means resolve and copy were recorded and no map is pending.
	StateSubmitted
	// StateMapping means a map request is outstanding.
	StateMapping
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSubmitted:
		return "Submitted"
	case StateMapping:
		return "Mapping"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// Query is the timestamp query resource of one timer.
type Query struct {
	label string
	dev   gpucore.Device

	set     gpucore.QuerySetID
	resolve gpucore.BufferID
	result  gpucore.BufferID

	state     atomic.Int32
	destroyed atomic.Bool

	// begin and end back the index pointers handed out in TimestampWrites.
	begin uint32
	end   uint32
}

// New creates the query set and both buffers. On failure, any resource
// already created is released.
func New(dev gpucore.Device, label string) (*Query, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}

	q := &Query{label: label, dev: dev, begin: BeginIndex, end: EndIndex}

	set, err := dev.CreateQuerySet(&gpucore.QuerySetDescriptor{
		Label: label + "-queries",
		Type:  gpucore.QueryTypeTimestamp,
		Count: QueryCount,
	})
	if err != nil {
		return nil, fmt.Errorf("readback: create query set %q: %w", label, err)
	}
	q.set = set

	q.resolve, err = dev.CreateBuffer(&gpucore.BufferDescriptor{
		Label: label + "-resolve",
		Size:  ResultSize,
		Usage: gputypes.BufferUsageQueryResolve | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		q.Destroy()
		return nil, fmt.Errorf("readback: create resolve buffer %q: %w", label, err)
	}

	q.result, err = dev.CreateBuffer(&gpucore.BufferDescriptor{
		Label: label + "-result",
		Size:  ResultSize,
		Usage: gputypes.BufferUsageCopyDst | gputypes.BufferUsageMapRead,
	})
	if err != nil {
		q.Destroy()
		return nil, fmt.Errorf("readback: create result buffer %q: %w", label, err)
	}

	slogger().Debug("readback: query created",
		slog.String("label", label),
		slog.Uint64("set", uint64(q.set)),
		slog.Uint64("resolve", uint64(q.resolve)),
		slog.Uint64("result", uint64(q.result)))
	return q, nil
}

// Label returns the label the resources were created with.
func (q *Query) Label() string {
	return q.label
}

// QuerySet returns the query set ID.
func (q *Query) QuerySet() gpucore.QuerySetID {
	return q.set
}

// ResultBuffer returns the host-visible buffer ID.
func (q *Query) ResultBuffer() gpucore.BufferID {
	return q.result
}

// State returns the current readback state.
func (q *Query) State() State {
	return State(q.state.Load())
}

// Writes returns the pass descriptor writing the requested boundaries.
func (q *Query) Writes(begin, end bool) gpucore.TimestampWrites {
	if q.destroyed.Load() || (!begin && !end) {
		return gpucore.NoopTimestampWrites
	}
	w := gpucore.TimestampWrites{QuerySet: q.set}
	if begin {
		w.BeginningOfPassWriteIndex = &q.begin
	}
	if end {
		w.EndOfPassWriteIndex = &q.end
	}
	return w
}

// Resolve records the resolve of both timestamps into the resolve buffer
// followed by the copy into the result buffer. It reports false without
// recording anything while a map is outstanding.
func (q *Query) Resolve(enc gpucore.CommandEncoder) (bool, error) {
	if q.destroyed.Load() {
		return false, ErrDestroyed
	}

	st := q.State()
	if st == StateMapping {
		slogger().Debug("readback: skip resolve, mapping in flight", slog.String("label", q.label))
		return false, nil
	}

	if err := enc.ResolveQuerySet(q.set, 0, QueryCount, q.resolve, 0); err != nil {
		return false, fmt.Errorf("readback: resolve %q: %w", q.label, err)
	}
	if err := enc.CopyBufferToBuffer(q.resolve, 0, q.result, 0, ResultSize); err != nil {
		return false, fmt.Errorf("readback: copy %q: %w", q.label, err)
	}

	q.state.CompareAndSwap(int32(st), int32(StateSubmitted))
	return true, nil
}

// Map starts the asynchronous readback of a submitted resolve. It reports
// false when there is nothing to map or a map is already outstanding.
//
// On successful completion onSample receives the raw begin and end
// timestamps. Any failure is passed to onFailure instead and the Query
// returns to Idle without producing a sample. Either callback may run on
// the goroutine that completes the device map, and before the Query is
// Idle again.
func (q *Query) Map(onSample func(begin, end int64), onFailure func(error)) (bool, error) {
	if q.destroyed.Load() {
		return false, ErrDestroyed
	}
	if !q.state.CompareAndSwap(int32(StateSubmitted), int32(StateMapping)) {
		return false, nil
	}

	err := q.dev.MapAsync(q.result, gputypes.MapModeRead, 0, ResultSize, func(status gpucore.MapStatus) {
		q.complete(status, onSample, onFailure)
	})
	if err != nil {
		q.state.Store(int32(StateIdle))
		return false, fmt.Errorf("readback: map %q: %w", q.label, err)
	}
	return true, nil
}

func (q *Query) complete(status gpucore.MapStatus, onSample func(begin, end int64), onFailure func(error)) {
	defer q.state.Store(int32(StateIdle))

	if status != gpucore.MapStatusSuccess {
		q.fail(fmt.Errorf("%w: %q: %s", ErrMapFailed, q.label, status), onFailure)
		return
	}

	data, err := q.dev.MappedRange(q.result, 0, ResultSize)
	if err != nil {
		_ = q.dev.Unmap(q.result)
		q.fail(fmt.Errorf("readback: mapped range %q: %w", q.label, err), onFailure)
		return
	}
	begin := int64(binary.LittleEndian.Uint64(data[0:8]))
	end := int64(binary.LittleEndian.Uint64(data[8:16]))

	if err := q.dev.Unmap(q.result); err != nil {
		slogger().Warn("readback: unmap failed", slog.String("label", q.label), slog.Any("error", err))
	}

	if onSample != nil {
		onSample(begin, end)
	}
}

func (q *Query) fail(err error, onFailure func(error)) {
	if q.destroyed.Load() {
		// Destroy cancels pending maps; that is not a device failure.
		return
	}
	slogger().Warn("readback: readback dropped", slog.String("label", q.label), slog.Any("error", err))
	if onFailure != nil {
		onFailure(err)
	}
}

// Destroy releases the query set and buffers. It is idempotent.
func (q *Query) Destroy() {
	if q.destroyed.Swap(true) {
		return
	}
	if q.result != gpucore.InvalidID {
		q.dev.DestroyBuffer(q.result)
	}
	if q.resolve != gpucore.InvalidID {
		q.dev.DestroyBuffer(q.resolve)
	}
	if q.set != gpucore.InvalidID {
		q.dev.DestroyQuerySet(q.set)
	}
}

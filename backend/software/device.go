// Package software provides an in-memory gpucore.Device.
//
// The device keeps a virtual nanosecond clock that only advances when
// submitted passes execute, so the timestamps it records are fully
// deterministic. Buffer mapping follows the WebGPU model: MapAsync only
// marks the buffer pending, and completion happens on Poll after a
// configurable number of polls.
//
// It is used as the test double for gputimer and as the device behind the
// gputimer-demo command.
package software

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gputimer/gpucore"
)

// Device errors.
var (
	// ErrBufferNotFound is returned when a buffer ID is unknown or destroyed.
	ErrBufferNotFound = errors.New("software: buffer not found")

	// ErrQuerySetNotFound is returned when a query set ID is unknown or destroyed.
	ErrQuerySetNotFound = errors.New("software: query set not found")

	// ErrTimestampUnsupported is returned when creating a timestamp query
	// set on a device without the feature.
	ErrTimestampUnsupported = errors.New("software: timestamp queries not supported")

	// ErrInvalidBufferSize is returned when buffer size is invalid.
	ErrInvalidBufferSize = errors.New("software: invalid buffer size")

	// ErrInvalidQueryCount is returned when a query set count is invalid.
	ErrInvalidQueryCount = errors.New("software: invalid query count")

	// ErrBufferAlreadyMapped is returned when attempting to map an already mapped buffer.
	ErrBufferAlreadyMapped = errors.New("software: buffer is already mapped or mapping is pending")

	// ErrBufferNotMapped is returned when attempting to access unmapped buffer data.
	ErrBufferNotMapped = errors.New("software: buffer is not mapped")

	// ErrBufferInUse is returned when a command writes to a mapped buffer.
	ErrBufferInUse = errors.New("software: buffer is mapped or mapping is pending")

	// ErrMapUsageMismatch is returned when mapping mode doesn't match buffer usage.
	ErrMapUsageMismatch = errors.New("software: map mode does not match buffer usage flags")

	// ErrUsageMismatch is returned when a command uses a buffer without the required usage.
	ErrUsageMismatch = errors.New("software: buffer usage does not allow operation")

	// ErrInvalidRange is returned when an offset/size pair is out of bounds.
	ErrInvalidRange = errors.New("software: range out of bounds")

	// ErrCallbackNil is returned when MapAsync is called with nil callback.
	ErrCallbackNil = errors.New("software: map callback is nil")
)

// MapState represents the mapping state of a buffer.
type MapState int

const (
	// MapStateUnmapped means the buffer is not mapped.
	MapStateUnmapped MapState = iota
	// MapStatePending means a map operation is pending.
	MapStatePending
	// MapStateMapped means the buffer is mapped.
	MapStateMapped
)

// String returns the string representation of MapState.
func (s MapState) String() string {
	switch s {
	case MapStateUnmapped:
		return "Unmapped"
	case MapStatePending:
		return "Pending"
	case MapStateMapped:
		return "Mapped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Stats counts operations executed by a Device.
type Stats struct {
	QuerySets   int
	Buffers     int
	Submits     int
	Passes      int
	Resolves    int
	Copies      int
	MapRequests int
	MapsDone    int
}

// Option configures a Device.
type Option func(*Device)

// WithTimestampQuery enables or disables timestamp query support.
// Enabled by default.
func WithTimestampQuery(enabled bool) Option {
	return func(d *Device) {
		d.timestamps = enabled
	}
}

// WithMapLatency sets how many Poll calls a map request waits before it
// completes. The default of 1 completes on the first Poll.
func WithMapLatency(polls int) Option {
	return func(d *Device) {
		if polls < 1 {
			polls = 1
		}
		d.mapLatency = polls
	}
}

// WithClockStart sets the initial value of the virtual device clock.
func WithClockStart(ns int64) Option {
	return func(d *Device) {
		d.clock = ns
	}
}

type buffer struct {
	desc gpucore.BufferDescriptor
	data []byte

	mapState  MapState
	pollsLeft int
	status    gpucore.MapStatus
	callback  func(gpucore.MapStatus)
}

type querySet struct {
	desc   gpucore.QuerySetDescriptor
	values []int64
}

// Device is an in-memory GPU device.
//
// Device is safe for concurrent use. Map callbacks are invoked from the
// goroutine calling Poll, DestroyBuffer or Unmap, never with the device
// lock held.
type Device struct {
	mu sync.Mutex

	timestamps bool
	mapLatency int
	clock      int64
	nextID     uint64

	buffers   map[gpucore.BufferID]*buffer
	querySets map[gpucore.QuerySetID]*querySet

	failNext []gpucore.MapStatus
	stats    Stats
}

// New creates a software device.
func New(opts ...Option) *Device {
	d := &Device{
		timestamps: true,
		mapLatency: 1,
		buffers:    make(map[gpucore.BufferID]*buffer),
		querySets:  make(map[gpucore.QuerySetID]*querySet),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ gpucore.Device = (*Device)(nil)

// SupportsTimestampQuery reports whether timestamp queries are enabled.
func (d *Device) SupportsTimestampQuery() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timestamps
}

// Now returns the virtual device clock in nanoseconds.
func (d *Device) Now() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock
}

// Advance moves the virtual clock forward.
func (d *Device) Advance(dur time.Duration) {
	d.mu.Lock()
	d.clock += int64(dur)
	d.mu.Unlock()
}

// Stats returns a copy of the operation counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// FailNextMap makes the next MapAsync request complete with status
// instead of succeeding. Calls queue up in order.
func (d *Device) FailNextMap(status gpucore.MapStatus) {
	d.mu.Lock()
	d.failNext = append(d.failNext, status)
	d.mu.Unlock()
}

// CreateQuerySet creates a query set with all values zeroed.
func (d *Device) CreateQuerySet(desc *gpucore.QuerySetDescriptor) (gpucore.QuerySetID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("software: query set descriptor is nil")
	}
	if desc.Count == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: count is 0", ErrInvalidQueryCount)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Type == gpucore.QueryTypeTimestamp && !d.timestamps {
		return gpucore.InvalidID, ErrTimestampUnsupported
	}

	d.nextID++
	id := gpucore.QuerySetID(d.nextID)
	d.querySets[id] = &querySet{desc: *desc, values: make([]int64, desc.Count)}
	d.stats.QuerySets++
	return id, nil
}

// DestroyQuerySet releases a query set.
func (d *Device) DestroyQuerySet(id gpucore.QuerySetID) {
	d.mu.Lock()
	delete(d.querySets, id)
	d.mu.Unlock()
}

// CreateBuffer creates a zero-filled buffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("software: buffer descriptor is nil")
	}
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: size is 0", ErrInvalidBufferSize)
	}
	if desc.Usage == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: buffer usage is empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := gpucore.BufferID(d.nextID)
	d.buffers[id] = &buffer{desc: *desc, data: make([]byte, desc.Size)}
	d.stats.Buffers++
	return id, nil
}

// DestroyBuffer releases a buffer, cancelling any pending map.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.buffers, id)
	callback := b.callback
	wasMapping := b.mapState == MapStatePending
	b.callback = nil
	b.mapState = MapStateUnmapped
	d.mu.Unlock()

	if wasMapping && callback != nil {
		callback(gpucore.MapStatusDestroyedBeforeCallback)
	}
}

// BufferMapState returns the map state of a buffer.
func (d *Device) BufferMapState(id gpucore.BufferID) (MapState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return MapStateUnmapped, ErrBufferNotFound
	}
	return b.mapState, nil
}

// BufferCount returns the number of live buffers.
func (d *Device) BufferCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// QuerySetCount returns the number of live query sets.
func (d *Device) QuerySetCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.querySets)
}

// MapAsync initiates an async map operation. Completion happens on Poll.
func (d *Device) MapAsync(id gpucore.BufferID, mode gputypes.MapMode, offset, size uint64, callback func(gpucore.MapStatus)) error {
	if callback == nil {
		return ErrCallbackNil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return ErrBufferNotFound
	}
	if b.mapState != MapStateUnmapped {
		return ErrBufferAlreadyMapped
	}
	if mode == gputypes.MapModeRead && !b.desc.Usage.Contains(gputypes.BufferUsageMapRead) {
		return fmt.Errorf("%w: buffer does not have MapRead usage", ErrMapUsageMismatch)
	}
	if mode == gputypes.MapModeWrite && !b.desc.Usage.Contains(gputypes.BufferUsageMapWrite) {
		return fmt.Errorf("%w: buffer does not have MapWrite usage", ErrMapUsageMismatch)
	}
	if offset+size > b.desc.Size {
		return fmt.Errorf("%w: offset %d + size %d > buffer size %d", ErrInvalidRange, offset, size, b.desc.Size)
	}

	status := gpucore.MapStatusSuccess
	if len(d.failNext) > 0 {
		status = d.failNext[0]
		d.failNext = d.failNext[1:]
	}

	b.mapState = MapStatePending
	b.pollsLeft = d.mapLatency
	b.status = status
	b.callback = callback
	d.stats.MapRequests++
	return nil
}

// Poll advances pending map operations and invokes the callbacks of those
// that complete. It returns the number of completed operations.
func (d *Device) Poll() int {
	type done struct {
		callback func(gpucore.MapStatus)
		status   gpucore.MapStatus
	}

	d.mu.Lock()
	ids := make([]gpucore.BufferID, 0, len(d.buffers))
	for id, b := range d.buffers {
		if b.mapState == MapStatePending {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var completed []done
	for _, id := range ids {
		b := d.buffers[id]
		b.pollsLeft--
		if b.pollsLeft > 0 {
			continue
		}
		if b.status == gpucore.MapStatusSuccess {
			b.mapState = MapStateMapped
		} else {
			b.mapState = MapStateUnmapped
		}
		completed = append(completed, done{callback: b.callback, status: b.status})
		b.callback = nil
		d.stats.MapsDone++
	}
	d.mu.Unlock()

	// Call callbacks outside lock to avoid deadlock
	for _, c := range completed {
		c.callback(c.status)
	}
	return len(completed)
}

// PollLoop calls Poll every interval until ctx is done.
func (d *Device) PollLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Poll()
		}
	}
}

// MappedRange returns the mapped data slice.
func (d *Device) MappedRange(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return nil, ErrBufferNotFound
	}
	if b.mapState != MapStateMapped {
		return nil, ErrBufferNotMapped
	}
	if offset+size > b.desc.Size {
		return nil, fmt.Errorf("%w: offset %d + size %d > buffer size %d", ErrInvalidRange, offset, size, b.desc.Size)
	}
	return b.data[offset : offset+size], nil
}

// Unmap unmaps the buffer. A pending map is cancelled and its callback
// receives MapStatusUnmappedBeforeCallback.
func (d *Device) Unmap(id gpucore.BufferID) error {
	d.mu.Lock()
	b, ok := d.buffers[id]
	if !ok {
		d.mu.Unlock()
		return ErrBufferNotFound
	}

	if b.mapState == MapStatePending {
		callback := b.callback
		b.callback = nil
		b.mapState = MapStateUnmapped
		d.mu.Unlock()
		if callback != nil {
			callback(gpucore.MapStatusUnmappedBeforeCallback)
		}
		return nil
	}

	b.mapState = MapStateUnmapped
	d.mu.Unlock()
	return nil
}

// WriteBuffer overwrites buffer contents, as a queue write would.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return ErrBufferNotFound
	}
	if b.mapState != MapStateUnmapped {
		return ErrBufferInUse
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("%w: offset %d + size %d > buffer size %d", ErrInvalidRange, offset, len(data), b.desc.Size)
	}
	copy(b.data[offset:], data)
	return nil
}

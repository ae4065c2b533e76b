package software

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gputimer/gpucore"
)

// ErrEncoderFinished is returned when recording into a finished encoder.
var ErrEncoderFinished = errors.New("software: command encoder is finished")

// command runs with the device lock held.
type command func(d *Device) error

// CommandBuffer is a finished list of recorded commands.
type CommandBuffer struct {
	label string
	cmds  []command
}

// Label returns the command buffer label.
func (cb *CommandBuffer) Label() string {
	return cb.label
}

// Encoder records commands for later submission.
//
// Validation of resource IDs and buffer state happens at Submit, when the
// commands execute, matching the ordering guarantees of a real queue.
type Encoder struct {
	label    string
	cmds     []command
	finished bool
}

var _ gpucore.CommandEncoder = (*Encoder)(nil)

// CreateCommandEncoder creates a new command encoder.
func (d *Device) CreateCommandEncoder(label string) *Encoder {
	return &Encoder{label: label}
}

func (e *Encoder) record(c command) error {
	if e.finished {
		return ErrEncoderFinished
	}
	e.cmds = append(e.cmds, c)
	return nil
}

// RenderPass records a pass that takes cost of device time. If writes is
// not a no-op, the device clock is written to the begin index before the
// pass and to the end index after it.
func (e *Encoder) RenderPass(label string, writes gpucore.TimestampWrites, cost time.Duration) error {
	return e.record(func(d *Device) error {
		d.stats.Passes++
		if writes.IsNoop() {
			d.clock += int64(cost)
			return nil
		}

		qs, ok := d.querySets[writes.QuerySet]
		if !ok {
			return fmt.Errorf("pass %q: %w", label, ErrQuerySetNotFound)
		}
		if err := checkIndex(qs, writes.BeginningOfPassWriteIndex); err != nil {
			return fmt.Errorf("pass %q: %w", label, err)
		}
		if err := checkIndex(qs, writes.EndOfPassWriteIndex); err != nil {
			return fmt.Errorf("pass %q: %w", label, err)
		}

		if writes.BeginningOfPassWriteIndex != nil {
			qs.values[*writes.BeginningOfPassWriteIndex] = d.clock
		}
		d.clock += int64(cost)
		if writes.EndOfPassWriteIndex != nil {
			qs.values[*writes.EndOfPassWriteIndex] = d.clock
		}
		return nil
	})
}

func checkIndex(qs *querySet, idx *uint32) error {
	if idx != nil && *idx >= qs.desc.Count {
		return fmt.Errorf("%w: query index %d >= count %d", ErrInvalidRange, *idx, qs.desc.Count)
	}
	return nil
}

// WriteTimestamp records a literal value into a query slot. It stands in
// for driver anomalies such as clock wraparound.
func (e *Encoder) WriteTimestamp(set gpucore.QuerySetID, index uint32, value int64) error {
	return e.record(func(d *Device) error {
		qs, ok := d.querySets[set]
		if !ok {
			return ErrQuerySetNotFound
		}
		if err := checkIndex(qs, &index); err != nil {
			return err
		}
		qs.values[index] = value
		return nil
	})
}

// ResolveQuerySet records a resolve of queries into dst as little-endian
// 64-bit values.
func (e *Encoder) ResolveQuerySet(set gpucore.QuerySetID, firstQuery, queryCount uint32, dst gpucore.BufferID, dstOffset uint64) error {
	return e.record(func(d *Device) error {
		qs, ok := d.querySets[set]
		if !ok {
			return ErrQuerySetNotFound
		}
		b, ok := d.buffers[dst]
		if !ok {
			return ErrBufferNotFound
		}
		if !b.desc.Usage.Contains(gputypes.BufferUsageQueryResolve) {
			return fmt.Errorf("%w: resolve destination lacks QueryResolve usage", ErrUsageMismatch)
		}
		if b.mapState != MapStateUnmapped {
			return ErrBufferInUse
		}
		if uint64(firstQuery)+uint64(queryCount) > uint64(qs.desc.Count) {
			return fmt.Errorf("%w: queries %d+%d > count %d", ErrInvalidRange, firstQuery, queryCount, qs.desc.Count)
		}
		size := uint64(queryCount) * gpucore.TimestampSize
		if dstOffset+size > b.desc.Size {
			return fmt.Errorf("%w: resolve of %d bytes at %d > buffer size %d", ErrInvalidRange, size, dstOffset, b.desc.Size)
		}

		for i := uint32(0); i < queryCount; i++ {
			off := dstOffset + uint64(i)*gpucore.TimestampSize
			binary.LittleEndian.PutUint64(b.data[off:], uint64(qs.values[firstQuery+i]))
		}
		d.stats.Resolves++
		return nil
	})
}

// CopyBufferToBuffer records a buffer copy.
func (e *Encoder) CopyBufferToBuffer(src gpucore.BufferID, srcOffset uint64, dst gpucore.BufferID, dstOffset, size uint64) error {
	return e.record(func(d *Device) error {
		sb, ok := d.buffers[src]
		if !ok {
			return fmt.Errorf("copy source: %w", ErrBufferNotFound)
		}
		db, ok := d.buffers[dst]
		if !ok {
			return fmt.Errorf("copy destination: %w", ErrBufferNotFound)
		}
		if !sb.desc.Usage.Contains(gputypes.BufferUsageCopySrc) {
			return fmt.Errorf("%w: source lacks CopySrc usage", ErrUsageMismatch)
		}
		if !db.desc.Usage.Contains(gputypes.BufferUsageCopyDst) {
			return fmt.Errorf("%w: destination lacks CopyDst usage", ErrUsageMismatch)
		}
		if sb.mapState != MapStateUnmapped || db.mapState != MapStateUnmapped {
			return ErrBufferInUse
		}
		if srcOffset+size > sb.desc.Size || dstOffset+size > db.desc.Size {
			return fmt.Errorf("%w: copy of %d bytes", ErrInvalidRange, size)
		}

		copy(db.data[dstOffset:dstOffset+size], sb.data[srcOffset:srcOffset+size])
		d.stats.Copies++
		return nil
	})
}

// Finish ends recording and returns the command buffer.
func (e *Encoder) Finish() (*CommandBuffer, error) {
	if e.finished {
		return nil, ErrEncoderFinished
	}
	e.finished = true
	return &CommandBuffer{label: e.label, cmds: e.cmds}, nil
}

// Submit executes command buffers in order. Execution stops at the first
// failing command.
func (d *Device) Submit(buffers ...*CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, cb := range buffers {
		if cb == nil {
			continue
		}
		d.stats.Submits++
		for i, c := range cb.cmds {
			if err := c(d); err != nil {
				return fmt.Errorf("software: %q command %d: %w", cb.label, i, err)
			}
		}
	}
	return nil
}

package gpucore

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Resource IDs
//
// These opaque IDs represent GPU resources. Each backend implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// QuerySetID is an opaque handle to a GPU query set.
type QuerySetID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// TimestampSize is the size in bytes of one resolved timestamp.
const TimestampSize = 8

// QueryType specifies the kind of queries held by a query set.
type QueryType uint32

// Query types.
const (
	// QueryTypeTimestamp records the device clock at a point in the command stream.
	QueryTypeTimestamp QueryType = iota + 1
)

// String returns the string representation of QueryType.
func (t QueryType) String() string {
	switch t {
	case QueryTypeTimestamp:
		return "Timestamp"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(t))
	}
}

// QuerySetDescriptor describes a query set to create.
type QuerySetDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Type is the kind of query stored in the set.
	Type QueryType

	// Count is the number of queries in the set.
	Count uint32
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage
}

// TimestampWrites describes timestamp query writes at pass boundaries.
//
// A nil index means the corresponding boundary is not recorded.
type TimestampWrites struct {
	// QuerySet is the query set to write timestamps to.
	QuerySet QuerySetID

	// BeginningOfPassWriteIndex is the query index for pass start.
	BeginningOfPassWriteIndex *uint32

	// EndOfPassWriteIndex is the query index for pass end.
	EndOfPassWriteIndex *uint32
}

// NoopTimestampWrites is the sentinel returned when timing is unavailable.
var NoopTimestampWrites = TimestampWrites{}

// IsNoop reports whether w carries no timestamp writes.
func (w TimestampWrites) IsNoop() bool {
	return w.QuerySet == InvalidID ||
		(w.BeginningOfPassWriteIndex == nil && w.EndOfPassWriteIndex == nil)
}

// MapStatus represents the result of an async map operation.
type MapStatus int

const (
	// MapStatusSuccess indicates mapping completed successfully.
	MapStatusSuccess MapStatus = iota
	// MapStatusValidationError indicates a validation error.
	MapStatusValidationError
	// MapStatusUnknown indicates an unknown error.
	MapStatusUnknown
	// MapStatusDeviceLost indicates the device was lost.
	MapStatusDeviceLost
	// MapStatusDestroyedBeforeCallback indicates the buffer was destroyed.
	MapStatusDestroyedBeforeCallback
	// MapStatusUnmappedBeforeCallback indicates the buffer was unmapped.
	MapStatusUnmappedBeforeCallback
	// MapStatusMappingAlreadyPending indicates another map is pending.
	MapStatusMappingAlreadyPending
)

// String returns the string representation of MapStatus.
func (s MapStatus) String() string {
	switch s {
	case MapStatusSuccess:
		return "Success"
	case MapStatusValidationError:
		return "ValidationError"
	case MapStatusUnknown:
		return "Unknown"
	case MapStatusDeviceLost:
		return "DeviceLost"
	case MapStatusDestroyedBeforeCallback:
		return "DestroyedBeforeCallback"
	case MapStatusUnmappedBeforeCallback:
		return "UnmappedBeforeCallback"
	case MapStatusMappingAlreadyPending:
		return "MappingAlreadyPending"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

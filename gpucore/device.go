package gpucore

import "github.com/gogpu/gputypes"

// Device is the set of GPU capabilities the timer requires.
//
// Implementations wrap a concrete backend device. All methods are invoked
// from the render loop goroutine; map callbacks may run on any goroutine.
type Device interface {
	// SupportsTimestampQuery reports whether timestamp query sets can be
	// created and attached to passes. It must never fail.
	SupportsTimestampQuery() bool

	// CreateQuerySet creates a query set.
	CreateQuerySet(desc *QuerySetDescriptor) (QuerySetID, error)

	// DestroyQuerySet releases a query set. Unknown IDs are ignored.
	DestroyQuerySet(id QuerySetID)

	// CreateBuffer creates a buffer.
	CreateBuffer(desc *BufferDescriptor) (BufferID, error)

	// DestroyBuffer releases a buffer. A pending map callback is invoked
	// with MapStatusDestroyedBeforeCallback. Unknown IDs are ignored.
	DestroyBuffer(id BufferID)

	// MapAsync initiates host mapping of a buffer range. The callback is
	// invoked exactly once when mapping completes or fails. A non-nil
	// error means mapping was not initiated and the callback is never
	// invoked.
	MapAsync(id BufferID, mode gputypes.MapMode, offset, size uint64, callback func(MapStatus)) error

	// MappedRange returns the mapped bytes. The slice is only valid until
	// Unmap is called.
	MappedRange(id BufferID, offset, size uint64) ([]byte, error)

	// Unmap releases a mapping.
	Unmap(id BufferID) error
}

// CommandEncoder records commands into a caller-owned command stream.
type CommandEncoder interface {
	// ResolveQuerySet resolves queryCount queries starting at firstQuery
	// into dst at dstOffset.
	ResolveQuerySet(set QuerySetID, firstQuery, queryCount uint32, dst BufferID, dstOffset uint64) error

	// CopyBufferToBuffer copies size bytes from src to dst.
	CopyBufferToBuffer(src BufferID, srcOffset uint64, dst BufferID, dstOffset, size uint64) error
}

// Package gpucore defines the device boundary used by gputimer.
//
// This package declares the [Device] and [CommandEncoder] interfaces, which
// describe the small set of GPU capabilities the timer needs from whatever
// rendering backend owns the command stream:
//   - feature detection for timestamp queries
//   - creation of timestamp query sets and buffers
//   - recording of query resolves and buffer copies into an encoder
//   - asynchronous host mapping of readback buffers
//
// # Resource Management
//
// GPU resources are referenced via opaque IDs ([BufferID], [QuerySetID]).
// Backends are responsible for tracking the mapping between IDs and actual
// GPU resources. The zero ID ([InvalidID]) never names a live resource.
//
// # Pass Attachment
//
// [TimestampWrites] is the descriptor a render loop attaches to a render or
// compute pass. A value whose QuerySet is [InvalidID] is the no-op sentinel:
// the pass must be encoded without timestamp writes.
//
//	writes, err := timer.GPUPassDescriptor("shadow", gputimer.WriteBoth)
//	if err != nil {
//	    return err
//	}
//	if !writes.IsNoop() {
//	    passDesc.TimestampWrites = toBackend(writes)
//	}
//
// # Asynchronous Mapping
//
// [Device.MapAsync] follows the WebGPU model: the call only initiates the
// mapping and the callback runs later, when the backend is polled. Callers
// must not assume it runs before the next frame.
package gpucore

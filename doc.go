// Package gputimer measures per-pass and per-frame cost of a real-time
// render loop on both the CPU and the GPU.
//
// # Overview
//
// A [Timer] owns two banks of named timers:
//   - CPU timers: wall-clock stopwatches bracketed by StartCPU/StopCPU.
//   - GPU timers: a two-entry timestamp query set per pass, resolved into a
//     staging buffer, copied into a host-visible result buffer and mapped
//     asynchronously.
//
// Both banks average raw samples over a fixed window (50 by default) and
// publish the mean in milliseconds once the window fills. Published values
// can be read from any goroutine.
//
// # Frame Flow
//
//	timer.StartCPU("frame")
//
//	enc := device.CreateCommandEncoder("frame")
//	writes, _ := timer.GPUPassDescriptor("geometry", gputimer.WriteBoth)
//	encodeGeometryPass(enc, writes)
//
//	_ = timer.BeforeSubmit(enc) // resolve + copy, after all passes
//	submit(enc)
//	_ = timer.AfterSubmit() // start async readback
//
//	_ = timer.StopCPU("frame")
//
//	fmt.Println(timer.CPUAverage("frame"), timer.GPUAverage("geometry"))
//
// # Readback
//
// The result buffer of a GPU timer can only hold one frame. While it is
// being mapped, BeforeSubmit and AfterSubmit skip that timer, so frames are
// dropped from the average instead of queued. Map completion is driven by
// the device and may arrive several frames later.
//
// A sample whose end timestamp precedes its start discards the whole
// in-progress window for that timer. The previously published average is
// kept.
//
// # Capability
//
// When the device has no timestamp query support (or no device is given),
// GPUPassDescriptor returns [gpucore.NoopTimestampWrites], GPU averages stay
// at 0, and CPU timing works as usual.
//
// # Backends
//
// The device boundary is [gpucore.Device]. The backend/software package
// provides a deterministic in-memory implementation used by the tests and
// by cmd/gputimer-demo.
package gputimer

package gputimer

import "errors"

// Timer errors.
var (
	// ErrTimerNotStarted is returned by StopCPU without a matching StartCPU.
	ErrTimerNotStarted = errors.New("gputimer: timer stopped without being started")

	// ErrUnknownTimer is returned when requesting a pass descriptor for a
	// name that was not registered and lazy creation is disabled.
	ErrUnknownTimer = errors.New("gputimer: unknown timer")

	// ErrNilEncoder is returned by BeforeSubmit without a command encoder.
	ErrNilEncoder = errors.New("gputimer: command encoder is nil")

	// ErrClosed is returned by GPU operations after Close.
	ErrClosed = errors.New("gputimer: timer is closed")
)

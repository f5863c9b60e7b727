package boot

import "errors"

// Domain-specific errors for the device runtime.
var (
	// ErrNotStarted is returned when an operation needs a running runner.
	ErrNotStarted = errors.New("boot: runner not started")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("boot: runner already started")

	// ErrInvalidTopic is returned for topics outside the set-topic layout.
	ErrInvalidTopic = errors.New("boot: invalid set topic")

	// ErrWrongDevice is returned for set topics addressed to another device.
	ErrWrongDevice = errors.New("boot: topic addressed to another device")

	// ErrQueueFull is returned when the inbound update queue is full.
	ErrQueueFull = errors.New("boot: inbound queue full")
)

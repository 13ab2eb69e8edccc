package capture

import "errors"

// Sentinel errors classifying capture failures. Setup failures are
// unrecoverable for the run; ErrIOFailed terminates the loop but teardown
// still proceeds. All are wrapped with call-site detail, so match with
// errors.Is.
var (
	// ErrOpenFailed reports a device node that could not be opened.
	ErrOpenFailed = errors.New("device open failed")

	// ErrCapabilityMissing reports a capture device without multi-planar
	// streaming support.
	ErrCapabilityMissing = errors.New("required capability missing")

	// ErrDeviceRejected reports a refused format, buffer allocation, or
	// stream start.
	ErrDeviceRejected = errors.New("device rejected request")

	// ErrMapFailed reports a plane that could not be mapped or exported.
	ErrMapFailed = errors.New("buffer mapping failed")

	// ErrQueueFailed reports a buffer the driver refused to accept before
	// streaming started.
	ErrQueueFailed = errors.New("buffer queueing failed")

	// ErrIOFailed reports a dequeue or requeue failure while streaming.
	ErrIOFailed = errors.New("capture I/O failed")
)

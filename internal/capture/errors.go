package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a unique-key collision.
	ErrConflict = errors.New("already exists")
	// ErrJobNotActive is returned by conditional job writes when the job has
	// left the processing state.
	ErrJobNotActive = errors.New("job is not processing")
	// ErrNoDevices is the job-level failure for an empty device list.
	ErrNoDevices = errors.New("no valid device configuration")
	// ErrAlreadyQueued is returned when a job id is already waiting in the
	// queue.
	ErrAlreadyQueued = errors.New("job already queued")
	// ErrQueueClosed is returned by queues after shutdown.
	ErrQueueClosed = errors.New("queue closed")
	// ErrWebsiteNotFound is the job-level failure for a missing parent website.
	ErrWebsiteNotFound = errors.New("website not found")
)

// ValidationError reports bad client input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// CaptureError wraps a failed device capture.
type CaptureError struct {
	Device string
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Device, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// NewCaptureError wraps err with the device label unless it already is a
// CaptureError.
func NewCaptureError(device string, err error) error {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return err
	}
	return &CaptureError{Device: device, Err: err}
}

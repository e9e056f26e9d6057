package browser

import (
	"context"
	"errors"

	"github.com/JakeFAU/webcapture/internal/capture"
)

// ErrDisabled is returned by Noop for every capture.
var ErrDisabled = errors.New("browser executor not configured")

// Noop implements capture.Executor when no browser is available; every job
// it sees fails on its first device.
type Noop struct{}

// NewNoop creates a new Noop executor.
func NewNoop() *Noop {
	return &Noop{}
}

// Capture always fails.
func (Noop) Capture(_ context.Context, req capture.TaskRequest) (capture.TaskResult, error) {
	return capture.TaskResult{}, capture.NewCaptureError(req.Device.Label, ErrDisabled)
}

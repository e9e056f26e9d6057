// Package system provides a real clock implementation.
package system

import (
	"time"

	"github.com/JakeFAU/webcapture/internal/capture"
)

// Clock implements capture.Clock using time.Now. Timestamps are UTC and
// truncated to microseconds, the resolution Postgres stores.
type Clock struct{}

var _ capture.Clock = Clock{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

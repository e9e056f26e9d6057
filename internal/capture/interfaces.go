package capture

import (
	"context"
	"io"
	"time"
)

// WebsiteStore persists websites keyed by normalized domain.
type WebsiteStore interface {
	// GetOrCreateWebsite returns the website for site.Domain, inserting site
	// when none exists. Concurrent callers for the same domain observe the
	// same row.
	GetOrCreateWebsite(ctx context.Context, site Website) (Website, error)
	GetWebsite(ctx context.Context, id string) (Website, error)
}

// JobStore persists capture jobs. Status and progress writes are
// conditional so a terminal job never changes again.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)
	// ClaimJob moves a pending job to processing and records the lease. It
	// returns false when the job is not pending.
	ClaimJob(ctx context.Context, id, owner string, leaseUntil time.Time) (bool, error)
	// UpdateProgress raises progress (never lowers it) and renews the lease.
	// It returns ErrJobNotActive when the job is no longer processing.
	UpdateProgress(ctx context.Context, id string, progress int, leaseUntil time.Time) error
	CompleteJob(ctx context.Context, id string, at time.Time) error
	FailJob(ctx context.Context, id string, message string) error
	// ListExpiredLeases returns processing jobs whose lease ended before now.
	ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]Job, error)
	// FailExpiredJob fails a processing job only if its lease is still
	// expired at now.
	FailExpiredJob(ctx context.Context, id string, now time.Time, message string) (bool, error)
	// ListPendingBefore returns pending jobs created before the cutoff.
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]Job, error)
}

// PageStore persists the logical page of a job.
type PageStore interface {
	CreatePage(ctx context.Context, page Page) error
	SetPageTitle(ctx context.Context, id string, title string) error
	GetPage(ctx context.Context, id string) (Page, error)
	ListPagesByJob(ctx context.Context, jobID string) ([]Page, error)
}

// ScreenshotStore persists immutable screenshot rows.
type ScreenshotStore interface {
	CreateScreenshot(ctx context.Context, shot Screenshot) error
	GetScreenshot(ctx context.Context, id string) (Screenshot, error)
	ListScreenshotsByJob(ctx context.Context, jobID string) ([]Screenshot, error)
	ListScreenshotsByPage(ctx context.Context, pageID string) ([]Screenshot, error)
}

// DeviceProfileLookup finds a stored profile by exact name.
type DeviceProfileLookup interface {
	GetDeviceProfileByName(ctx context.Context, name string) (DeviceProfile, error)
}

// DeviceProfileStore persists device profiles.
type DeviceProfileStore interface {
	DeviceProfileLookup
	ListDeviceProfiles(ctx context.Context, defaultsOnly bool) ([]DeviceProfile, error)
	CreateDeviceProfile(ctx context.Context, profile DeviceProfile) error
}

// Store is the full persistence port.
type Store interface {
	WebsiteStore
	JobStore
	PageStore
	ScreenshotStore
	DeviceProfileStore
	Ping(ctx context.Context) error
}

// BlobStore writes and reads screenshot artifacts by relative key.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
	DeleteObject(ctx context.Context, path string) error
}

// Publisher pushes job completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Executor renders one URL in one device viewport.
type Executor interface {
	Capture(ctx context.Context, req TaskRequest) (TaskResult, error)
}

// Queue provides enqueue/dequeue semantics for capture jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs.
type IDGenerator interface {
	NewID() (string, error)
}

package capture

import (
	"time"
)

// JobStatus represents the lifecycle state of a capture job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusComplete, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Website is the parent record for every capture of a domain.
type Website struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
}

// Job is a single capture request spanning one or more devices.
type Job struct {
	ID             string     `json:"id"`
	WebsiteID      string     `json:"website_id"`
	URL            string     `json:"url"`
	Status         JobStatus  `json:"status"`
	Progress       int        `json:"progress"`
	DeviceTypes    []string   `json:"device_types"`
	FullPage       bool       `json:"capture_full_page"`
	DynamicContent bool       `json:"capture_dynamic_elements"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	Error          *string    `json:"error"`
	LeaseOwner     string     `json:"-"`
	LeaseExpires   *time.Time `json:"-"`
}

// Page is the logical page captured by a job. Its title comes from the first
// device that captured successfully.
type Page struct {
	ID        string    `json:"id"`
	JobID     string    `json:"capture_id"`
	WebsiteID string    `json:"website_id"`
	URL       string    `json:"url"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Screenshot is persisted once per successful (job, device) pair.
type Screenshot struct {
	ID            string             `json:"id"`
	JobID         string             `json:"capture_id"`
	PageID        string             `json:"page_id"`
	Path          string             `json:"path"`
	ThumbnailPath string             `json:"thumbnail_path"`
	Width         int                `json:"width"`
	Height        int                `json:"height"`
	DeviceType    string             `json:"device_type"`
	Version       int                `json:"version"`
	Metadata      ScreenshotMetadata `json:"metadata"`
	CreatedAt     time.Time          `json:"created_at"`
}

// ScreenshotMetadata describes the render that produced a screenshot. Extra
// holds open-ended capture-time details.
type ScreenshotMetadata struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	CapturedAt  time.Time      `json:"captureTime"`
	DeviceType  string         `json:"deviceType"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	FullPage    bool           `json:"fullPage"`
	StatusCode  *int           `json:"statusCode"`
	Links       []string       `json:"links"`
	ContentHash string         `json:"contentHash,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// DeviceProfile is a stored viewport preset that overrides the built-ins.
type DeviceProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	IsDefault bool      `json:"is_default"`
	UserID    *string   `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Device is a resolved device label with its viewport size.
type Device struct {
	Label  string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// TaskRequest is the input of one device capture.
type TaskRequest struct {
	URL      string
	Device   Device
	FullPage bool
	Dynamic  bool
}

// TaskResult is what the executor returns for a successful device capture.
type TaskResult struct {
	Title      string
	Links      []string
	Screenshot []byte
	Thumbnail  []byte
	StatusCode *int
	Metadata   ScreenshotMetadata
}

// JobFilter narrows job listings.
type JobFilter struct {
	WebsiteID string
	Skip      int
	Limit     int
}

// QueueItem wraps a job id ready to be orchestrated.
type QueueItem struct {
	JobID     string
	Attempt   int
	Submitted int64
}

package capture

import "time"

// JobEvent is published when a job reaches a terminal state.
type JobEvent struct {
	JobID       string     `json:"job_id"`
	WebsiteID   string     `json:"website_id"`
	URL         string     `json:"url"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Error       *string    `json:"error,omitempty"`
	Screenshots int        `json:"screenshots"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// Attributes returns message attributes that let subscribers filter without
// decoding the body.
func (e JobEvent) Attributes() map[string]string {
	return map[string]string{
		"event":      "capture." + string(e.Status),
		"job_id":     e.JobID,
		"website_id": e.WebsiteID,
	}
}

// Package status projects stored capture jobs into the read models served
// to polling clients. Reads hit the store directly.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/webcapture/internal/capture"
)

// Listing bounds applied by List.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// WebsiteSummary is the website block of a JobDetail.
type WebsiteSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

// PageSummary is one page of a JobDetail.
type PageSummary struct {
	ID    string  `json:"id"`
	URL   string  `json:"url"`
	Title *string `json:"title"`
}

// ScreenshotSummary describes a stored screenshot without its metadata bag.
type ScreenshotSummary struct {
	ID            string `json:"id"`
	PageID        string `json:"page_id"`
	DeviceType    string `json:"device_type"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Version       int    `json:"version"`
	Path          string `json:"path"`
	ThumbnailPath string `json:"thumbnail_path"`
}

// JobDetail is the full view of one job.
type JobDetail struct {
	capture.Job
	Website            *WebsiteSummary     `json:"website"`
	Pages              []PageSummary       `json:"pages"`
	PageCount          int                 `json:"page_count"`
	CompletedPageCount int                 `json:"completed_page_count"`
	Screenshots        []ScreenshotSummary `json:"screenshots"`
}

// JobStatusView is the lightweight polling view.
type JobStatusView struct {
	ID       string            `json:"id"`
	Status   capture.JobStatus `json:"status"`
	Progress int               `json:"progress"`
	Error    *string           `json:"error"`
}

// ListFilter narrows List.
type ListFilter struct {
	WebsiteID string
	Skip      int
	Limit     int
}

// Service reads job projections from the store.
type Service struct {
	store capture.Store
}

// New constructs a Service.
func New(store capture.Store) *Service {
	return &Service{store: store}
}

// Status returns the polling view of a job.
func (s *Service) Status(ctx context.Context, id string) (JobStatusView, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return JobStatusView{}, fmt.Errorf("get job: %w", err)
	}
	return JobStatusView{ID: job.ID, Status: job.Status, Progress: job.Progress, Error: job.Error}, nil
}

// Detail returns the job with its website, pages and screenshots.
func (s *Service) Detail(ctx context.Context, id string) (JobDetail, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return JobDetail{}, fmt.Errorf("get job: %w", err)
	}
	return s.detail(ctx, job)
}

// List returns job details newest first. Limit defaults to DefaultLimit and
// is capped at MaxLimit.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]JobDetail, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}
	jobs, err := s.store.ListJobs(ctx, capture.JobFilter{WebsiteID: filter.WebsiteID, Skip: skip, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]JobDetail, 0, len(jobs))
	for _, job := range jobs {
		detail, err := s.detail(ctx, job)
		if err != nil {
			return nil, err
		}
		out = append(out, detail)
	}
	return out, nil
}

// PageScreenshots lists the screenshots of one page.
func (s *Service) PageScreenshots(ctx context.Context, pageID string) ([]ScreenshotSummary, error) {
	if _, err := s.store.GetPage(ctx, pageID); err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	shots, err := s.store.ListScreenshotsByPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	return summarizeScreenshots(shots), nil
}

func (s *Service) detail(ctx context.Context, job capture.Job) (JobDetail, error) {
	detail := JobDetail{Job: job}

	// A missing website is reported as a null block; the job itself carries
	// the failure.
	site, err := s.store.GetWebsite(ctx, job.WebsiteID)
	switch {
	case err == nil:
		detail.Website = &WebsiteSummary{ID: site.ID, Name: site.Name, Domain: site.Domain, URL: site.URL}
	case !errors.Is(err, capture.ErrNotFound):
		return JobDetail{}, fmt.Errorf("get website: %w", err)
	}

	pages, err := s.store.ListPagesByJob(ctx, job.ID)
	if err != nil {
		return JobDetail{}, fmt.Errorf("list pages: %w", err)
	}
	detail.Pages = make([]PageSummary, 0, len(pages))
	for _, p := range pages {
		detail.Pages = append(detail.Pages, PageSummary{ID: p.ID, URL: p.URL, Title: p.Title})
	}
	detail.PageCount = len(pages)
	if job.Status == capture.JobStatusComplete {
		detail.CompletedPageCount = len(pages)
	}

	shots, err := s.store.ListScreenshotsByJob(ctx, job.ID)
	if err != nil {
		return JobDetail{}, fmt.Errorf("list screenshots: %w", err)
	}
	detail.Screenshots = summarizeScreenshots(shots)
	return detail, nil
}

func summarizeScreenshots(shots []capture.Screenshot) []ScreenshotSummary {
	out := make([]ScreenshotSummary, 0, len(shots))
	for _, shot := range shots {
		out = append(out, ScreenshotSummary{
			ID:            shot.ID,
			PageID:        shot.PageID,
			DeviceType:    shot.DeviceType,
			Width:         shot.Width,
			Height:        shot.Height,
			Version:       shot.Version,
			Path:          shot.Path,
			ThumbnailPath: shot.ThumbnailPath,
		})
	}
	return out
}

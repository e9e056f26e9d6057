package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/JakeFAU/webcapture/internal/capture"
)

// CreatePage stores the page of a job.
func (s *Store) CreatePage(_ context.Context, page capture.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pages[page.ID]; exists {
		return errors.New("page already exists")
	}
	s.pages[page.ID] = page
	return nil
}

// SetPageTitle sets the title once; later calls are ignored.
func (s *Store) SetPageTitle(_ context.Context, id string, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[id]
	if !ok {
		return fmt.Errorf("page %s: %w", id, capture.ErrNotFound)
	}
	if page.Title != nil {
		return nil
	}
	t := title
	page.Title = &t
	s.pages[id] = page
	return nil
}

// GetPage fetches a page by ID.
func (s *Store) GetPage(_ context.Context, id string) (capture.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[id]
	if !ok {
		return capture.Page{}, fmt.Errorf("page %s: %w", id, capture.ErrNotFound)
	}
	return page, nil
}

// ListPagesByJob returns the pages recorded for a job.
func (s *Store) ListPagesByJob(_ context.Context, jobID string) ([]capture.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.Page, 0, 1)
	for _, page := range s.pages {
		if page.JobID == jobID {
			out = append(out, page)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CreateScreenshot stores an immutable screenshot row. The owning job must
// still be processing.
func (s *Store) CreateScreenshot(_ context.Context, shot capture.Screenshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.screenshots[shot.ID]; exists {
		return errors.New("screenshot already exists")
	}
	if _, ok := s.pages[shot.PageID]; !ok {
		return fmt.Errorf("page %s: %w", shot.PageID, capture.ErrNotFound)
	}
	job, ok := s.jobs[shot.JobID]
	if !ok {
		return fmt.Errorf("job %s: %w", shot.JobID, capture.ErrNotFound)
	}
	if job.Status != capture.JobStatusProcessing {
		return fmt.Errorf("job %s: %w", shot.JobID, capture.ErrJobNotActive)
	}
	shot.Metadata.Links = append([]string(nil), shot.Metadata.Links...)
	s.screenshots[shot.ID] = shot
	return nil
}

// GetScreenshot fetches a screenshot by ID.
func (s *Store) GetScreenshot(_ context.Context, id string) (capture.Screenshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shot, ok := s.screenshots[id]
	if !ok {
		return capture.Screenshot{}, fmt.Errorf("screenshot %s: %w", id, capture.ErrNotFound)
	}
	return shot, nil
}

// ListScreenshotsByJob returns a job's screenshots in creation order.
func (s *Store) ListScreenshotsByJob(_ context.Context, jobID string) ([]capture.Screenshot, error) {
	return s.screenshotsWhere(func(shot capture.Screenshot) bool { return shot.JobID == jobID }), nil
}

// ListScreenshotsByPage returns a page's screenshots in creation order.
func (s *Store) ListScreenshotsByPage(_ context.Context, pageID string) ([]capture.Screenshot, error) {
	return s.screenshotsWhere(func(shot capture.Screenshot) bool { return shot.PageID == pageID }), nil
}

func (s *Store) screenshotsWhere(keep func(capture.Screenshot) bool) []capture.Screenshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.Screenshot, 0)
	for _, shot := range s.screenshots {
		if keep(shot) {
			out = append(out, shot)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

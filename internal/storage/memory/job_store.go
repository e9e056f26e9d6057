package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/JakeFAU/webcapture/internal/capture"
)

// CreateJob stores a new job.
func (s *Store) CreateJob(_ context.Context, job capture.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	if _, ok := s.websites[job.WebsiteID]; !ok {
		return fmt.Errorf("website %s: %w", job.WebsiteID, capture.ErrNotFound)
	}
	job.DeviceTypes = append([]string(nil), job.DeviceTypes...)
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(_ context.Context, id string) (capture.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return capture.Job{}, fmt.Errorf("job %s: %w", id, capture.ErrNotFound)
	}
	return cloneJob(job), nil
}

// ListJobs returns jobs newest first, optionally for one website.
func (s *Store) ListJobs(_ context.Context, filter capture.JobFilter) ([]capture.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]capture.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.WebsiteID != "" && job.WebsiteID != filter.WebsiteID {
			continue
		}
		all = append(all, cloneJob(job))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if filter.Skip >= len(all) {
		return []capture.Job{}, nil
	}
	all = all[filter.Skip:]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

// ClaimJob moves a pending job to processing under owner's lease.
func (s *Store) ClaimJob(_ context.Context, id, owner string, leaseUntil time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, fmt.Errorf("job %s: %w", id, capture.ErrNotFound)
	}
	if job.Status != capture.JobStatusPending {
		return false, nil
	}
	job.Status = capture.JobStatusProcessing
	job.LeaseOwner = owner
	job.LeaseExpires = pointerTime(leaseUntil)
	s.jobs[id] = job
	return true, nil
}

// UpdateProgress raises progress and renews the lease of a processing job.
func (s *Store) UpdateProgress(_ context.Context, id string, progress int, leaseUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, capture.ErrNotFound)
	}
	if job.Status != capture.JobStatusProcessing {
		return fmt.Errorf("job %s: %w", id, capture.ErrJobNotActive)
	}
	job.Progress = max(job.Progress, clampProgress(progress))
	job.LeaseExpires = pointerTime(leaseUntil)
	s.jobs[id] = job
	return nil
}

// CompleteJob marks a processing job complete at progress 100.
func (s *Store) CompleteJob(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, capture.ErrNotFound)
	}
	if job.Status != capture.JobStatusProcessing {
		return fmt.Errorf("job %s: %w", id, capture.ErrJobNotActive)
	}
	job.Status = capture.JobStatusComplete
	job.Progress = 100
	job.CompletedAt = pointerTime(at)
	job.Error = nil
	job.LeaseOwner = ""
	job.LeaseExpires = nil
	s.jobs[id] = job
	return nil
}

// FailJob records message on a non-terminal job.
func (s *Store) FailJob(_ context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, capture.ErrNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s: %w", id, capture.ErrJobNotActive)
	}
	s.jobs[id] = failed(job, message)
	return nil
}

// ListExpiredLeases returns processing jobs whose lease ended before now.
func (s *Store) ListExpiredLeases(_ context.Context, now time.Time, limit int) ([]capture.Job, error) {
	return s.listWhere(limit, func(job capture.Job) bool {
		return leaseExpired(job, now)
	}), nil
}

// FailExpiredJob fails id only while its lease is still expired.
func (s *Store) FailExpiredJob(_ context.Context, id string, now time.Time, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, fmt.Errorf("job %s: %w", id, capture.ErrNotFound)
	}
	if !leaseExpired(job, now) {
		return false, nil
	}
	s.jobs[id] = failed(job, message)
	return true, nil
}

// ListPendingBefore returns pending jobs created before the cutoff, oldest
// first.
func (s *Store) ListPendingBefore(_ context.Context, before time.Time, limit int) ([]capture.Job, error) {
	return s.listWhere(limit, func(job capture.Job) bool {
		return job.Status == capture.JobStatusPending && job.CreatedAt.Before(before)
	}), nil
}

func (s *Store) listWhere(limit int, keep func(capture.Job) bool) []capture.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.Job, 0)
	for _, job := range s.jobs {
		if keep(job) {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func leaseExpired(job capture.Job, now time.Time) bool {
	return job.Status == capture.JobStatusProcessing &&
		job.LeaseExpires != nil && job.LeaseExpires.Before(now)
}

func failed(job capture.Job, message string) capture.Job {
	msg := message
	job.Status = capture.JobStatusFailed
	job.Error = &msg
	job.CompletedAt = nil
	job.LeaseOwner = ""
	job.LeaseExpires = nil
	return job
}

func clampProgress(p int) int {
	return min(max(p, 0), 100)
}

func cloneJob(job capture.Job) capture.Job {
	job.DeviceTypes = append([]string(nil), job.DeviceTypes...)
	return job
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

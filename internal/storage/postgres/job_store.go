package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/webcapture/internal/capture"
)

const jobColumns = `id, website_id, url, status, progress, device_types, capture_full_page,
	capture_dynamic_elements, created_at, completed_at, error, COALESCE(lease_owner, ''), lease_expires`

func scanJob(row pgx.Row) (capture.Job, error) {
	var (
		job    capture.Job
		status string
	)
	err := row.Scan(
		&job.ID,
		&job.WebsiteID,
		&job.URL,
		&status,
		&job.Progress,
		&job.DeviceTypes,
		&job.FullPage,
		&job.DynamicContent,
		&job.CreatedAt,
		&job.CompletedAt,
		&job.Error,
		&job.LeaseOwner,
		&job.LeaseExpires,
	)
	if err != nil {
		return capture.Job{}, err
	}
	job.Status = capture.JobStatus(status)
	return job, nil
}

func collectJobs(rows pgx.Rows) ([]capture.Job, error) {
	defer rows.Close()
	jobs := make([]capture.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// CreateJob inserts a new job row.
func (s *Store) CreateJob(ctx context.Context, job capture.Job) error {
	deviceTypes := job.DeviceTypes
	if deviceTypes == nil {
		deviceTypes = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO captures (id, website_id, url, status, progress, device_types,
			capture_full_page, capture_dynamic_elements, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.WebsiteID, job.URL, string(job.Status), job.Progress, deviceTypes,
		job.FullPage, job.DynamicContent, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (capture.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM captures WHERE id = $1`, id))
	if err != nil {
		return capture.Job{}, notFound("job", id, err)
	}
	return job, nil
}

// ListJobs returns jobs newest first. A zero limit means no limit.
func (s *Store) ListJobs(ctx context.Context, filter capture.JobFilter) ([]capture.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM captures
		WHERE ($1::text = '' OR website_id = $1)
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT NULLIF($3::int, 0)`,
		filter.WebsiteID, filter.Skip, filter.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

// ClaimJob moves a pending job to processing under owner's lease.
func (s *Store) ClaimJob(ctx context.Context, id, owner string, leaseUntil time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE captures
		SET status = 'processing', lease_owner = $2, lease_expires = $3
		WHERE id = $1 AND status = 'pending'`,
		id, owner, leaseUntil,
	)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM captures WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check job: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("job %s: %w", id, capture.ErrNotFound)
	}
	return false, nil
}

// UpdateProgress raises progress and renews the lease while the job is
// processing.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress int, leaseUntil time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE captures
		SET progress = GREATEST(progress, LEAST(GREATEST($2::int, 0), 100)), lease_expires = $3
		WHERE id = $1 AND status = 'processing'`,
		id, progress, leaseUntil,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, capture.ErrJobNotActive)
	}
	return nil
}

// CompleteJob marks a processing job complete at progress 100.
func (s *Store) CompleteJob(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE captures
		SET status = 'complete', progress = 100, completed_at = $2, error = NULL,
			lease_owner = NULL, lease_expires = NULL
		WHERE id = $1 AND status = 'processing'`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, capture.ErrJobNotActive)
	}
	return nil
}

// FailJob records message on a non-terminal job.
func (s *Store) FailJob(ctx context.Context, id string, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE captures
		SET status = 'failed', error = $2, completed_at = NULL,
			lease_owner = NULL, lease_expires = NULL
		WHERE id = $1 AND status IN ('pending', 'processing')`,
		id, message,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, capture.ErrJobNotActive)
	}
	return nil
}

// ListExpiredLeases returns processing jobs whose lease ended before now.
func (s *Store) ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]capture.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM captures
		WHERE status = 'processing' AND lease_expires < $1
		ORDER BY created_at
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired leases: %w", err)
	}
	return collectJobs(rows)
}

// FailExpiredJob fails id only while its lease is still expired, so a worker
// that renewed in the meantime keeps the job.
func (s *Store) FailExpiredJob(ctx context.Context, id string, now time.Time, message string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE captures
		SET status = 'failed', error = $3, completed_at = NULL,
			lease_owner = NULL, lease_expires = NULL
		WHERE id = $1 AND status = 'processing' AND lease_expires < $2`,
		id, now, message,
	)
	if err != nil {
		return false, fmt.Errorf("fail expired job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListPendingBefore returns pending jobs created before the cutoff, oldest
// first.
func (s *Store) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]capture.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM captures
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	return collectJobs(rows)
}

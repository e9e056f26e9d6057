package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/webcapture/internal/capture"
)

const (
	pageColumns       = `id, capture_id, website_id, url, title, created_at`
	screenshotColumns = `id, capture_id, page_id, path, thumbnail_path, width, height,
	device_type, version, metadata, created_at`
)

func scanPage(row pgx.Row) (capture.Page, error) {
	var page capture.Page
	err := row.Scan(&page.ID, &page.JobID, &page.WebsiteID, &page.URL, &page.Title, &page.CreatedAt)
	return page, err
}

func scanScreenshot(row pgx.Row) (capture.Screenshot, error) {
	var (
		shot capture.Screenshot
		meta []byte
	)
	err := row.Scan(
		&shot.ID,
		&shot.JobID,
		&shot.PageID,
		&shot.Path,
		&shot.ThumbnailPath,
		&shot.Width,
		&shot.Height,
		&shot.DeviceType,
		&shot.Version,
		&meta,
		&shot.CreatedAt,
	)
	if err != nil {
		return capture.Screenshot{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &shot.Metadata); err != nil {
			return capture.Screenshot{}, fmt.Errorf("decode screenshot metadata: %w", err)
		}
	}
	return shot, nil
}

// CreatePage inserts the page of a job.
func (s *Store) CreatePage(ctx context.Context, page capture.Page) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pages (id, capture_id, website_id, url, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		page.ID, page.JobID, page.WebsiteID, page.URL, page.Title, page.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

// SetPageTitle sets the title only if none is recorded yet.
func (s *Store) SetPageTitle(ctx context.Context, id string, title string) error {
	if _, err := s.pool.Exec(ctx, `UPDATE pages SET title = $2 WHERE id = $1 AND title IS NULL`, id, title); err != nil {
		return fmt.Errorf("set page title: %w", err)
	}
	return nil
}

// GetPage fetches a page by ID.
func (s *Store) GetPage(ctx context.Context, id string) (capture.Page, error) {
	page, err := scanPage(s.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = $1`, id))
	if err != nil {
		return capture.Page{}, notFound("page", id, err)
	}
	return page, nil
}

// ListPagesByJob returns the pages recorded for a job.
func (s *Store) ListPagesByJob(ctx context.Context, jobID string) ([]capture.Page, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE capture_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()
	pages := make([]capture.Page, 0, 1)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}

// CreateScreenshot inserts a screenshot row with its metadata as JSONB. The
// insert only lands while the owning capture is still processing.
func (s *Store) CreateScreenshot(ctx context.Context, shot capture.Screenshot) error {
	meta, err := json.Marshal(shot.Metadata)
	if err != nil {
		return fmt.Errorf("encode screenshot metadata: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO screenshots (id, capture_id, page_id, path, thumbnail_path, width, height,
			device_type, version, metadata, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		WHERE EXISTS (SELECT 1 FROM captures WHERE id = $2 AND status = 'processing')`,
		shot.ID, shot.JobID, shot.PageID, shot.Path, shot.ThumbnailPath, shot.Width, shot.Height,
		shot.DeviceType, shot.Version, meta, shot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert screenshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", shot.JobID, capture.ErrJobNotActive)
	}
	return nil
}

// GetScreenshot fetches a screenshot by ID.
func (s *Store) GetScreenshot(ctx context.Context, id string) (capture.Screenshot, error) {
	shot, err := scanScreenshot(s.pool.QueryRow(ctx, `SELECT `+screenshotColumns+` FROM screenshots WHERE id = $1`, id))
	if err != nil {
		return capture.Screenshot{}, notFound("screenshot", id, err)
	}
	return shot, nil
}

// ListScreenshotsByJob returns a job's screenshots in creation order.
func (s *Store) ListScreenshotsByJob(ctx context.Context, jobID string) ([]capture.Screenshot, error) {
	return s.listScreenshots(ctx, `capture_id`, jobID)
}

// ListScreenshotsByPage returns a page's screenshots in creation order.
func (s *Store) ListScreenshotsByPage(ctx context.Context, pageID string) ([]capture.Screenshot, error) {
	return s.listScreenshots(ctx, `page_id`, pageID)
}

// listScreenshots filters on column, which is always a constant from this file.
func (s *Store) listScreenshots(ctx context.Context, column, value string) ([]capture.Screenshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+screenshotColumns+` FROM screenshots WHERE `+column+
		` = $1 ORDER BY created_at, id`, value)
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	defer rows.Close()
	shots := make([]capture.Screenshot, 0)
	for rows.Next() {
		shot, err := scanScreenshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan screenshot: %w", err)
		}
		shots = append(shots, shot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screenshots: %w", err)
	}
	return shots, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/JakeFAU/webcapture/internal/capture"
)

const websiteColumns = `id, name, url, domain, created_at`

// GetOrCreateWebsite inserts site unless its domain exists, then returns the
// stored row. The unique domain constraint settles concurrent callers.
func (s *Store) GetOrCreateWebsite(ctx context.Context, site capture.Website) (capture.Website, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO websites (id, name, url, domain, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (domain) DO NOTHING`,
		site.ID, site.Name, site.URL, site.Domain, site.CreatedAt,
	)
	if err != nil {
		return capture.Website{}, fmt.Errorf("insert website: %w", err)
	}
	row := s.pool.QueryRow(ctx, `SELECT `+websiteColumns+` FROM websites WHERE domain = $1`, site.Domain)
	var out capture.Website
	if err := row.Scan(&out.ID, &out.Name, &out.URL, &out.Domain, &out.CreatedAt); err != nil {
		return capture.Website{}, notFound("website", site.Domain, err)
	}
	return out, nil
}

// GetWebsite fetches a website by ID.
func (s *Store) GetWebsite(ctx context.Context, id string) (capture.Website, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+websiteColumns+` FROM websites WHERE id = $1`, id)
	var out capture.Website
	if err := row.Scan(&out.ID, &out.Name, &out.URL, &out.Domain, &out.CreatedAt); err != nil {
		return capture.Website{}, notFound("website", id, err)
	}
	return out, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/webcapture/internal/capture"
)

const uniqueViolation = "23505"

const profileColumns = `id, name, width, height, is_default, user_id, created_at`

func scanProfile(row pgx.Row) (capture.DeviceProfile, error) {
	var p capture.DeviceProfile
	err := row.Scan(&p.ID, &p.Name, &p.Width, &p.Height, &p.IsDefault, &p.UserID, &p.CreatedAt)
	return p, err
}

// GetDeviceProfileByName returns the stored profile with exactly name.
func (s *Store) GetDeviceProfileByName(ctx context.Context, name string) (capture.DeviceProfile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM device_profiles WHERE name = $1`, name))
	if err != nil {
		return capture.DeviceProfile{}, notFound("device profile", name, err)
	}
	return p, nil
}

// ListDeviceProfiles returns profiles ordered by name.
func (s *Store) ListDeviceProfiles(ctx context.Context, defaultsOnly bool) ([]capture.DeviceProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM device_profiles
		WHERE NOT $1::bool OR is_default
		ORDER BY name`, defaultsOnly)
	if err != nil {
		return nil, fmt.Errorf("list device profiles: %w", err)
	}
	defer rows.Close()
	out := make([]capture.DeviceProfile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device profiles: %w", err)
	}
	return out, nil
}

// CreateDeviceProfile inserts a profile.
func (s *Store) CreateDeviceProfile(ctx context.Context, p capture.DeviceProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO device_profiles (id, name, width, height, is_default, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.Width, p.Height, p.IsDefault, p.UserID, p.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("device profile %q: %w", p.Name, capture.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert device profile: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GERARD818/Watcher-AI/internal/models"
)

// UpsertCamera creates the camera or updates its location and status.
// Камеры заводятся администратором, пайплайн их не создаёт.
func (d *Database) UpsertCamera(ctx context.Context, camera *models.Camera) error {
	_, err := d.DB.ExecContext(ctx,
		`INSERT INTO cameras (id, location, status) VALUES ($1, $2, $3)
			 	ON CONFLICT (id) DO UPDATE SET location = $2, status = $3`,
		camera.ID,
		camera.Location,
		camera.Status,
	)

	return err
}

// GetCamera returns nil when the camera does not exist.
func (d *Database) GetCamera(ctx context.Context, cameraID string) (*models.Camera, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, location, status
		FROM cameras
		WHERE id = $1
	`, cameraID)

	var camera models.Camera
	err := row.Scan(
		&camera.ID,
		&camera.Location,
		&camera.Status,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}

	return &camera, nil
}

package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GERARD818/Watcher-AI/internal/models"
)

// SaveDetections inserts all rows of one frame as a single transaction.
// Либо записываются все детекции кадра, либо ни одной.
func (d *Database) SaveDetections(ctx context.Context, detections []models.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detections (id, timestamp, label, confidence, bbox, frame_index, track_id, camera_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		bbox, err := json.Marshal(det.BBox)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to marshal bbox: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			det.ID,
			det.Timestamp,
			det.Label,
			det.Confidence,
			bbox,
			det.FrameIndex,
			det.TrackID,
			det.CameraID,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit detections: %w", err)
	}

	return nil
}

// GetDetections retrieves recent detections, optionally filtered by camera
func (d *Database) GetDetections(ctx context.Context, cameraID string, limit int) ([]models.Detection, error) {
	query := `
		SELECT id, timestamp, label, confidence, bbox, frame_index, track_id, camera_id
		FROM detections
	`
	args := []any{}
	if cameraID != "" {
		query += " WHERE camera_id = $1"
		args = append(args, cameraID)
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var detections []models.Detection
	for rows.Next() {
		var det models.Detection
		var bbox []byte
		err := rows.Scan(
			&det.ID,
			&det.Timestamp,
			&det.Label,
			&det.Confidence,
			&bbox,
			&det.FrameIndex,
			&det.TrackID,
			&det.CameraID,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(bbox, &det.BBox); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bbox: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

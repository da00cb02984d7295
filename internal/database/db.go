package database

import (
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Database represents the database connection and operations
type Database struct {
	DB *sql.DB
}

// New creates a new Database instance
func New(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err = db.Ping(); err != nil {
		return nil, err
	}

	return &Database{DB: db}, nil
}

// Init creates the required tables if they don't exist
func (d *Database) Init() error {
	createTables := `
	CREATE TABLE IF NOT EXISTS cameras (
		id TEXT PRIMARY KEY,
		location TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active'
	);

	CREATE TABLE IF NOT EXISTS detections (
		id UUID PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		label TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		bbox JSONB NOT NULL,
		frame_index INTEGER NOT NULL,
		track_id BIGINT,
		camera_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections (timestamp);
	CREATE INDEX IF NOT EXISTS idx_detections_label ON detections (label);
	CREATE INDEX IF NOT EXISTS idx_detections_camera ON detections (camera_id);
	`

	_, err := d.DB.Exec(createTables)
	return err
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

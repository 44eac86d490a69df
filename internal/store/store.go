// Package store persists received elevation grids to sqlite so the adapter
// can warm-start after a restart and operators can inspect what was last
// seen. Grids are stored as gzip-compressed wire JSON.
package store

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "modernc.org/sqlite"

	"github.com/fieldrobotics/elevmap/internal/gridmap"
	"github.com/fieldrobotics/elevmap/internal/transport"
)

// ErrNoSnapshot is returned by LatestSnapshot when nothing has been saved
// for the requested frame.
var ErrNoSnapshot = errors.New("no snapshot for frame")

// Store wraps the sqlite snapshot database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the snapshot database at path. Use
// ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS elevation_snapshots (
			snapshot_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			frame             TEXT NOT NULL,
			taken_unix_nanos  BIGINT NOT NULL,
			grid_rows         INTEGER NOT NULL,
			grid_cols         INTEGER NOT NULL,
			resolution        DOUBLE NOT NULL,
			grid_blob         BLOB NOT NULL,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_frame
			ON elevation_snapshots(frame, taken_unix_nanos);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveSnapshot persists the grid and returns its snapshot ID.
func (s *Store) SaveSnapshot(g *gridmap.Map) (int64, error) {
	payload, err := transport.Encode(g)
	if err != nil {
		return 0, fmt.Errorf("failed to encode grid: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return 0, fmt.Errorf("failed to compress grid: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to compress grid: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO elevation_snapshots (frame, taken_unix_nanos, grid_rows, grid_cols, resolution, grid_blob)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(g.Frame()), g.Stamp().UnixNano(), g.Rows(), g.Cols(), g.Resolution(), buf.Bytes(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

// LatestSnapshot returns the most recently saved grid for the frame, or
// ErrNoSnapshot.
func (s *Store) LatestSnapshot(frame string) (*gridmap.Map, error) {
	var blob []byte
	err := s.db.QueryRow(`
		SELECT grid_blob FROM elevation_snapshots
		WHERE frame = ?
		ORDER BY snapshot_id DESC LIMIT 1`, frame,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	return transport.Decode(payload)
}

// Count returns the number of snapshots stored for the frame.
func (s *Store) Count(frame string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM elevation_snapshots WHERE frame = ?`, frame).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest keep snapshots for the frame.
func (s *Store) Prune(frame string, keep int) error {
	if keep < 1 {
		keep = 1
	}
	_, err := s.db.Exec(`
		DELETE FROM elevation_snapshots
		WHERE frame = ? AND snapshot_id NOT IN (
			SELECT snapshot_id FROM elevation_snapshots
			WHERE frame = ?
			ORDER BY snapshot_id DESC LIMIT ?
		)`, frame, frame, keep)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}

package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS progress_snapshots (
	app_id   TEXT PRIMARY KEY,
	payload  BLOB NOT NULL,
	saved_at INTEGER NOT NULL
)`

// SQLStore persists snapshots in a SQL table. It is exercised with the pure Go
// sqlite driver but only relies on portable statements plus an upsert.
type SQLStore struct {
	db    *sql.DB
	codec Codec[Snapshot]
}

var _ Store = (*SQLStore)(nil)

// OpenSQLite opens (creating when needed) a sqlite database at path and
// prepares the snapshot table. Use ":memory:" for an ephemeral database.
func OpenSQLite(ctx context.Context, path string, codec Codec[Snapshot]) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("progress: open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	store, err := NewSQLStore(ctx, db, codec)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open database and creates the table if missing.
func NewSQLStore(ctx context.Context, db *sql.DB, codec Codec[Snapshot]) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("progress: sql store needs a database")
	}
	if codec == nil {
		codec = JSONCodec[Snapshot]{}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("progress: create schema: %w", err)
	}
	return &SQLStore{db: db, codec: codec}, nil
}

// Close releases the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Save(ctx context.Context, appID string, snapshot Snapshot) error {
	if appID == "" {
		return ErrEmptyKey
	}
	data, err := s.codec.Encode(snapshot)
	if err != nil {
		return fmt.Errorf("progress: encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress_snapshots (app_id, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(app_id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		appID, data, snapshot.SavedAt)
	if err != nil {
		return fmt.Errorf("progress: sql save %s: %w", appID, err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, appID string) (*Snapshot, error) {
	if appID == "" {
		return nil, ErrEmptyKey
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM progress_snapshots WHERE app_id = ?`, appID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("progress: sql load %s: %w", appID, err)
	}
	return s.codec.Decode(data)
}

func (s *SQLStore) Clear(ctx context.Context, appID string) error {
	if appID == "" {
		return ErrEmptyKey
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM progress_snapshots WHERE app_id = ?`, appID); err != nil {
		return fmt.Errorf("progress: sql clear %s: %w", appID, err)
	}
	return nil
}

package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jaakkos/sketchstore/internal/app"
	"github.com/jaakkos/sketchstore/internal/domain"
)

// The table holds at most one row (id = 1): the current editor snapshot.
const schema = `
CREATE TABLE IF NOT EXISTS snapshot (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL,
	revision INTEGER NOT NULL DEFAULT 0,
	version_id TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL DEFAULT ''
);
`

// Store implements app.SnapshotRepository using SQLite.
type Store struct {
	db  *sql.DB
	dsn string
}

// New opens the SQLite database at path (creating parent dirs and schema) and returns a SnapshotRepository.
// An empty path opens a private in-memory database; a "file:" URI is passed through unchanged.
func New(path string) (app.SnapshotRepository, error) {
	dsn, inMemory, err := buildDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if inMemory {
		// An in-memory database lives only as long as a connection holds it.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db, dsn: dsn}, nil
}

// buildDSN maps a configured path to a driver DSN.
func buildDSN(path string) (dsn string, inMemory bool, err error) {
	switch {
	case path == "" || path == ":memory:":
		return fmt.Sprintf("file:sketchstore-%s?mode=memory&cache=shared", uuid.NewString()), true, nil
	case strings.HasPrefix(path, "file:"):
		return path, strings.Contains(path, "mode=memory"), nil
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", false, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", false, nil
}

// Close releases the database connection. Call on shutdown for clean exit.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// parseTime parses RFC3339Nano; an empty string is the zero time.
func parseTime(s, context string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: parse timestamp %q: %w", context, s, err)
	}
	return t, nil
}

// Load implements app.SnapshotRepository.
func (s *Store) Load() (*domain.Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("sqlite: store closed")
	}
	var (
		data      string
		versionID string
		updatedAt string
		snap      domain.Snapshot
	)
	err := s.db.QueryRow("SELECT data, revision, version_id, updated_at FROM snapshot WHERE id = 1").
		Scan(&data, &snap.Revision, &versionID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	t, err := parseTime(updatedAt, "snapshot")
	if err != nil {
		return nil, err
	}
	snap.Data = json.RawMessage(data)
	if len(snap.Data) == 0 {
		snap.Data = domain.Null
	}
	snap.VersionID = versionID
	snap.UpdatedAt = t
	return &snap, nil
}

// Save implements app.SnapshotRepository. The previous row is replaced.
func (s *Store) Save(snap *domain.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if s.db == nil {
		return fmt.Errorf("sqlite: store closed")
	}
	data := string(snap.Data)
	if data == "" {
		data = string(domain.Null)
	}
	updatedAt := ""
	if !snap.UpdatedAt.IsZero() {
		updatedAt = snap.UpdatedAt.Format(time.RFC3339Nano)
	}
	_, err := s.db.Exec(`INSERT INTO snapshot (id, data, revision, version_id, updated_at) VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, revision = excluded.revision,
	version_id = excluded.version_id, updated_at = excluded.updated_at`,
		data, snap.Revision, snap.VersionID, updatedAt)
	if err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	return nil
}

// Clear implements app.SnapshotRepository.
func (s *Store) Clear() error {
	if s.db == nil {
		return fmt.Errorf("sqlite: store closed")
	}
	if _, err := s.db.Exec("DELETE FROM snapshot"); err != nil {
		return fmt.Errorf("snapshot clear: %w", err)
	}
	return nil
}

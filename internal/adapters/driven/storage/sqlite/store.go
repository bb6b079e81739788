// Package sqlite provides SQLite-backed implementations of driven
// storage ports. Thumbnails cached here survive process restarts,
// unlike the in-memory LRU store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/pagecraft/pagecraft/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
)

// Store is a SQLite-based storage providing access to the persistent
// store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.pagecraft/data/pagecraft.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".pagecraft", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "pagecraft.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ThumbnailStore returns a ThumbnailStore interface backed by this store.
func (s *Store) ThumbnailStore() driven.ThumbnailStore {
	return &thumbnailStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Thumbnail Store ====================

// thumbnailStore implements driven.ThumbnailStore.
type thumbnailStore struct {
	store *Store
}

var _ driven.ThumbnailStore = (*thumbnailStore)(nil)

// Get retrieves a thumbnail record by unit id.
func (s *thumbnailStore) Get(ctx context.Context, unitID string) (*domain.ThumbnailRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT unit_id, payload, generated_at FROM thumbnails WHERE unit_id = ?
	`, unitID)

	var record domain.ThumbnailRecord
	err := row.Scan(&record.UnitID, &record.Payload, &record.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting thumbnail: %w", err)
	}
	return &record, nil
}

// Put stores or supersedes a thumbnail record.
func (s *thumbnailStore) Put(ctx context.Context, record domain.ThumbnailRecord) error {
	if record.GeneratedAt.IsZero() {
		record.GeneratedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO thumbnails (unit_id, payload, generated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(unit_id) DO UPDATE SET
			payload = excluded.payload,
			generated_at = excluded.generated_at
	`, record.UnitID, record.Payload, record.GeneratedAt)

	if err != nil {
		return fmt.Errorf("saving thumbnail: %w", err)
	}
	return nil
}

// Delete removes a thumbnail record. Deleting an absent record is
// not an error.
func (s *thumbnailStore) Delete(ctx context.Context, unitID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM thumbnails WHERE unit_id = ?", unitID)
	if err != nil {
		return fmt.Errorf("deleting thumbnail: %w", err)
	}
	return nil
}

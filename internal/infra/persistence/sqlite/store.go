// Package sqlite stores snapshots in an embedded SQLite database, one row per
// project and snapshot bucket.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"scenecore/internal/infra/persistence/migrate"
	"scenecore/pkg/domain"
)

var _ domain.SnapshotStore = (*Store)(nil)

//go:embed migrations/*.sql
var migrations embed.FS

// DefaultPath is used when no database path is configured.
const DefaultPath = "scenecore.db"

var migrateDB = func(ctx context.Context, db *sql.DB) error {
	return migrate.Up(ctx, db, "sqlite3", migrations, "migrations")
}

// Store persists snapshots to a SQLite file.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if needed) the database at path and applies
// pending migrations.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrateDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Driver implements domain.SnapshotStore.
func (s *Store) Driver() string { return "sqlite" }

// Save replaces every bucket of project in one transaction.
func (s *Store) Save(ctx context.Context, project string, snap domain.Snapshot) (retErr error) {
	buckets, err := domain.SnapshotBuckets(snap)
	if err != nil {
		return domain.IOError{Op: "encode", Path: project, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.IOError{Op: "begin", Path: s.path, Err: err}
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM state WHERE project = ?`, project); err != nil {
		return domain.IOError{Op: "clear " + project, Path: s.path, Err: err}
	}
	for _, bucket := range sortedKeys(buckets) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(project,bucket,payload) VALUES(?,?,?) ON CONFLICT(project,bucket) DO UPDATE SET payload=excluded.payload`, project, bucket, buckets[bucket]); err != nil {
			return domain.IOError{Op: "upsert " + bucket, Path: s.path, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.IOError{Op: "commit", Path: s.path, Err: err}
	}
	return nil
}

// Load reassembles the snapshot of project.
func (s *Store) Load(ctx context.Context, project string) (domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state WHERE project = ?`, project)
	if err != nil {
		return domain.Snapshot{}, domain.IOError{Op: "select state", Path: s.path, Err: err}
	}
	defer func() { _ = rows.Close() }()
	buckets := map[string][]byte{}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.Snapshot{}, domain.IOError{Op: "scan", Path: s.path, Err: err}
		}
		buckets[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, domain.IOError{Op: "iterate state", Path: s.path, Err: err}
	}
	if len(buckets) == 0 {
		return domain.Snapshot{}, domain.NotFoundError{Entity: domain.EntityProject, Key: project}
	}
	snap, err := domain.SnapshotFromBuckets(buckets)
	if err != nil {
		return domain.Snapshot{}, domain.IOError{Op: "decode", Path: project, Err: err}
	}
	return snap, nil
}

// List returns the stored project names, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project FROM state`)
	if err != nil {
		return nil, domain.IOError{Op: "list", Path: s.path, Err: err}
	}
	defer func() { _ = rows.Close() }()
	seen := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.IOError{Op: "scan", Path: s.path, Err: err}
		}
		seen[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, domain.IOError{Op: "iterate state", Path: s.path, Err: err}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func sortedKeys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

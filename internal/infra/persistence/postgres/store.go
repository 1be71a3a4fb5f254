// Package postgres stores snapshots in PostgreSQL, one JSONB row per project
// and snapshot bucket.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"scenecore/internal/infra/persistence/migrate"
	"scenecore/pkg/domain"
)

var _ domain.SnapshotStore = (*Store)(nil)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/scenecore?sslmode=disable"
)

var (
	sqlOpen   = sql.Open
	migrateDB = func(ctx context.Context, db *sql.DB) error {
		return migrate.Up(ctx, db, "postgres", migrations, "migrations")
	}
	openMu sync.Mutex
)

// Store persists snapshots to Postgres.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore connects using dsn (DefaultDSN when empty) and applies pending
// migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	run := migrateDB
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := run(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Driver implements domain.SnapshotStore.
func (s *Store) Driver() string { return "postgres" }

// Save replaces every bucket of project in one transaction.
func (s *Store) Save(ctx context.Context, project string, snap domain.Snapshot) error {
	buckets, err := domain.SnapshotBuckets(snap)
	if err != nil {
		return domain.IOError{Op: "encode", Path: project, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.IOError{Op: "begin tx", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM state WHERE project = $1`, project); err != nil {
		return domain.IOError{Op: "clear " + project, Err: err}
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, bucket := range keys {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(project,bucket,payload) VALUES($1,$2,$3) ON CONFLICT(project,bucket) DO UPDATE SET payload=EXCLUDED.payload`, project, bucket, buckets[bucket]); err != nil {
			return domain.IOError{Op: "upsert " + bucket, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.IOError{Op: "commit", Err: err}
	}
	committed = true
	return nil
}

// Load reassembles the snapshot of project.
func (s *Store) Load(ctx context.Context, project string) (domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state WHERE project = $1`, project)
	if err != nil {
		return domain.Snapshot{}, domain.IOError{Op: "select state", Err: err}
	}
	defer func() { _ = rows.Close() }()
	buckets := map[string][]byte{}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.Snapshot{}, domain.IOError{Op: "scan state", Err: err}
		}
		buckets[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, domain.IOError{Op: "iterate state", Err: err}
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
		return nil, domain.IOError{Op: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()
	seen := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.IOError{Op: "scan state", Err: err}
		}
		seen[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, domain.IOError{Op: "iterate state", Err: err}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

// OverrideMigrate swaps the migration step for tests and returns a restore
// function.
func OverrideMigrate(fn func(ctx context.Context, db *sql.DB) error) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := migrateDB
	migrateDB = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		migrateDB = prev
	}
}

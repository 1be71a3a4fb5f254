package core

import (
	"context"
	"fmt"
	"os"

	"scenecore/internal/backend"
	"scenecore/internal/infra/persistence/file"
	"scenecore/internal/infra/persistence/memory"
	"scenecore/internal/infra/persistence/postgres"
	"scenecore/internal/infra/persistence/sqlite"
	"scenecore/pkg/domain"
)

// StorageDriver identifies a concrete snapshot store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageFile     StorageDriver = "file"     // one JSON file per project
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageOptions selects and configures a snapshot store. Empty fields fall
// back to the environment:
//
//	SCENECORE_STORAGE_DRIVER: memory|file|sqlite|postgres (default file)
//	SCENECORE_FILE_DIR: snapshot directory for driver=file (default .)
//	SCENECORE_SQLITE_PATH: path to sqlite file (default ./scenecore.db)
//	SCENECORE_POSTGRES_DSN: postgres DSN when driver=postgres
type StorageOptions struct {
	Driver      StorageDriver
	FileDir     string
	SQLitePath  string
	PostgresDSN string
}

func envOr(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

// OpenSnapshotStore opens the store selected by opts.
func OpenSnapshotStore(ctx context.Context, opts StorageOptions) (domain.SnapshotStore, error) {
	driver := StorageDriver(envOr(string(opts.Driver), "SCENECORE_STORAGE_DRIVER"))
	if driver == "" {
		driver = StorageFile
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageFile:
		return file.NewStore(envOr(opts.FileDir, "SCENECORE_FILE_DIR"))
	case StorageSQLite:
		return sqlite.NewStore(ctx, envOr(opts.SQLitePath, "SCENECORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(ctx, envOr(opts.PostgresDSN, "SCENECORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// SaveTo captures the service's scene and writes it to store under the
// project name.
func SaveTo(ctx context.Context, s *Service, store domain.SnapshotStore) (domain.Snapshot, error) {
	snap := Save(s)
	if err := store.Save(ctx, snap.ProjectName, snap); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// LoadFrom reads a project from store and replays it onto a fresh service.
func LoadFrom(ctx context.Context, store domain.SnapshotStore, project string, b backend.Backend, opts ...Option) (*Service, error) {
	snap, err := store.Load(ctx, project)
	if err != nil {
		return nil, err
	}
	return Load(ctx, snap, b, opts...)
}

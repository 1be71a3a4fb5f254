// Package migrate applies embedded goose migrations. goose keeps its base
// filesystem and dialect in package state, so every store migrates through
// Up to serialize those settings.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

var mu sync.Mutex

// Up applies every pending migration found in dir of fsys.
func Up(ctx context.Context, db *sql.DB, dialect string, fsys fs.FS, dir string) error {
	mu.Lock()
	defer mu.Unlock()
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

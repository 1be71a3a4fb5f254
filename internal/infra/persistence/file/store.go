// Package file stores one JSON snapshot file per project in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scenecore/pkg/domain"
)

var _ domain.SnapshotStore = (*Store)(nil)

const ext = ".json"

// Store reads and writes <dir>/<project>.json.
type Store struct {
	dir string
}

// NewStore creates dir if needed and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, domain.IOError{Op: "create dir", Path: dir, Err: err}
	}
	return &Store{dir: dir}, nil
}

// Driver implements domain.SnapshotStore.
func (s *Store) Driver() string { return "file" }

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(project string) (string, error) {
	if project == "" || strings.ContainsAny(project, `/\`) || project == "." || project == ".." {
		return "", domain.ValidationError{Entity: domain.EntityProject, Field: "name", Message: fmt.Sprintf("%q cannot be used as a file name", project)}
	}
	return filepath.Join(s.dir, project+ext), nil
}

// Save writes the snapshot through a temporary file and renames it into
// place.
func (s *Store) Save(_ context.Context, project string, snap domain.Snapshot) error {
	path, err := s.path(project)
	if err != nil {
		return err
	}
	data, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return domain.IOError{Op: "encode", Path: path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return domain.IOError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return domain.IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// Load reads and decodes the project's snapshot file.
func (s *Store) Load(_ context.Context, project string) (domain.Snapshot, error) {
	path, err := s.path(project)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return ReadFile(path)
}

// List returns the project names with a snapshot file, sorted.
func (s *Store) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, domain.IOError{Op: "list", Path: s.dir, Err: err}
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(out)
	return out, nil
}

// ReadFile decodes a snapshot file at an arbitrary path.
func ReadFile(path string) (domain.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Snapshot{}, domain.NotFoundError{Entity: domain.EntityProject, Key: strings.TrimSuffix(filepath.Base(path), ext)}
		}
		return domain.Snapshot{}, domain.IOError{Op: "read", Path: path, Err: err}
	}
	snap, err := domain.DecodeSnapshot(data)
	if err != nil {
		return domain.Snapshot{}, domain.IOError{Op: "decode", Path: path, Err: err}
	}
	return snap, nil
}

// WriteFile encodes a snapshot to an arbitrary path.
func WriteFile(path string, snap domain.Snapshot) error {
	data, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return domain.IOError{Op: "encode", Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return domain.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

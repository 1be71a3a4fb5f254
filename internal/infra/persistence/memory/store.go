// Package memory provides an in-memory snapshot store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"scenecore/pkg/domain"
)

var _ domain.SnapshotStore = (*Store)(nil)

// Store keeps encoded snapshots in a map keyed by project.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{snapshots: make(map[string][]byte)}
}

// Driver implements domain.SnapshotStore.
func (s *Store) Driver() string { return "memory" }

// Save stores an encoded copy of snap.
func (s *Store) Save(_ context.Context, project string, snap domain.Snapshot) error {
	data, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return domain.IOError{Op: "save", Path: project, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[project] = data
	return nil
}

// Load decodes the snapshot saved for project.
func (s *Store) Load(_ context.Context, project string) (domain.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.snapshots[project]
	s.mu.RUnlock()
	if !ok {
		return domain.Snapshot{}, domain.NotFoundError{Entity: domain.EntityProject, Key: project}
	}
	snap, err := domain.DecodeSnapshot(data)
	if err != nil {
		return domain.Snapshot{}, domain.IOError{Op: "load", Path: project, Err: err}
	}
	return snap, nil
}

// List returns the saved project names, sorted.
func (s *Store) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.snapshots))
	for name := range s.snapshots {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

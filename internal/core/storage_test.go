package core_test

import (
	"context"
	"testing"

	"scenecore/internal/backend/backendtest"
	"scenecore/internal/core"
	"scenecore/pkg/domain"
)

func TestOpenSnapshotStoreDrivers(t *testing.T) {
	ctx := context.Background()
	mem, err := core.OpenSnapshotStore(ctx, core.StorageOptions{Driver: core.StorageMemory})
	if err != nil || mem.Driver() != "memory" {
		t.Fatalf("memory store: %v", err)
	}
	file, err := core.OpenSnapshotStore(ctx, core.StorageOptions{Driver: core.StorageFile, FileDir: t.TempDir()})
	if err != nil || file.Driver() != "file" {
		t.Fatalf("file store: %v", err)
	}
	if _, err := core.OpenSnapshotStore(ctx, core.StorageOptions{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestOpenSnapshotStoreFromEnv(t *testing.T) {
	t.Setenv("SCENECORE_STORAGE_DRIVER", "file")
	t.Setenv("SCENECORE_FILE_DIR", t.TempDir())
	store, err := core.OpenSnapshotStore(context.Background(), core.StorageOptions{})
	if err != nil || store.Driver() != "file" {
		t.Fatalf("env selected store: %v", err)
	}
}

func TestSaveToLoadFrom(t *testing.T) {
	ctx := context.Background()
	store, err := core.OpenSnapshotStore(ctx, core.StorageOptions{Driver: core.StorageFile, FileDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc, _ := newService(t)
	if err := svc.NewProject(ctx, "bench", 2); err != nil {
		t.Fatalf("project: %v", err)
	}
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))
	if _, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternLine, Source: 0, Count: 3, Step: 0.5}); err != nil {
		t.Fatalf("loop: %v", err)
	}

	snap, err := core.SaveTo(ctx, svc, store)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if snap.ProjectName != "bench" {
		t.Fatalf("unexpected project %q", snap.ProjectName)
	}
	names, err := store.List(ctx)
	if err != nil || len(names) != 1 || names[0] != "bench" {
		t.Fatalf("unexpected listing %v %v", names, err)
	}
	loaded, err := core.LoadFrom(ctx, store, "bench", backendtest.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.AvatarCount() != 4 || len(loaded.ListLoops()) != 1 {
		t.Fatalf("expected source plus three loop avatars, got %d", loaded.AvatarCount())
	}
	if _, err := core.LoadFrom(ctx, store, "missing", backendtest.New()); err == nil {
		t.Fatalf("expected error for a missing project")
	}
}

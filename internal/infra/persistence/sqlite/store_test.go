package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"scenecore/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(ctx, path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	snap := domain.Snapshot{
		ProjectName: "drum",
		Materials:   []domain.Material{{Name: "TDURx", Kind: domain.MaterialRigid, Density: 2800}},
		Groups:      map[string][]int{"walls": {0, 1}},
	}
	if err := store.Save(ctx, "drum", snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "drum", snap); err != nil {
		t.Fatalf("save again: %v", err)
	}
	_ = store.Close()

	reloaded, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	got, err := reloaded.Load(ctx, "drum")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Materials) != 1 || got.Materials[0].Name != "TDURx" {
		t.Fatalf("unexpected materials %+v", got.Materials)
	}
	if len(got.Groups["walls"]) != 2 {
		t.Fatalf("unexpected groups %+v", got.Groups)
	}
	names, err := reloaded.List(ctx)
	if err != nil || len(names) != 1 || names[0] != "drum" {
		t.Fatalf("unexpected list %v (%v)", names, err)
	}
	if _, err := reloaded.Load(ctx, "other"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSQLiteStoreAppliesMigrations(t *testing.T) {
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var name string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", "state").Scan(&name); err != nil {
		t.Fatalf("lookup state table: %v", err)
	}
	if name != "state" {
		t.Fatalf("expected state table, got %s", name)
	}
}

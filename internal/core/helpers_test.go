package core_test

import (
	"context"
	"testing"

	"scenecore/internal/backend/backendtest"
	"scenecore/internal/core"
	"scenecore/pkg/domain"
)

func newService(t *testing.T, opts ...core.Option) (*core.Service, *backendtest.Fake) {
	t.Helper()
	fake := backendtest.New()
	return core.NewService(fake, opts...), fake
}

// seedBasics registers material M1 and model mod1.
func seedBasics(t *testing.T, svc *core.Service) {
	t.Helper()
	ctx := context.Background()
	if err := svc.AddMaterial(ctx, domain.Material{Name: "M1", Kind: domain.MaterialRigid, Density: 2500}); err != nil {
		t.Fatalf("add material: %v", err)
	}
	if err := svc.AddModel(ctx, domain.Model{Name: "mod1", Physics: "MECAx", Element: "Rxx2D", Dimension: 2}); err != nil {
		t.Fatalf("add model: %v", err)
	}
}

func disk(x, y, r float64) domain.Avatar {
	return domain.Avatar{
		Kind:     domain.AvatarRigidDisk,
		Center:   []float64{x, y},
		Material: "M1",
		Model:    "mod1",
		Shape:    domain.DiskShape{Radius: r},
	}
}

func mustAddAvatar(t *testing.T, svc *core.Service, a domain.Avatar) int {
	t.Helper()
	i, err := svc.AddAvatar(context.Background(), a)
	if err != nil {
		t.Fatalf("add avatar: %v", err)
	}
	return i
}

func friction(v float64) *float64 { return &v }

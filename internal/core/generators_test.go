package core_test

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"scenecore/pkg/domain"
)

func TestGenerateLoopCircle(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))

	indices, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternCircle, Source: 0, Count: 6, Radius: 1.0})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(indices, []int{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("unexpected indices %v", indices)
	}
	for _, i := range indices {
		a, err := svc.GetAvatar(i)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if d := math.Hypot(a.Center[0], a.Center[1]); math.Abs(d-1.0) > 1e-9 {
			t.Fatalf("avatar %d at distance %g", i, d)
		}
		if a.Material != "M1" || a.Model != "mod1" || a.Kind != domain.AvatarRigidDisk || a.Origin != domain.OriginLoop {
			t.Fatalf("avatar %d does not copy its source: %+v", i, a)
		}
	}
	loop, err := svc.GetLoop(0)
	if err != nil || !reflect.DeepEqual(loop.Generated, indices) {
		t.Fatalf("loop should own its avatars: %+v %v", loop, err)
	}
}

func TestGenerateLoopGrid(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))

	indices, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternGrid, Source: 0, Count: 9, Step: 0.5, OffsetX: 1, OffsetY: 2})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(indices) != 9 {
		t.Fatalf("expected 9 avatars, got %d", len(indices))
	}
	for k, i := range indices {
		a, _ := svc.GetAvatar(i)
		wantX := 1 + float64(k%3)*0.5
		wantY := 2 + float64(k/3)*0.5
		if a.Center[0] != wantX || a.Center[1] != wantY {
			t.Fatalf("grid point %d at %v, want (%g,%g)", k, a.Center, wantX, wantY)
		}
	}
}

func TestGenerateLoopLineAxis(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))

	horizontal, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternLine, Source: 0, Count: 4, Step: 0.25, OffsetY: 3})
	if err != nil {
		t.Fatalf("horizontal: %v", err)
	}
	for _, i := range horizontal {
		if a, _ := svc.GetAvatar(i); a.Center[1] != 3 {
			t.Fatalf("horizontal line should keep y, got %v", a.Center)
		}
	}
	vertical, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternLine, Source: 0, Count: 4, Step: 0.25, OffsetX: -1, InvertAxis: true})
	if err != nil {
		t.Fatalf("vertical: %v", err)
	}
	for _, i := range vertical {
		if a, _ := svc.GetAvatar(i); a.Center[0] != -1 {
			t.Fatalf("vertical line should keep x, got %v", a.Center)
		}
	}
}

func TestGenerateLoopRejectsBadSource(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))
	if _, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternLine, Source: 0, Count: 2, Step: 1}); err != nil {
		t.Fatalf("loop: %v", err)
	}

	var idx domain.IndexError
	if _, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternCircle, Source: 9, Count: 3, Radius: 1}); !errors.As(err, &idx) {
		t.Fatalf("expected IndexError, got %v", err)
	}
	if _, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternCircle, Source: 1, Count: 3, Radius: 1}); !domain.IsValidation(err) {
		t.Fatalf("a generated source should be rejected, got %v", err)
	}
	if _, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternCircle, Source: 0, Count: 0, Radius: 1}); !domain.IsValidation(err) {
		t.Fatalf("zero count should be rejected, got %v", err)
	}
	if svc.AvatarCount() != 3 || len(fake.Attached()) != 3 || len(svc.ListLoops()) != 1 {
		t.Fatalf("failed generations must not leave avatars or loops behind")
	}
}

func TestGenerateLoopPartialFailureRollsBack(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))

	attaches := 0
	fake.FailWhen("AttachAvatar", func([]any) error {
		attaches++
		if attaches == 3 {
			return errors.New("space full")
		}
		return nil
	})
	if _, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternCircle, Source: 0, Count: 5, Radius: 1}); err == nil {
		t.Fatalf("expected failure")
	}
	if len(fake.Attached()) != 1 || svc.AvatarCount() != 1 {
		t.Fatalf("partially generated avatars should be detached, got %d attached", len(fake.Attached()))
	}
}

func TestRemoveLoopOwnership(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))
	if _, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternCircle, Source: 0, Count: 3, Radius: 1, Group: "ring"}); err != nil {
		t.Fatalf("loop: %v", err)
	}
	last := mustAddAvatar(t, svc, disk(5, 5, 0.2))
	if err := svc.AddToGroup(ctx, "tail", last); err != nil {
		t.Fatalf("group: %v", err)
	}

	removed, err := svc.RemoveLoop(ctx, 0)
	if err != nil || !removed {
		t.Fatalf("remove loop: %v %v", removed, err)
	}
	if svc.AvatarCount() != 2 || len(fake.Attached()) != 2 {
		t.Fatalf("expected 2 avatars left, got %d", svc.AvatarCount())
	}
	if a, _ := svc.GetAvatar(1); a.Center[0] != 5 {
		t.Fatalf("the later manual avatar should shift to index 1, got %+v", a)
	}
	if members, _ := svc.GetGroup("tail"); !reflect.DeepEqual(members, []int{1}) {
		t.Fatalf("group indices should shift, got %v", members)
	}
	if members, _ := svc.GetGroup("ring"); len(members) != 0 {
		t.Fatalf("loop group should be emptied, got %v", members)
	}
	if len(svc.ListLoops()) != 0 {
		t.Fatalf("loop config should be removed")
	}
	if removed, err := svc.RemoveLoop(ctx, 0); err != nil || removed {
		t.Fatalf("second remove should report false, got %v %v", removed, err)
	}
}

func TestGeneratedAvatarsAreProtected(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))
	if _, err := svc.GenerateLoop(ctx, domain.Loop{Pattern: domain.PatternLine, Source: 0, Count: 2, Step: 1}); err != nil {
		t.Fatalf("loop: %v", err)
	}
	for _, i := range []int{0, 1} {
		if removed, err := svc.RemoveAvatar(ctx, i); !domain.IsReferenced(err) || removed {
			t.Fatalf("avatar %d should be protected, got %v %v", i, removed, err)
		}
	}
	used, refs := svc.IsAvatarUsed(ctx, 0)
	if !used || len(refs) != 1 {
		t.Fatalf("expected the loop to reference its source, got %v", refs)
	}
}

func TestGenerateGranulo(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	cfg := domain.GranuloGeneration{
		Count:           4,
		RMin:            0.1,
		RMax:            0.2,
		Container:       domain.ContainerBox,
		ContainerParams: map[string]float64{"lx": 2, "ly": 2},
		Material:        "M1",
		Model:           "mod1",
		AvatarKind:      domain.AvatarRigidDisk,
		Group:           "grains",
	}
	indices, err := svc.GenerateGranulo(ctx, cfg)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if len(indices) != 4 {
		t.Fatalf("expected 4 particles, got %v", indices)
	}
	a, _ := svc.GetAvatar(indices[1])
	if a.Origin != domain.OriginGranulo || a.Color != domain.DefaultColor || math.Abs(a.Center[0]-0.3) > 1e-9 || a.Center[1] != 0.1 {
		t.Fatalf("unexpected particle %+v", a)
	}
	if members, _ := svc.GetGroup("grains"); !reflect.DeepEqual(members, indices) {
		t.Fatalf("group should hold the particles, got %v", members)
	}

	fake.Coords = []float64{}
	fake.Seated = 0
	var depErr domain.DepositionError
	if _, err := svc.GenerateGranulo(ctx, cfg); !errors.As(err, &depErr) {
		t.Fatalf("expected DepositionError, got %v", err)
	}

	bad := cfg
	bad.AvatarKind = domain.AvatarRigidPolygon
	if _, err := svc.GenerateGranulo(ctx, bad); !domain.IsValidation(err) {
		t.Fatalf("polygon particles should be rejected, got %v", err)
	}
	bad = cfg
	bad.Material = "nope"
	if _, err := svc.GenerateGranulo(ctx, bad); !domain.IsNotFound(err) {
		t.Fatalf("unknown material should be not found, got %v", err)
	}

	if removed, err := svc.RemoveGranulo(ctx, 0); err != nil || !removed {
		t.Fatalf("remove granulo: %v %v", removed, err)
	}
	if svc.AvatarCount() != 0 || len(svc.ListGranulos()) != 0 {
		t.Fatalf("particles should be gone")
	}
}

package chipmunk

import (
	"math"
	"testing"

	"scenecore/internal/backend"
	"scenecore/pkg/domain"
)

func newDisk(t *testing.T, b *Backend, x, y, r float64) backend.AvatarHandle {
	t.Helper()
	mat, _ := b.CreateMaterial(domain.Material{Name: "M1", Kind: domain.MaterialRigid, Density: 2})
	mod, _ := b.CreateModel(domain.Model{Name: "mod1", Physics: "MECAx", Element: "Rxx2D", Dimension: 2})
	h, err := b.CreateAvatar(domain.Avatar{
		Kind:     domain.AvatarRigidDisk,
		Center:   []float64{x, y},
		Material: "M1",
		Model:    "mod1",
		Color:    domain.DefaultColor,
		Shape:    domain.DiskShape{Radius: r},
	}, mat, mod)
	if err != nil {
		t.Fatalf("create avatar: %v", err)
	}
	return h
}

func TestAttachDetach(t *testing.T) {
	b := New()
	h := newDisk(t, b, 0, 0, 0.5)
	st, ok := b.State(h)
	if !ok || math.Abs(st.Mass-2*math.Pi*0.25) > 1e-9 || st.Shapes != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
	if b.AttachedAvatars() != 0 {
		t.Fatalf("created bodies start detached")
	}
	if err := b.AttachAvatar(h); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := b.AttachAvatar(h); err == nil {
		t.Fatalf("double attach should fail")
	}
	if b.AttachedAvatars() != 1 {
		t.Fatalf("expected one body")
	}
	if err := b.DetachAvatar(h); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := b.DetachAvatar(h); err == nil {
		t.Fatalf("double detach should fail")
	}
	if err := b.AttachAvatar(&law{}); err == nil {
		t.Fatalf("foreign handles should be rejected")
	}
}

func TestCreateAvatarRejectsBadInput(t *testing.T) {
	b := New()
	mat, _ := b.CreateMaterial(domain.Material{Name: "M1", Density: 1})
	mod, _ := b.CreateModel(domain.Model{Name: "mod1"})
	if _, err := b.CreateAvatar(domain.Avatar{Center: []float64{0}, Shape: domain.DiskShape{Radius: 1}}, mat, mod); err == nil {
		t.Fatalf("short centers should be rejected")
	}
	if _, err := b.CreateAvatar(domain.Avatar{Center: []float64{0, 0}, Shape: domain.DiskShape{Radius: 1}}, mod, mod); err == nil {
		t.Fatalf("a model handle is not a material")
	}
	poly := domain.PolygonShape{Generation: domain.PolygonRegular, Radius: 1, VertexCount: 2}
	if _, err := b.CreateAvatar(domain.Avatar{Center: []float64{0, 0}, Shape: poly}, mat, mod); err == nil {
		t.Fatalf("degenerate polygons should be rejected")
	}
}

func TestTranslateRotate(t *testing.T) {
	b := New()
	h := newDisk(t, b, 1, 0, 0.1)
	if err := b.Translate(h, 0.5, 1, 0); err != nil {
		t.Fatalf("translate: %v", err)
	}
	st, _ := b.State(h)
	if st.Position[0] != 1.5 || st.Position[1] != 1 {
		t.Fatalf("unexpected position %v", st.Position)
	}
	if err := b.Translate(h, -0.5, -1, 0); err != nil {
		t.Fatalf("translate back: %v", err)
	}
	if err := b.Rotate(h, math.Pi/2, []float64{0, 0}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	st, _ = b.State(h)
	if math.Abs(st.Position[0]) > 1e-12 || math.Abs(st.Position[1]-1) > 1e-12 || math.Abs(st.Angle-math.Pi/2) > 1e-12 {
		t.Fatalf("rotation about the origin went wrong: %+v", st)
	}
}

func TestDrivenAndInitialValues(t *testing.T) {
	b := New()
	h := newDisk(t, b, 0, 0, 0.1)
	if err := b.ImposeInitValue(h, 2, 3); err != nil {
		t.Fatalf("init value: %v", err)
	}
	if err := b.ImposeDrivenDOF(h, backend.DrivenDOF{Component: 1, Kind: "predefined", DOFType: "vlocy", CT: -1}); err != nil {
		t.Fatalf("driven: %v", err)
	}
	st, _ := b.State(h)
	if st.Velocity[0] != -1 || st.Velocity[1] != 3 || st.Driven != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
	if err := b.ImposeInitValue(h, 0, 1); err == nil {
		t.Fatalf("component 0 should be rejected")
	}
}

func TestVisibilitySetsFriction(t *testing.T) {
	b := New()
	h := newDisk(t, b, 0, 0, 0.1)
	if err := b.AttachAvatar(h); err != nil {
		t.Fatalf("attach: %v", err)
	}
	mu := 0.4
	l, _ := b.CreateContactLaw(domain.ContactLaw{Name: "iqsc0", Kind: domain.LawIQSCLB, Friction: &mu})
	spec := domain.ContactorSpec{Body: "RBDY2", Contactor: "DISKx", Color: domain.DefaultColor}
	r, err := b.CreateVisibilityRule(domain.VisibilityRule{Candidate: spec, Antagonist: spec, Behavior: "iqsc0"}, l)
	if err != nil {
		t.Fatalf("rule: %v", err)
	}
	if err := b.AttachVisibilityRule(r); err != nil {
		t.Fatalf("attach rule: %v", err)
	}
	a := h.(*avatar)
	if a.shapes[0].Friction() != mu {
		t.Fatalf("expected friction %g, got %g", mu, a.shapes[0].Friction())
	}
	if len(b.VisibilityTable()) != 1 {
		t.Fatalf("expected one rule in the table")
	}
	b.ResetVisibility()
	if a.shapes[0].Friction() != 0 || len(b.VisibilityTable()) != 0 {
		t.Fatalf("reset should clear the table and friction")
	}
}

func TestPostProCommands(t *testing.T) {
	b := New()
	h := newDisk(t, b, 0, 0, 0.1)
	c, err := b.CreatePostProCommand(domain.PostProBodyTracking, 1, []backend.AvatarHandle{h})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := b.AttachPostProCommand(c); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if got := b.PostProCommands(); len(got) != 1 || got[0] != domain.PostProBodyTracking {
		t.Fatalf("unexpected commands %v", got)
	}
	b.ResetPostPro()
	if len(b.PostProCommands()) != 0 {
		t.Fatalf("reset should clear commands")
	}
	if _, err := b.CreatePostProCommand("X", 1, []backend.AvatarHandle{&law{}}); err == nil {
		t.Fatalf("foreign bodies should be rejected")
	}
}

func TestReset(t *testing.T) {
	b := New()
	h := newDisk(t, b, 0, 0, 0.1)
	if err := b.AttachAvatar(h); err != nil {
		t.Fatalf("attach: %v", err)
	}
	b.Reset()
	if b.AttachedAvatars() != 0 {
		t.Fatalf("reset should empty the space")
	}
}

package expr

import (
	"context"
	"math"
	"testing"
)

func TestNumber(t *testing.T) {
	ev := New(map[string]float64{"r": 2})
	ctx := context.Background()
	cases := map[string]float64{
		"1 + 2":          3,
		"2 * pi * r":     2 * math.Pi * 2,
		"math.sqrt(16)":  4,
		"r / 4":          0.5,
		"e":              math.E,
		"(r + 1) * 10.0": 30,
	}
	for src, want := range cases {
		got, err := ev.Number(ctx, src)
		if err != nil {
			t.Fatalf("%s: %v", src, err)
		}
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("%s: got %g want %g", src, got, want)
		}
	}
}

func TestNumberRejects(t *testing.T) {
	ev := New(nil)
	for _, src := range []string{"", "unknown_var", `"text"`, "1; x := 2"} {
		if _, err := ev.Number(context.Background(), src); err == nil {
			t.Fatalf("expected error for %q", src)
		}
	}
}

func TestAssignments(t *testing.T) {
	ev := New(map[string]float64{"k": 10})
	got, err := ev.Assignments(context.Background(), "young=1e9, nu=0.3, g=k*2, m=math.max(g, 1)")
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if got["young"] != 1e9 || got["nu"] != 0.3 || got["g"] != 20 || got["m"] != 20 {
		t.Fatalf("unexpected values %v", got)
	}
	if _, err := ev.Assignments(context.Background(), "young"); err == nil {
		t.Fatalf("expected error for missing '='")
	}
}

func TestResolveKeepsPlainStrings(t *testing.T) {
	ev := New(map[string]float64{"v": 3})
	out := ev.Resolve(context.Background(), map[string]any{"dx": "v*2", "dofty": "vlocy", "dy": 1.5})
	if out["dx"] != 6.0 {
		t.Fatalf("dx not evaluated: %v", out["dx"])
	}
	if out["dofty"] != "vlocy" || out["dy"] != 1.5 {
		t.Fatalf("unexpected resolve result %v", out)
	}
}

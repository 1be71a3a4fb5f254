package generator

import (
	"errors"
	"math"
	"testing"

	"scenecore/pkg/domain"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCircleDistance(t *testing.T) {
	for _, n := range []int{1, 3, 6, 17} {
		pts := Circle(n, 2.5, 1, -1)
		if len(pts) != n {
			t.Fatalf("count %d: got %d points", n, len(pts))
		}
		for i, p := range pts {
			if d := math.Hypot(p[0]-1, p[1]+1); !near(d, 2.5) {
				t.Fatalf("count %d: point %d at distance %g", n, i, d)
			}
		}
	}
	if p := Circle(4, 1, 0, 0)[1]; !near(p[0], 0) || !near(p[1], 1) {
		t.Fatalf("second of four points should sit at 90 degrees, got %v", p)
	}
}

func TestGridNine(t *testing.T) {
	pts := Grid(9, 0.5, 0, 0)
	want := [][]float64{{0, 0}, {0.5, 0}, {1, 0}, {0, 0.5}, {0.5, 0.5}, {1, 0.5}, {0, 1}, {0.5, 1}, {1, 1}}
	for i := range want {
		if pts[i][0] != want[i][0] || pts[i][1] != want[i][1] {
			t.Fatalf("point %d = %v, want %v", i, pts[i], want[i])
		}
	}
	if pts := Grid(5, 1, 0, 0); pts[3][0] != 0 || pts[3][1] != 1 {
		t.Fatalf("partial grid should still use a side of 3, got %v", pts)
	}
}

func TestLineAxis(t *testing.T) {
	for _, p := range Line(4, 0.25, 2, 3, false) {
		if p[1] != 3 {
			t.Fatalf("horizontal line moved off y=3: %v", p)
		}
	}
	vertical := Line(4, 0.25, 2, 3, true)
	for _, p := range vertical {
		if p[0] != 2 {
			t.Fatalf("vertical line moved off x=2: %v", p)
		}
	}
	if vertical[3][1] != 3.75 {
		t.Fatalf("unexpected last point %v", vertical[3])
	}
}

func TestSpiralGrowsRadius(t *testing.T) {
	pts := Spiral(10, 1, 0.5, 0, 0)
	for i, p := range pts {
		if d := math.Hypot(p[0], p[1]); !near(d, 1+float64(i)*0.5) {
			t.Fatalf("point %d at radius %g", i, d)
		}
	}
}

func TestPositions(t *testing.T) {
	manual := domain.Loop{Pattern: domain.PatternManual, Count: 2, Centers: [][]float64{{1, 2}, {3, 4}}}
	pts, err := Positions(manual, 2)
	if err != nil || len(pts) != 2 || pts[1][0] != 3 {
		t.Fatalf("manual positions: %v %v", pts, err)
	}
	pts[0][0] = 99
	if manual.Centers[0][0] != 1 {
		t.Fatalf("positions must not alias the loop centers")
	}
	if _, err := Positions(domain.Loop{Pattern: domain.PatternCircle, Count: 3, Radius: 1}, 3); !domain.IsValidation(err) {
		t.Fatalf("3-D loops should be rejected, got %v", err)
	}
	if _, err := Positions(domain.Loop{Pattern: domain.PatternGrid}, 2); !domain.IsValidation(err) {
		t.Fatalf("zero count should be rejected, got %v", err)
	}
	if _, err := Positions(domain.Loop{Pattern: "zigzag", Count: 1}, 2); !domain.IsValidation(err) {
		t.Fatalf("unknown pattern should be rejected, got %v", err)
	}
}

type stubDepositor struct {
	radii  []float64
	seated int
	coords []float64
	err    error
}

func (s stubDepositor) SampleRadii(count int, _, _ float64, _ *int64) ([]float64, error) {
	return s.radii, nil
}

func (s stubDepositor) Pack(domain.ContainerKind, map[string]float64, []float64) (int, []float64, error) {
	return s.seated, s.coords, s.err
}

func boxConfig(count int) domain.GranuloGeneration {
	return domain.GranuloGeneration{
		Count: count, RMin: 0.1, RMax: 0.2, Container: domain.ContainerBox,
		ContainerParams: map[string]float64{"lx": 1, "ly": 1},
		Material:        "M1", Model: "mod1", AvatarKind: domain.AvatarRigidDisk,
	}
}

func TestDepositTruncatesToSeated(t *testing.T) {
	d := stubDepositor{radii: []float64{0.1, 0.15, 0.2}, seated: 2, coords: []float64{0, 0, 1, 1, 2, 2}}
	got, err := Deposit(d, boxConfig(3))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if len(got.Centers) != 2 || len(got.Radii) != 2 || got.Centers[1][0] != 1 || got.Radii[1] != 0.15 {
		t.Fatalf("unexpected particles %+v", got)
	}
}

func TestDepositErrors(t *testing.T) {
	var depErr domain.DepositionError
	if _, err := Deposit(stubDepositor{radii: []float64{0.1}}, boxConfig(1)); !errors.As(err, &depErr) {
		t.Fatalf("expected deposition error, got %v", err)
	}
	boom := errors.New("boom")
	if _, err := Deposit(stubDepositor{radii: []float64{0.1}, err: boom}, boxConfig(1)); !errors.Is(err, boom) {
		t.Fatalf("packer errors should be wrapped, got %v", err)
	}
	cfg := boxConfig(1)
	cfg.AvatarKind = domain.AvatarRigidPolygon
	if _, err := Deposit(stubDepositor{}, cfg); !domain.IsValidation(err) {
		t.Fatalf("non-disk particles should be rejected, got %v", err)
	}
}

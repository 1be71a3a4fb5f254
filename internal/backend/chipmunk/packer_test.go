package chipmunk

import (
	"math"
	"reflect"
	"testing"

	"scenecore/pkg/domain"
)

func TestSampleRadiiSeeded(t *testing.T) {
	b := New()
	seed := int64(42)
	first, err := b.SampleRadii(20, 0.1, 0.3, &seed)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	second, _ := b.SampleRadii(20, 0.1, 0.3, &seed)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("seeded samples differ")
	}
	for i, r := range first {
		if r < 0.1 || r > 0.3 {
			t.Fatalf("radius %d out of range: %g", i, r)
		}
		if i > 0 && r > first[i-1] {
			t.Fatalf("radii should be sorted largest first")
		}
	}
	if _, err := b.SampleRadii(0, 0.1, 0.3, nil); err == nil {
		t.Fatalf("zero count should fail")
	}
	if _, err := b.SampleRadii(3, 0.3, 0.1, nil); err == nil {
		t.Fatalf("rmax < rmin should fail")
	}
}

func TestPackBox(t *testing.T) {
	b := New()
	seated, coords, err := b.Pack(domain.ContainerBox, map[string]float64{"lx": 1, "ly": 1}, []float64{0.1, 0.1})
	if err != nil || seated != 2 {
		t.Fatalf("pack: %d %v", seated, err)
	}
	if math.Abs(coords[0]-0.1) > 1e-9 || coords[1] != 0.1 {
		t.Fatalf("first particle should sit in the corner, got %v", coords[:2])
	}
	if math.Abs(coords[2]-0.3) > 1e-9 || coords[3] != 0.1 {
		t.Fatalf("second particle should sit next to the first, got %v", coords[2:])
	}
}

func TestPackStopsWhenFull(t *testing.T) {
	b := New()
	radii := make([]float64, 50)
	for i := range radii {
		radii[i] = 0.25
	}
	seated, coords, err := b.Pack(domain.ContainerBox, map[string]float64{"lx": 1, "ly": 1}, radii)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if seated < 2 || seated >= len(radii) || len(coords) != 2*seated {
		t.Fatalf("expected a partial deposit, got %d", seated)
	}
	for i := 0; i < seated; i++ {
		x, y := coords[2*i], coords[2*i+1]
		if x < 0.25-1e-9 || x > 0.75+1e-9 || y < 0.25-1e-9 || y > 0.75+1e-9 {
			t.Fatalf("particle %d outside the box: (%g, %g)", i, x, y)
		}
	}
	seated, _, err = b.Pack(domain.ContainerBox, map[string]float64{"lx": 0.1, "ly": 1}, []float64{0.1})
	if err != nil || seated != 0 {
		t.Fatalf("an oversized particle should not be seated, got %d %v", seated, err)
	}
}

func TestPackRoundContainers(t *testing.T) {
	b := New()
	seated, coords, err := b.Pack(domain.ContainerDisk, map[string]float64{"r": 1}, []float64{0.2})
	if err != nil || seated != 1 {
		t.Fatalf("pack disk: %d %v", seated, err)
	}
	if d := math.Hypot(coords[0]-1, coords[1]-1); d > 0.8+1e-9 || math.Abs(coords[1]-0.2) > 1e-3 {
		t.Fatalf("particle should rest at the bottom of the drum, got %v", coords)
	}
	seated, coords, err = b.Pack(domain.ContainerCouette, map[string]float64{"rint": 0.5, "rext": 1}, []float64{0.1, 0.1})
	if err != nil || seated != 2 {
		t.Fatalf("pack couette: %d %v", seated, err)
	}
	for i := 0; i < seated; i++ {
		d := math.Hypot(coords[2*i]-1, coords[2*i+1]-1)
		if d < 0.6-1e-6 || d > 0.9+1e-6 {
			t.Fatalf("particle %d outside the annulus: distance %g", i, d)
		}
	}
	if _, _, err := b.Pack(domain.ContainerCouette, map[string]float64{"rint": 1, "rext": 1}, []float64{0.1}); err == nil {
		t.Fatalf("rint >= rext should fail")
	}
	if _, _, err := b.Pack("Hex2D", nil, []float64{0.1}); err == nil {
		t.Fatalf("unknown containers should fail")
	}
}

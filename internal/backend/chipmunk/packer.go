package chipmunk

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/jakecoffman/cp"

	"scenecore/pkg/domain"
)

const packEpsilon = 1e-9

// SampleRadii draws count radii uniformly in [rmin, rmax], largest first. A
// nil seed uses the clock.
func (b *Backend) SampleRadii(count int, rmin, rmax float64, seed *int64) ([]float64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}
	if rmin <= 0 || rmax < rmin {
		return nil, fmt.Errorf("need 0 < rmin <= rmax, got %g and %g", rmin, rmax)
	}
	src := time.Now().UnixNano()
	if seed != nil {
		src = *seed
	}
	rng := rand.New(rand.NewSource(src))
	radii := make([]float64, count)
	for i := range radii {
		radii[i] = rmin + rng.Float64()*(rmax-rmin)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(radii)))
	return radii, nil
}

type disk struct {
	center cp.Vector
	radius float64
}

// container describes the region particles are deposited in.
type container struct {
	bounds cp.BB
	// floor returns the lowest admissible center height at x, or false when
	// a particle of radius r cannot sit at x.
	floor func(x, r float64) (float64, bool)
	// inside reports whether a particle of radius r fits at p.
	inside    func(p cp.Vector, r float64) bool
	obstacles []disk
}

func newContainer(kind domain.ContainerKind, params map[string]float64) (container, error) {
	required, ok := kind.RequiredParams()
	if !ok {
		return container{}, fmt.Errorf("unknown container %q", kind)
	}
	for _, key := range required {
		if params[key] <= 0 {
			return container{}, fmt.Errorf("%s requires positive %q", kind, key)
		}
	}
	switch kind {
	case domain.ContainerBox:
		lx, ly := params["lx"], params["ly"]
		return container{
			bounds: cp.BB{L: 0, B: 0, R: lx, T: ly},
			floor: func(x, r float64) (float64, bool) {
				return r, x-r >= -packEpsilon && x+r <= lx+packEpsilon
			},
			inside: func(p cp.Vector, r float64) bool {
				return p.Y+r <= ly+packEpsilon
			},
		}, nil
	case domain.ContainerDisk, domain.ContainerDrum:
		return roundContainer(params["r"], 0), nil
	default:
		rint, rext := params["rint"], params["rext"]
		if rint >= rext {
			return container{}, fmt.Errorf("rint must be smaller than rext")
		}
		return roundContainer(rext, rint), nil
	}
}

// roundContainer is a disk of radius outer centered at (outer, outer), with an
// optional inner disk obstacle of radius inner.
func roundContainer(outer, inner float64) container {
	c := cp.Vector{X: outer, Y: outer}
	out := container{
		bounds: cp.BB{L: 0, B: 0, R: 2 * outer, T: 2 * outer},
		floor: func(x, r float64) (float64, bool) {
			reach := outer - r
			dx := x - c.X
			if reach <= 0 || math.Abs(dx) > reach {
				return 0, false
			}
			return c.Y - math.Sqrt(reach*reach-dx*dx), true
		},
		inside: func(p cp.Vector, r float64) bool {
			d := math.Hypot(p.X-c.X, p.Y-c.Y)
			return d+r <= outer+packEpsilon && (inner == 0 || d-r >= inner-packEpsilon)
		},
	}
	if inner > 0 {
		out.obstacles = []disk{{center: c, radius: inner}}
	}
	return out
}

// Pack drops particles one after another in the container, each at the
// lowest reachable resting place. The result is deterministic for a given
// radius list. Packing stops at the first particle that does not fit.
func (b *Backend) Pack(kind domain.ContainerKind, params map[string]float64, radii []float64) (int, []float64, error) {
	box, err := newContainer(kind, params)
	if err != nil {
		return 0, nil, err
	}
	placed := append([]disk(nil), box.obstacles...)
	coords := make([]float64, 0, 2*len(radii))
	seated := 0
	for _, r := range radii {
		p, ok := lowestRestingPlace(box, placed, r)
		if !ok {
			break
		}
		placed = append(placed, disk{center: p, radius: r})
		coords = append(coords, p.X, p.Y)
		seated++
	}
	return seated, coords, nil
}

func lowestRestingPlace(box container, placed []disk, r float64) (cp.Vector, bool) {
	step := r / 2
	var best cp.Vector
	found := false
	for x := box.bounds.L + r; x <= box.bounds.R-r+packEpsilon; x += step {
		y, ok := box.floor(x, r)
		if !ok {
			continue
		}
		for _, d := range placed {
			dx := math.Abs(x - d.center.X)
			reach := r + d.radius
			if dx >= reach {
				continue
			}
			if top := d.center.Y + math.Sqrt(reach*reach-dx*dx); top > y {
				y = top
			}
		}
		p := cp.Vector{X: x, Y: y}
		if !box.inside(p, r) || overlaps(placed, p, r) {
			continue
		}
		if !found || y < best.Y-packEpsilon {
			best, found = p, true
		}
	}
	return best, found
}

func overlaps(placed []disk, p cp.Vector, r float64) bool {
	for _, d := range placed {
		if math.Hypot(p.X-d.center.X, p.Y-d.center.Y) < r+d.radius-1e-7 {
			return true
		}
	}
	return false
}

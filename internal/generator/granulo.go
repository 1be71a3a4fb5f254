package generator

import (
	"fmt"

	"scenecore/pkg/domain"
)

// Depositor samples particle radii and packs them into a container.
type Depositor interface {
	SampleRadii(count int, rmin, rmax float64, seed *int64) ([]float64, error)
	Pack(container domain.ContainerKind, params map[string]float64, radii []float64) (int, []float64, error)
}

// Particles is the result of a deposition: one center per seated radius.
type Particles struct {
	Centers [][]float64
	Radii   []float64
}

// Deposit samples radii for cfg, packs them and reshapes the flat coordinate
// buffer. The packer may seat fewer particles than requested; radii are
// truncated to match.
func Deposit(d Depositor, cfg domain.GranuloGeneration) (Particles, error) {
	if err := domain.ValidateGranulo(cfg, 2); err != nil {
		return Particles{}, err
	}
	radii, err := d.SampleRadii(cfg.Count, cfg.RMin, cfg.RMax, cfg.Seed)
	if err != nil {
		return Particles{}, fmt.Errorf("sample radii: %w", err)
	}
	seated, coords, err := d.Pack(cfg.Container, cfg.ContainerParams, radii)
	if err != nil {
		return Particles{}, fmt.Errorf("pack %s: %w", cfg.Container, err)
	}
	if seated == 0 || len(coords) < 2 {
		return Particles{}, domain.DepositionError{Container: cfg.Container, Requested: cfg.Count}
	}
	n := len(coords) / 2
	if seated < n {
		n = seated
	}
	if n > len(radii) {
		n = len(radii)
	}
	out := Particles{Centers: make([][]float64, n), Radii: append([]float64(nil), radii[:n]...)}
	for i := 0; i < n; i++ {
		out.Centers[i] = []float64{coords[2*i], coords[2*i+1]}
	}
	return out, nil
}

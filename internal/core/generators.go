package core

import (
	"context"
	"sort"

	"scenecore/internal/generator"
	"scenecore/pkg/domain"
)

// GenerateLoop copies the loop's source avatar at every pattern position and
// records the loop. The copies are owned by the loop.
func (s *Service) GenerateLoop(ctx context.Context, loop domain.Loop) ([]int, error) {
	var indices []int
	err := s.run(ctx, "generate_loop", func(tx *txn) error {
		var err error
		indices, err = tx.generateLoop(loop)
		return err
	})
	return indices, err
}

func (tx *txn) generateLoop(loop domain.Loop) ([]int, error) {
	if loop.Source < 0 || loop.Source >= len(tx.state.avatars) {
		return nil, outOfRange(domain.EntityAvatar, loop.Source, len(tx.state.avatars))
	}
	src := tx.state.avatars[loop.Source]
	if src.Origin != domain.OriginManual {
		return nil, domain.ValidationError{Entity: domain.EntityLoop, Field: "model_avatar_index", Message: "the source avatar must be a manual avatar"}
	}
	if loop.Group != "" {
		if err := domain.ValidateGroupName(loop.Group); err != nil {
			return nil, err
		}
	}
	positions, err := generator.Positions(loop, tx.dimension())
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(positions))
	for _, pos := range positions {
		a := src.Clone()
		a.Center = pos
		a.Origin = domain.OriginLoop
		idx, err := tx.addAvatar(a)
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	loop = loop.Clone()
	loop.Generated = indices
	tx.state.loops = append(tx.state.loops, loop)
	tx.addToGroup(loop.Group, indices)
	return append([]int(nil), indices...), nil
}

// GenerateGranulo deposits particles in the configured container and records
// the generation. The particles are owned by the generation.
func (s *Service) GenerateGranulo(ctx context.Context, cfg domain.GranuloGeneration) ([]int, error) {
	var indices []int
	err := s.run(ctx, "generate_granulo", func(tx *txn) error {
		var err error
		indices, err = tx.generateGranulo(cfg)
		return err
	})
	return indices, err
}

func (tx *txn) generateGranulo(cfg domain.GranuloGeneration) ([]int, error) {
	if cfg.Color == "" {
		cfg.Color = domain.DefaultColor
	}
	if err := domain.ValidateGranulo(cfg, tx.dimension()); err != nil {
		return nil, err
	}
	if cfg.Group != "" {
		if err := domain.ValidateGroupName(cfg.Group); err != nil {
			return nil, err
		}
	}
	if tx.state.materialIndex(cfg.Material) < 0 {
		return nil, domain.NotFoundError{Entity: domain.EntityMaterial, Key: cfg.Material}
	}
	if tx.state.modelIndex(cfg.Model) < 0 {
		return nil, domain.NotFoundError{Entity: domain.EntityModel, Key: cfg.Model}
	}
	particles, err := generator.Deposit(tx.be, cfg)
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(particles.Radii))
	for i, center := range particles.Centers {
		idx, err := tx.addAvatar(domain.Avatar{
			Kind:     cfg.AvatarKind,
			Center:   center,
			Material: cfg.Material,
			Model:    cfg.Model,
			Color:    cfg.Color,
			Origin:   domain.OriginGranulo,
			Shape:    domain.DiskShape{Radius: particles.Radii[i]},
		})
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	cfg = cfg.Clone()
	cfg.Generated = indices
	tx.state.granulos = append(tx.state.granulos, cfg)
	tx.addToGroup(cfg.Group, indices)
	return append([]int(nil), indices...), nil
}

// removeOwned deletes generated avatars highest index first.
func (tx *txn) removeOwned(indices []int) error {
	owned := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(owned)))
	for _, i := range owned {
		if i < 0 || i >= len(tx.state.avatars) {
			continue
		}
		if err := tx.deleteAvatarAt(i); err != nil {
			return err
		}
	}
	return nil
}

// RemoveLoop deletes a loop and every avatar it generated.
func (s *Service) RemoveLoop(ctx context.Context, i int) (bool, error) {
	removed := false
	err := s.run(ctx, "remove_loop", func(tx *txn) error {
		if i < 0 || i >= len(tx.state.loops) {
			return nil
		}
		if err := tx.removeOwned(tx.state.loops[i].Generated); err != nil {
			return err
		}
		tx.state.loops = append(tx.state.loops[:i], tx.state.loops[i+1:]...)
		removed = true
		return nil
	})
	return removed, err
}

// RemoveGranulo deletes a generation and every particle it deposited.
func (s *Service) RemoveGranulo(ctx context.Context, i int) (bool, error) {
	removed := false
	err := s.run(ctx, "remove_granulo", func(tx *txn) error {
		if i < 0 || i >= len(tx.state.granulos) {
			return nil
		}
		if err := tx.removeOwned(tx.state.granulos[i].Generated); err != nil {
			return err
		}
		tx.state.granulos = append(tx.state.granulos[:i], tx.state.granulos[i+1:]...)
		removed = true
		return nil
	})
	return removed, err
}

// GetLoop returns the loop at i.
func (s *Service) GetLoop(i int) (domain.Loop, error) {
	var (
		out domain.Loop
		err error
	)
	s.read(func(st *sceneState) {
		if i < 0 || i >= len(st.loops) {
			err = outOfRange(domain.EntityLoop, i, len(st.loops))
			return
		}
		out = st.loops[i].Clone()
	})
	return out, err
}

// ListLoops returns the loops in creation order.
func (s *Service) ListLoops() []domain.Loop {
	var out []domain.Loop
	s.read(func(st *sceneState) {
		out = make([]domain.Loop, len(st.loops))
		for i, l := range st.loops {
			out[i] = l.Clone()
		}
	})
	return out
}

// GetGranulo returns the generation at i.
func (s *Service) GetGranulo(i int) (domain.GranuloGeneration, error) {
	var (
		out domain.GranuloGeneration
		err error
	)
	s.read(func(st *sceneState) {
		if i < 0 || i >= len(st.granulos) {
			err = outOfRange(domain.EntityGranulo, i, len(st.granulos))
			return
		}
		out = st.granulos[i].Clone()
	})
	return out, err
}

// ListGranulos returns the generations in creation order.
func (s *Service) ListGranulos() []domain.GranuloGeneration {
	var out []domain.GranuloGeneration
	s.read(func(st *sceneState) {
		out = make([]domain.GranuloGeneration, len(st.granulos))
		for i, g := range st.granulos {
			out[i] = g.Clone()
		}
	})
	return out
}

package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"scenecore/internal/backend"
	"scenecore/pkg/domain"
)

// Save captures the scene as a snapshot. Generated avatars are left out and
// stored indices are rewritten to the positions avatars will have after Load
// replays the snapshot: manual avatars first, then each loop's avatars, then
// each deposition's particles.
func Save(s *Service) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state

	remap := make(map[int]int, len(st.avatars))
	var manual []domain.Avatar
	for i, a := range st.avatars {
		if a.Origin == domain.OriginManual {
			remap[i] = len(manual)
			manual = append(manual, a.Clone())
		}
	}
	next := len(manual)
	for _, l := range st.loops {
		for _, i := range l.Generated {
			remap[i] = next
			next++
		}
	}
	for _, g := range st.granulos {
		for _, i := range g.Generated {
			remap[i] = next
			next++
		}
	}
	mapList := func(list []int) []int {
		out := make([]int, 0, len(list))
		for _, i := range list {
			if j, ok := remap[i]; ok {
				out = append(out, j)
			}
		}
		return out
	}
	mapTarget := func(t domain.Target) domain.Target {
		if t.Kind != domain.TargetAvatar {
			return t
		}
		if j, ok := remap[t.Avatar]; ok {
			t.Avatar = j
		} else {
			t.Avatar = DetachedAvatar
		}
		return t
	}

	p := st.project.Clone()
	snap := domain.Snapshot{
		ProjectName:     p.Name,
		Dimension:       p.Dimension,
		Units:           p.Units,
		Preferences:     p.Preferences,
		Avatars:         manual,
		VisibilityRules: append([]domain.VisibilityRule(nil), st.rules...),
		Groups:          make(map[string][]int, len(st.groups)),
		DynamicVars:     p.DynamicVars,
	}
	for _, m := range st.materials {
		snap.Materials = append(snap.Materials, m.Clone())
	}
	for _, m := range st.models {
		snap.Models = append(snap.Models, m.Clone())
	}
	for _, l := range st.laws {
		snap.ContactLaws = append(snap.ContactLaws, l.Clone())
	}
	for _, op := range st.operations {
		op = op.Clone()
		op.Target = mapTarget(op.Target)
		snap.Operations = append(snap.Operations, op)
	}
	for _, l := range st.loops {
		l = l.Clone()
		if j, ok := remap[l.Source]; ok {
			l.Source = j
		}
		l.Generated = mapList(l.Generated)
		snap.Loops = append(snap.Loops, l)
	}
	for _, g := range st.granulos {
		g = g.Clone()
		g.Generated = mapList(g.Generated)
		snap.Granulos = append(snap.Granulos, g)
	}
	for _, c := range st.postpro {
		c.Target = mapTarget(c.Target)
		snap.PostPro = append(snap.PostPro, c)
	}
	for name, members := range st.groups {
		snap.Groups[name] = mapList(members)
	}
	snap.Normalize()
	return snap
}

// Load builds a service from a snapshot, driving backend b from an empty
// state. Generator replay failures become warnings ("Loop N: ..." and
// "Granulo N: ...", N counted from 1) and keep the generator config with no
// generated avatars. Stored references to avatars of a failed generator are
// dropped. Any other failure aborts the load.
func Load(ctx context.Context, snap domain.Snapshot, b backend.Backend, opts ...Option) (*Service, error) {
	snap.Normalize()
	svc := NewService(b, opts...)
	if err := svc.NewProject(ctx, snap.ProjectName, snap.Dimension); err != nil {
		return nil, err
	}
	if err := svc.restore(ctx, func(tx *txn) error {
		tx.state.project.Units = snap.Units
		tx.state.project.Preferences = snap.Preferences
		for k, v := range snap.DynamicVars {
			tx.state.project.DynamicVars[k] = v
		}
		return nil
	}); err != nil {
		return nil, err
	}

	for _, m := range snap.Materials {
		if err := svc.AddMaterial(ctx, m); err != nil {
			return nil, fmt.Errorf("restore material %q: %w", m.Name, err)
		}
	}
	for _, m := range snap.Models {
		if err := svc.AddModel(ctx, m); err != nil {
			return nil, fmt.Errorf("restore model %q: %w", m.Name, err)
		}
	}
	idx := newReplayIndex(len(snap.Avatars))
	for i, a := range snap.Avatars {
		if a.Origin != "" && a.Origin != domain.OriginManual {
			continue
		}
		j, err := svc.AddAvatar(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("restore avatar %d: %w", i, err)
		}
		idx.saved[i] = j
	}

	var warnings []string
	for i, l := range snap.Loops {
		stored := l.Generated
		l.Generated = nil
		l.Source = idx.source(l.Source)
		replayed, err := svc.GenerateLoop(ctx, l)
		idx.track(stored, replayed, l.Count)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Loop %d: %v", i+1, err))
			if rerr := svc.restore(ctx, func(tx *txn) error {
				tx.state.loops = append(tx.state.loops, l.Clone())
				return nil
			}); rerr != nil {
				return nil, rerr
			}
		}
	}
	for i, g := range snap.Granulos {
		stored := g.Generated
		g.Generated = nil
		replayed, err := svc.GenerateGranulo(ctx, g)
		idx.track(stored, replayed, g.Count)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Granulo %d: %v", i+1, err))
			if rerr := svc.restore(ctx, func(tx *txn) error {
				tx.state.granulos = append(tx.state.granulos, g.Clone())
				return nil
			}); rerr != nil {
				return nil, rerr
			}
		}
	}

	for _, l := range snap.ContactLaws {
		if err := svc.AddContactLaw(ctx, l); err != nil {
			return nil, fmt.Errorf("restore contact law %q: %w", l.Name, err)
		}
	}
	for i, r := range snap.VisibilityRules {
		if _, err := svc.AddVisibilityRule(ctx, r); err != nil {
			return nil, fmt.Errorf("restore visibility rule %d: %w", i+1, err)
		}
	}

	if err := svc.restore(ctx, func(tx *txn) error {
		groups := make(map[string][]int, len(snap.Groups))
		for name, members := range snap.Groups {
			groups[name] = idx.members(members)
		}
		for name, members := range tx.state.groups {
			if _, ok := groups[name]; !ok {
				groups[name] = members
			}
		}
		tx.state.groups = groups
		return nil
	}); err != nil {
		return nil, err
	}

	operations := make([]domain.DOFOperation, 0, len(snap.Operations))
	for i, op := range snap.Operations {
		op = op.Clone()
		op.Target = idx.target(op.Target)
		if err := svc.ApplyDOFOperation(ctx, op); err != nil {
			return nil, fmt.Errorf("replay operation %d: %w", i+1, err)
		}
		operations = append(operations, op)
	}
	if err := svc.restore(ctx, func(tx *txn) error {
		tx.state.operations = append(tx.state.operations, operations...)
		for i, c := range snap.PostPro {
			if err := domain.ValidatePostProCommand(c); err != nil {
				return fmt.Errorf("restore postpro command %d: %w", i+1, err)
			}
			c.Target = idx.target(c.Target)
			tx.state.postpro = append(tx.state.postpro, c)
		}
		return tx.rebuildPostPro()
	}); err != nil {
		return nil, err
	}

	svc.mu.Lock()
	svc.warnings = warnings
	svc.mu.Unlock()
	for _, w := range warnings {
		svc.logger.Warn("replay warning", zap.String("project", snap.ProjectName), zap.String("warning", w))
	}
	return svc, nil
}

// restore runs a bulk state change outside the validated operation paths.
func (s *Service) restore(ctx context.Context, fn func(tx *txn) error) error {
	return s.run(ctx, "restore", fn)
}

// replayIndex maps avatar indices stored in a snapshot to the indices the
// avatars receive during Load. Avatars of a generator that failed to replay
// have no entry, so references to them are dropped instead of landing on
// whichever avatar took their place.
type replayIndex struct {
	saved  map[int]int
	manual int
	next   int
}

func newReplayIndex(manual int) *replayIndex {
	return &replayIndex{saved: make(map[int]int, manual), manual: manual, next: manual}
}

// source translates a loop source. Sources are manual avatars, so a stored
// index inside the manual range without an entry names a skipped record.
func (r *replayIndex) source(i int) int {
	if j, ok := r.saved[i]; ok {
		return j
	}
	if i >= 0 && i < r.manual {
		return DetachedAvatar
	}
	return i
}

// track pairs a generator's stored indices with the ones it produced on
// replay. Snapshots without stored indices number the avatars in replay
// order, using count when the generator failed.
func (r *replayIndex) track(stored, replayed []int, count int) {
	if len(stored) == 0 {
		if len(replayed) > 0 {
			count = len(replayed)
		}
		count = max(count, 0)
		stored = make([]int, count)
		for k := range stored {
			stored[k] = r.next + k
		}
	}
	for k, i := range stored {
		if k < len(replayed) {
			r.saved[i] = replayed[k]
		}
		if i >= r.next {
			r.next = i + 1
		}
	}
}

func (r *replayIndex) members(list []int) []int {
	out := []int{}
	for _, i := range list {
		if j, ok := r.saved[i]; ok && !containsInt(out, j) {
			out = append(out, j)
		}
	}
	return out
}

func (r *replayIndex) target(t domain.Target) domain.Target {
	if t.Kind != domain.TargetAvatar || t.Avatar < 0 {
		return t
	}
	if j, ok := r.saved[t.Avatar]; ok {
		t.Avatar = j
	} else {
		t.Avatar = DetachedAvatar
	}
	return t
}

package core

import (
	"sort"

	"scenecore/pkg/domain"
)

// sceneState is the authoritative entity collection. Ordered collections are
// addressed by position; materials, models, laws and groups by name.
type sceneState struct {
	project    domain.Project
	materials  []domain.Material
	models     []domain.Model
	avatars    []domain.Avatar
	laws       []domain.ContactLaw
	rules      []domain.VisibilityRule
	operations []domain.DOFOperation
	loops      []domain.Loop
	granulos   []domain.GranuloGeneration
	postpro    []domain.PostProCommand
	groups     map[string][]int
}

func newSceneState(project domain.Project) sceneState {
	return sceneState{project: project, groups: map[string][]int{}}
}

func (s sceneState) clone() sceneState {
	cp := sceneState{
		project:    s.project.Clone(),
		materials:  make([]domain.Material, len(s.materials)),
		models:     make([]domain.Model, len(s.models)),
		avatars:    make([]domain.Avatar, len(s.avatars)),
		laws:       make([]domain.ContactLaw, len(s.laws)),
		rules:      append([]domain.VisibilityRule(nil), s.rules...),
		operations: make([]domain.DOFOperation, len(s.operations)),
		loops:      make([]domain.Loop, len(s.loops)),
		granulos:   make([]domain.GranuloGeneration, len(s.granulos)),
		postpro:    append([]domain.PostProCommand(nil), s.postpro...),
		groups:     make(map[string][]int, len(s.groups)),
	}
	for i, v := range s.materials {
		cp.materials[i] = v.Clone()
	}
	for i, v := range s.models {
		cp.models[i] = v.Clone()
	}
	for i, v := range s.avatars {
		cp.avatars[i] = v.Clone()
	}
	for i, v := range s.laws {
		cp.laws[i] = v.Clone()
	}
	for i, v := range s.operations {
		cp.operations[i] = v.Clone()
	}
	for i, v := range s.loops {
		cp.loops[i] = v.Clone()
	}
	for i, v := range s.granulos {
		cp.granulos[i] = v.Clone()
	}
	for k, v := range s.groups {
		cp.groups[k] = append([]int(nil), v...)
	}
	return cp
}

func (s sceneState) materialIndex(name string) int {
	for i, m := range s.materials {
		if m.Name == name {
			return i
		}
	}
	return -1
}

func (s sceneState) modelIndex(name string) int {
	for i, m := range s.models {
		if m.Name == name {
			return i
		}
	}
	return -1
}

func (s sceneState) lawIndex(name string) int {
	for i, l := range s.laws {
		if l.Name == name {
			return i
		}
	}
	return -1
}

func (s sceneState) groupNames() []string {
	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// shiftAfterDelete rewrites every stored avatar index after the avatar at
// removed has been dropped: later indices move down by one and references
// to the removed avatar are dropped or detached.
func (s *sceneState) shiftAfterDelete(removed int) {
	shift := func(list []int) []int {
		out := list[:0]
		for _, v := range list {
			switch {
			case v == removed:
				continue
			case v > removed:
				out = append(out, v-1)
			default:
				out = append(out, v)
			}
		}
		return out
	}
	for name, members := range s.groups {
		s.groups[name] = shift(members)
	}
	for i := range s.loops {
		if s.loops[i].Source > removed {
			s.loops[i].Source--
		}
		s.loops[i].Generated = shift(s.loops[i].Generated)
	}
	for i := range s.granulos {
		s.granulos[i].Generated = shift(s.granulos[i].Generated)
	}
	for i := range s.operations {
		s.operations[i].Target = shiftTarget(s.operations[i].Target, removed)
	}
	for i := range s.postpro {
		s.postpro[i].Target = shiftTarget(s.postpro[i].Target, removed)
	}
}

// DetachedAvatar marks an avatar target whose avatar was deleted.
const DetachedAvatar = -1

func shiftTarget(t domain.Target, removed int) domain.Target {
	if t.Kind != domain.TargetAvatar || t.Avatar < 0 {
		return t
	}
	switch {
	case t.Avatar == removed:
		t.Avatar = DetachedAvatar
	case t.Avatar > removed:
		t.Avatar--
	}
	return t
}

// ruleView adapts sceneState to domain.RuleView.
type ruleView struct {
	state *sceneState
}

func (v ruleView) ListAvatars() []domain.Avatar                 { return v.state.avatars }
func (v ruleView) ListVisibilityRules() []domain.VisibilityRule { return v.state.rules }
func (v ruleView) ListDOFOperations() []domain.DOFOperation     { return v.state.operations }
func (v ruleView) ListLoops() []domain.Loop                     { return v.state.loops }
func (v ruleView) ListGranulos() []domain.GranuloGeneration     { return v.state.granulos }
func (v ruleView) ListPostProCommands() []domain.PostProCommand { return v.state.postpro }
func (v ruleView) Groups() map[string][]int                     { return v.state.groups }

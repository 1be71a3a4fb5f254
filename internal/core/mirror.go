package core

import "scenecore/internal/backend"

// mirror holds the backend handle of every entity, keyed like sceneState.
type mirror struct {
	materials map[string]backend.MaterialHandle
	models    map[string]backend.ModelHandle
	avatars   []backend.AvatarHandle
	laws      map[string]backend.LawHandle
	rules     []backend.RuleHandle
	postpro   []backend.PostProHandle
}

func newMirror() mirror {
	return mirror{
		materials: map[string]backend.MaterialHandle{},
		models:    map[string]backend.ModelHandle{},
		laws:      map[string]backend.LawHandle{},
	}
}

func (m mirror) clone() mirror {
	cp := mirror{
		materials: make(map[string]backend.MaterialHandle, len(m.materials)),
		models:    make(map[string]backend.ModelHandle, len(m.models)),
		avatars:   append([]backend.AvatarHandle(nil), m.avatars...),
		laws:      make(map[string]backend.LawHandle, len(m.laws)),
		rules:     append([]backend.RuleHandle(nil), m.rules...),
		postpro:   append([]backend.PostProHandle(nil), m.postpro...),
	}
	for k, v := range m.materials {
		cp.materials[k] = v
	}
	for k, v := range m.models {
		cp.models[k] = v
	}
	for k, v := range m.laws {
		cp.laws[k] = v
	}
	return cp
}

// MirrorStats reports how many handles the mirror holds per collection.
type MirrorStats struct {
	Materials       int
	Models          int
	Avatars         int
	ContactLaws     int
	VisibilityRules int
	PostPro         int
}

func (m mirror) stats() MirrorStats {
	return MirrorStats{
		Materials:       len(m.materials),
		Models:          len(m.models),
		Avatars:         len(m.avatars),
		ContactLaws:     len(m.laws),
		VisibilityRules: len(m.rules),
		PostPro:         len(m.postpro),
	}
}

package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Snapshot is the persisted form of a scene: hand-authored avatars plus every
// other entity, with generator configs kept so generated avatars can be
// recomputed on load.
type Snapshot struct {
	ProjectName     string              `json:"project_name"`
	Dimension       int                 `json:"dimension"`
	Units           map[string]string   `json:"units"`
	Preferences     Preferences         `json:"preferences"`
	Materials       []Material          `json:"materials"`
	Models          []Model             `json:"models"`
	Avatars         []Avatar            `json:"avatars"`
	ContactLaws     []ContactLaw        `json:"contact_laws"`
	VisibilityRules []VisibilityRule    `json:"visibility_rules"`
	Operations      []DOFOperation      `json:"operations"`
	Loops           []Loop              `json:"loops"`
	Granulos        []GranuloGeneration `json:"granulo_generations"`
	PostPro         []PostProCommand    `json:"postpro_creations"`
	Groups          map[string][]int    `json:"avatar_groups"`
	DynamicVars     map[string]float64  `json:"dynamic_vars"`
}

// DefaultProjectName names projects loaded from records without one.
const DefaultProjectName = "Project"

// Normalize fills defaults for fields missing from older snapshots.
func (s *Snapshot) Normalize() {
	if s.ProjectName == "" {
		s.ProjectName = DefaultProjectName
	}
	if s.Dimension == 0 {
		s.Dimension = 2
	}
	if s.Preferences.UnitSystem == "" {
		s.Preferences = DefaultPreferences()
	}
	if len(s.Units) == 0 {
		s.Units = s.Preferences.UnitSystem.Labels()
	}
	if s.Groups == nil {
		s.Groups = map[string][]int{}
	}
	if s.DynamicVars == nil {
		s.DynamicVars = map[string]float64{}
	}
	emptySlices(s)
}

func emptySlices(s *Snapshot) {
	if s.Materials == nil {
		s.Materials = []Material{}
	}
	if s.Models == nil {
		s.Models = []Model{}
	}
	if s.Avatars == nil {
		s.Avatars = []Avatar{}
	}
	if s.ContactLaws == nil {
		s.ContactLaws = []ContactLaw{}
	}
	if s.VisibilityRules == nil {
		s.VisibilityRules = []VisibilityRule{}
	}
	if s.Operations == nil {
		s.Operations = []DOFOperation{}
	}
	if s.Loops == nil {
		s.Loops = []Loop{}
	}
	if s.Granulos == nil {
		s.Granulos = []GranuloGeneration{}
	}
	if s.PostPro == nil {
		s.PostPro = []PostProCommand{}
	}
}

// EncodeSnapshot renders the snapshot as indented JSON.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	s.Normalize()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot parses snapshot JSON and applies Normalize.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	s.Normalize()
	return s, nil
}

// SnapshotStore persists snapshots keyed by project name.
type SnapshotStore interface {
	Save(ctx context.Context, project string, snap Snapshot) error
	Load(ctx context.Context, project string) (Snapshot, error)
	List(ctx context.Context) ([]string, error)
	Driver() string
}

// SnapshotBuckets splits an encoded snapshot into one JSON payload per
// top-level key. Row-oriented stores persist one row per bucket.
func SnapshotBuckets(s Snapshot) (map[string][]byte, error) {
	data, err := EncodeSnapshot(s)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("split snapshot: %w", err)
	}
	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		out[k] = []byte(v)
	}
	return out, nil
}

// SnapshotFromBuckets reassembles a snapshot from its bucket payloads.
// Unknown buckets are ignored and missing ones take defaults.
func SnapshotFromBuckets(buckets map[string][]byte) (Snapshot, error) {
	raw := make(map[string]json.RawMessage, len(buckets))
	for k, v := range buckets {
		if len(v) == 0 {
			continue
		}
		raw[k] = json.RawMessage(v)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("join snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

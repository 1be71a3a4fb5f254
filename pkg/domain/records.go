package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Records are encoded with the field names used by existing project files.
// Decoding ignores unknown fields and fills defaults for missing optional ones.

type fields map[string]json.RawMessage

func decodeFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f == nil {
		f = fields{}
	}
	return f, nil
}

func (f fields) has(key string) bool {
	raw, ok := f[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (f fields) decode(key string, dst any) (bool, error) {
	if !f.has(key) {
		return false, nil
	}
	if err := json.Unmarshal(f[key], dst); err != nil {
		return true, fmt.Errorf("field %q: %w", key, err)
	}
	return true, nil
}

func (f fields) float(key string) (float64, bool, error) {
	var v float64
	ok, err := f.decode(key, &v)
	return v, ok, err
}

// int accepts integral JSON numbers written with a fractional part.
func (f fields) int(key string) (int, bool, error) {
	v, ok, err := f.float(key)
	return int(v), ok, err
}

func (f fields) str(key string) (string, error) {
	var v string
	_, err := f.decode(key, &v)
	return v, err
}

func (f fields) extras(known ...string) (map[string]any, error) {
	skip := make(map[string]struct{}, len(known))
	for _, k := range known {
		skip[k] = struct{}{}
	}
	var out map[string]any
	for k, raw := range f {
		if _, ok := skip[k]; ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		if out == nil {
			out = map[string]any{}
		}
		out[k] = v
	}
	return out, nil
}

type firstErr struct{ err error }

func (e *firstErr) float(f fields, key string) float64 {
	v, _, err := f.float(key)
	e.keep(err)
	return v
}

func (e *firstErr) int(f fields, key string) int {
	v, _, err := f.int(key)
	e.keep(err)
	return v
}

func (e *firstErr) str(f fields, key string) string {
	v, err := f.str(key)
	e.keep(err)
	return v
}

func (e *firstErr) keep(err error) {
	if e.err == nil && err != nil {
		e.err = err
	}
}

func requireKeys(entity EntityType, f fields, keys ...string) error {
	for _, k := range keys {
		if !f.has(k) {
			return invalid(entity, k, "missing required field")
		}
	}
	return nil
}

// MarshalJSON encodes the material record.
func (m Material) MarshalJSON() ([]byte, error) {
	props := m.Properties
	if props == nil {
		props = map[string]any{}
	}
	return json.Marshal(map[string]any{
		"name":    m.Name,
		"type":    m.Kind,
		"density": m.Density,
		"props":   props,
	})
}

// UnmarshalJSON decodes a material record.
func (m *Material) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	if err := requireKeys(EntityMaterial, f, "name", "type", "density"); err != nil {
		return err
	}
	var e firstErr
	out := Material{
		Name:    e.str(f, "name"),
		Kind:    MaterialKind(e.str(f, "type")),
		Density: e.float(f, "density"),
	}
	_, err = f.decode("props", &out.Properties)
	e.keep(err)
	if e.err != nil {
		return e.err
	}
	*m = out
	return nil
}

var modelKeys = []string{"name", "physics", "element", "dimension"}

// MarshalJSON encodes the model with options flattened beside the base keys.
func (m Model) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Options)+4)
	for k, v := range m.Options {
		out[k] = v
	}
	out["name"] = m.Name
	out["physics"] = m.Physics
	out["element"] = m.Element
	out["dimension"] = m.Dimension
	return json.Marshal(out)
}

// UnmarshalJSON decodes a model record; non-base keys become options.
func (m *Model) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	if err := requireKeys(EntityModel, f, modelKeys...); err != nil {
		return err
	}
	var e firstErr
	out := Model{
		Name:      e.str(f, "name"),
		Physics:   e.str(f, "physics"),
		Element:   e.str(f, "element"),
		Dimension: e.int(f, "dimension"),
	}
	out.Options, err = f.extras(modelKeys...)
	e.keep(err)
	if e.err != nil {
		return e.err
	}
	*m = out
	return nil
}

type contactorRecord struct {
	Shape  string         `json:"shape"`
	Color  string         `json:"color"`
	Params map[string]any `json:"params"`
}

// MarshalJSON encodes the avatar with its shape fields flattened.
func (a Avatar) MarshalJSON() ([]byte, error) {
	color := a.Color
	if color == "" {
		color = DefaultColor
	}
	origin := a.Origin
	if origin == "" {
		origin = OriginManual
	}
	out := map[string]any{
		"type":     a.Kind,
		"center":   a.Center,
		"material": a.Material,
		"model":    a.Model,
		"color":    color,
		"__origin": origin,
	}
	switch s := a.Shape.(type) {
	case DiskShape:
		out["r"] = s.Radius
		if s.Hollow {
			out["is_Hollow"] = true
		}
	case ClusterShape:
		out["r"] = s.Radius
		out["nb_vertices"] = s.Disks
	case JoncShape:
		out["axe1"] = s.Axe1
		out["axe2"] = s.Axe2
	case PolygonShape:
		out["gen_type"] = s.Generation
		if s.Radius > 0 {
			out["r"] = s.Radius
		}
		if s.VertexCount > 0 {
			out["nb_vertices"] = s.VertexCount
		}
		if len(s.Vertices) > 0 {
			out["vertices"] = s.Vertices
		}
	case OvoidShape:
		out["ra"] = s.Ra
		out["rb"] = s.Rb
		out["nb_vertices"] = s.VertexCount
	case WallShape:
		putPositive(out, "l", s.Length)
		putPositive(out, "h", s.Height)
		putPositive(out, "r", s.Radius)
		putPositive(out, "rmin", s.RMin)
		putPositive(out, "rmax", s.RMax)
		if s.VertexCount > 0 {
			out["nb_vertex"] = s.VertexCount
		}
		if s.PolygonCount > 0 {
			out["nb_polyg"] = s.PolygonCount
		}
	case EmptyShape:
		records := make([]contactorRecord, len(s.Contactors))
		for i, c := range s.Contactors {
			records[i] = contactorRecord{Shape: c.Shape, Color: c.Color, Params: c.Params}
		}
		out["contactors"] = records
	case CylinderShape:
		out["r"] = s.Radius
		out["h"] = s.Height
	}
	return json.Marshal(out)
}

func putPositive(out map[string]any, key string, v float64) {
	if v > 0 {
		out[key] = v
	}
}

// UnmarshalJSON decodes an avatar record and builds the shape matching its kind.
func (a *Avatar) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	if err := requireKeys(EntityAvatar, f, "type", "center", "material", "model"); err != nil {
		return err
	}
	var e firstErr
	out := Avatar{
		Kind:     AvatarKind(e.str(f, "type")),
		Material: e.str(f, "material"),
		Model:    e.str(f, "model"),
		Color:    DefaultColor,
		Origin:   OriginManual,
	}
	_, err = f.decode("center", &out.Center)
	e.keep(err)
	if f.has("color") {
		out.Color = e.str(f, "color")
	}
	if f.has("__origin") {
		out.Origin = Origin(e.str(f, "__origin"))
	}
	if e.err != nil {
		return e.err
	}
	shape, err := decodeShape(out.Kind, f)
	if err != nil {
		return err
	}
	out.Shape = shape
	*a = out
	return nil
}

func decodeShape(kind AvatarKind, f fields) (Shape, error) {
	var e firstErr
	var shape Shape
	switch avatarFamilies[kind] {
	case familyDisk:
		s := DiskShape{Radius: e.float(f, "r")}
		_, err := f.decode("is_Hollow", &s.Hollow)
		e.keep(err)
		shape = s
	case familyCluster:
		disks := 1
		if f.has("nb_vertices") {
			disks = e.int(f, "nb_vertices")
		}
		shape = ClusterShape{Radius: e.float(f, "r"), Disks: disks}
	case familyJonc:
		shape = JoncShape{Axe1: e.float(f, "axe1"), Axe2: e.float(f, "axe2")}
	case familyPolygon:
		s := PolygonShape{
			Generation:  PolygonGeneration(e.str(f, "gen_type")),
			Radius:      e.float(f, "r"),
			VertexCount: e.int(f, "nb_vertices"),
		}
		_, err := f.decode("vertices", &s.Vertices)
		e.keep(err)
		if s.Generation == "" {
			s.Generation = PolygonFull
			if len(s.Vertices) == 0 {
				s.Generation = PolygonRegular
			}
		}
		shape = s
	case familyOvoid:
		shape = OvoidShape{Ra: e.float(f, "ra"), Rb: e.float(f, "rb"), VertexCount: e.int(f, "nb_vertices")}
	case familyWall:
		shape = WallShape{
			Length:       e.float(f, "l"),
			Height:       e.float(f, "h"),
			Radius:       e.float(f, "r"),
			RMin:         e.float(f, "rmin"),
			RMax:         e.float(f, "rmax"),
			VertexCount:  e.int(f, "nb_vertex"),
			PolygonCount: e.int(f, "nb_polyg"),
		}
	case familyEmpty:
		var records []contactorRecord
		_, err := f.decode("contactors", &records)
		e.keep(err)
		s := EmptyShape{Contactors: make([]Contactor, len(records))}
		for i, r := range records {
			color := r.Color
			if color == "" {
				color = DefaultColor
			}
			s.Contactors[i] = Contactor{Shape: r.Shape, Color: color, Params: r.Params}
		}
		shape = s
	case familyCylinder:
		shape = CylinderShape{Radius: e.float(f, "r"), Height: e.float(f, "h")}
	case familyPlan:
		shape = PlanShape{}
	default:
		return nil, invalid(EntityAvatar, "type", "unknown kind %q", kind)
	}
	if e.err != nil {
		return nil, e.err
	}
	return shape, nil
}

var lawKeys = []string{"name", "law", "fric"}

// MarshalJSON encodes the law with properties flattened beside the base keys.
func (l ContactLaw) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Properties)+3)
	for k, v := range l.Properties {
		out[k] = v
	}
	out["name"] = l.Name
	out["law"] = l.Kind
	if l.Friction != nil {
		out["fric"] = *l.Friction
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a contact law record.
func (l *ContactLaw) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	if err := requireKeys(EntityContactLaw, f, "name", "law"); err != nil {
		return err
	}
	var e firstErr
	out := ContactLaw{Name: e.str(f, "name"), Kind: ContactLawKind(e.str(f, "law"))}
	if f.has("fric") {
		fric := e.float(f, "fric")
		out.Friction = &fric
	}
	out.Properties, err = f.extras(lawKeys...)
	e.keep(err)
	if e.err != nil {
		return e.err
	}
	*l = out
	return nil
}

type visibilityWire struct {
	CandidateBody       string   `json:"CorpsCandidat"`
	CandidateContactor  string   `json:"candidat"`
	CandidateColor      string   `json:"colorCandidat"`
	AntagonistBody      string   `json:"CorpsAntagoniste"`
	AntagonistContactor string   `json:"antagoniste"`
	AntagonistColor     string   `json:"colorAntagoniste"`
	Behavior            string   `json:"behav"`
	Alert               *float64 `json:"alert,omitempty"`
}

// MarshalJSON encodes the visibility rule.
func (r VisibilityRule) MarshalJSON() ([]byte, error) {
	alert := r.Alert
	return json.Marshal(visibilityWire{
		CandidateBody:       r.Candidate.Body,
		CandidateContactor:  r.Candidate.Contactor,
		CandidateColor:      r.Candidate.Color,
		AntagonistBody:      r.Antagonist.Body,
		AntagonistContactor: r.Antagonist.Contactor,
		AntagonistColor:     r.Antagonist.Color,
		Behavior:            r.Behavior,
		Alert:               &alert,
	})
}

// UnmarshalJSON decodes a visibility rule; a missing alert takes DefaultAlert.
func (r *VisibilityRule) UnmarshalJSON(data []byte) error {
	var w visibilityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	alert := DefaultAlert
	if w.Alert != nil {
		alert = *w.Alert
	}
	*r = VisibilityRule{
		Candidate:  ContactorSpec{Body: w.CandidateBody, Contactor: w.CandidateContactor, Color: w.CandidateColor},
		Antagonist: ContactorSpec{Body: w.AntagonistBody, Contactor: w.AntagonistContactor, Color: w.AntagonistColor},
		Behavior:   w.Behavior,
		Alert:      alert,
	}
	return nil
}

// MarshalJSON encodes the operation with an explicit target kind.
func (o DOFOperation) MarshalJSON() ([]byte, error) {
	params := o.Params
	if params == nil {
		params = map[string]any{}
	}
	out := map[string]any{
		"type":   o.Kind,
		"target": o.Target.Kind,
		"params": params,
	}
	switch o.Target.Kind {
	case TargetAvatar:
		out["target_value"] = o.Target.Avatar
	case TargetGroup:
		out["target_value"] = o.Target.Group
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an operation, accepting the legacy body_index and
// group_name target keys.
func (o *DOFOperation) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	if err := requireKeys(EntityDOFOperation, f, "type"); err != nil {
		return err
	}
	var e firstErr
	out := DOFOperation{Kind: DOFKind(e.str(f, "type"))}
	switch {
	case f.has("body_index"):
		out.Target = AvatarTarget(e.int(f, "body_index"))
	case f.has("group_name"):
		out.Target = GroupTarget(e.str(f, "group_name"))
	default:
		kind := TargetAvatar
		if f.has("target") {
			kind = TargetKind(e.str(f, "target"))
		}
		if kind == TargetGroup {
			out.Target = GroupTarget(e.str(f, "target_value"))
		} else {
			out.Target = AvatarTarget(e.int(f, "target_value"))
		}
	}
	_, err = f.decode("params", &out.Params)
	e.keep(err)
	if e.err != nil {
		return e.err
	}
	*o = out
	return nil
}

var legacyPatterns = map[string]LoopPattern{
	"Cercle":  PatternCircle,
	"Grille":  PatternGrid,
	"Ligne":   PatternLine,
	"Spirale": PatternSpiral,
	"Manuel":  PatternManual,
}

// ParseLoopPattern maps current and legacy pattern names to a LoopPattern.
func ParseLoopPattern(name string) LoopPattern {
	if p, ok := legacyPatterns[name]; ok {
		return p
	}
	return LoopPattern(name)
}

type loopWire struct {
	Type         string      `json:"type"`
	Source       *int        `json:"model_avatar_index"`
	Count        *int        `json:"count"`
	Radius       float64     `json:"radius"`
	Step         float64     `json:"step"`
	OffsetX      float64     `json:"offset_x"`
	OffsetY      float64     `json:"offset_y"`
	SpiralFactor float64     `json:"spiral_factor"`
	InvertAxis   bool        `json:"invert_axis"`
	Group        *string     `json:"stored_in_group"`
	Generated    []int       `json:"generated_avatar_indices"`
	Centers      [][]float64 `json:"centers,omitempty"`
}

// MarshalJSON encodes the loop configuration.
func (l Loop) MarshalJSON() ([]byte, error) {
	source, count := l.Source, l.Count
	w := loopWire{
		Type:         string(l.Pattern),
		Source:       &source,
		Count:        &count,
		Radius:       l.Radius,
		Step:         l.Step,
		OffsetX:      l.OffsetX,
		OffsetY:      l.OffsetY,
		SpiralFactor: l.SpiralFactor,
		InvertAxis:   l.InvertAxis,
		Generated:    l.Generated,
		Centers:      l.Centers,
	}
	if w.Generated == nil {
		w.Generated = []int{}
	}
	if l.Group != "" {
		group := l.Group
		w.Group = &group
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a loop configuration.
func (l *Loop) UnmarshalJSON(data []byte) error {
	var w loopWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Source == nil || w.Count == nil || w.Type == "" {
		return invalid(EntityLoop, "", "type, model_avatar_index and count are required")
	}
	out := Loop{
		Pattern:      ParseLoopPattern(w.Type),
		Source:       *w.Source,
		Count:        *w.Count,
		Radius:       w.Radius,
		Step:         w.Step,
		OffsetX:      w.OffsetX,
		OffsetY:      w.OffsetY,
		SpiralFactor: w.SpiralFactor,
		InvertAxis:   w.InvertAxis,
		Generated:    w.Generated,
		Centers:      w.Centers,
	}
	if w.Group != nil {
		out.Group = *w.Group
	}
	*l = out
	return nil
}

// MarshalJSON encodes the deposition configuration.
func (g GranuloGeneration) MarshalJSON() ([]byte, error) {
	container := make(map[string]any, len(g.ContainerParams)+1)
	for k, v := range g.ContainerParams {
		container[k] = v
	}
	container["type"] = g.Container
	generated := g.Generated
	if generated == nil {
		generated = []int{}
	}
	var group any
	if g.Group != "" {
		group = g.Group
	}
	return json.Marshal(map[string]any{
		"nb":               g.Count,
		"rmin":             g.RMin,
		"rmax":             g.RMax,
		"container_params": container,
		"model":            g.Model,
		"material":         g.Material,
		"avatar_type":      g.AvatarKind,
		"color":            g.Color,
		"seed":             g.Seed,
		"stored_in_group":  group,
		"avatar_indices":   generated,
	})
}

// UnmarshalJSON decodes a deposition configuration, accepting the legacy
// mod_name and mat_name keys.
func (g *GranuloGeneration) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	if err := requireKeys(EntityGranulo, f, "nb", "rmin", "rmax"); err != nil {
		return err
	}
	var e firstErr
	out := GranuloGeneration{
		Count:      e.int(f, "nb"),
		RMin:       e.float(f, "rmin"),
		RMax:       e.float(f, "rmax"),
		Container:  ContainerBox,
		Model:      "rigid",
		Material:   "TDURx",
		AvatarKind: AvatarRigidDisk,
		Color:      DefaultColor,
	}
	var container map[string]any
	_, err = f.decode("container_params", &container)
	e.keep(err)
	for k, v := range container {
		if k == "type" {
			if name, ok := v.(string); ok {
				out.Container = ContainerKind(name)
			}
			continue
		}
		if num, ok := v.(float64); ok {
			if out.ContainerParams == nil {
				out.ContainerParams = map[string]float64{}
			}
			out.ContainerParams[k] = num
		}
	}
	for _, key := range []string{"model", "mod_name"} {
		if f.has(key) {
			out.Model = e.str(f, key)
			break
		}
	}
	for _, key := range []string{"material", "mat_name"} {
		if f.has(key) {
			out.Material = e.str(f, key)
			break
		}
	}
	if f.has("avatar_type") {
		out.AvatarKind = AvatarKind(e.str(f, "avatar_type"))
	}
	if f.has("color") {
		out.Color = e.str(f, "color")
	}
	if f.has("seed") {
		var seed int64
		_, err := f.decode("seed", &seed)
		e.keep(err)
		out.Seed = &seed
	}
	out.Group = e.str(f, "stored_in_group")
	_, err = f.decode("avatar_indices", &out.Generated)
	e.keep(err)
	if e.err != nil {
		return e.err
	}
	*g = out
	return nil
}

type targetInfo struct {
	Type  TargetKind      `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the command; global commands carry no target_info.
func (c PostProCommand) MarshalJSON() ([]byte, error) {
	out := map[string]any{"name": c.Name, "step": c.Step}
	switch c.Target.Kind {
	case TargetAvatar:
		out["target_info"] = map[string]any{"type": TargetAvatar, "value": c.Target.Avatar}
	case TargetGroup:
		out["target_info"] = map[string]any{"type": TargetGroup, "value": c.Target.Group}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a post-processing command.
func (c *PostProCommand) UnmarshalJSON(data []byte) error {
	var w struct {
		Name   string      `json:"name"`
		Step   int         `json:"step"`
		Target *targetInfo `json:"target_info"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := PostProCommand{Name: w.Name, Step: w.Step}
	if w.Target != nil {
		switch w.Target.Type {
		case TargetAvatar:
			var idx float64
			if err := json.Unmarshal(w.Target.Value, &idx); err != nil {
				return fmt.Errorf("target_info value: %w", err)
			}
			out.Target = AvatarTarget(int(idx))
		case TargetGroup:
			var name string
			if err := json.Unmarshal(w.Target.Value, &name); err != nil {
				return fmt.Errorf("target_info value: %w", err)
			}
			out.Target = GroupTarget(name)
		}
	}
	*c = out
	return nil
}

type preferencesWire struct {
	DefaultProjectPath *string    `json:"default_project_path"`
	UnitSystem         UnitSystem `json:"unit_system"`
	AutoSave           *bool      `json:"auto_save"`
	AutoSaveInterval   *int       `json:"auto_save_interval"`
	BackupEnabled      *bool      `json:"backup_enabled"`
	RecentProjects     []string   `json:"recent_projects"`
	MaxRecentProjects  *int       `json:"max_recent_projects"`
}

// MarshalJSON encodes the preferences.
func (p Preferences) MarshalJSON() ([]byte, error) {
	var path *string
	if p.DefaultProjectPath != "" {
		path = &p.DefaultProjectPath
	}
	recent := p.RecentProjects
	if recent == nil {
		recent = []string{}
	}
	return json.Marshal(preferencesWire{
		DefaultProjectPath: path,
		UnitSystem:         p.UnitSystem,
		AutoSave:           &p.AutoSave,
		AutoSaveInterval:   &p.AutoSaveInterval,
		BackupEnabled:      &p.BackupEnabled,
		RecentProjects:     recent,
		MaxRecentProjects:  &p.MaxRecentProjects,
	})
}

// UnmarshalJSON decodes preferences over DefaultPreferences.
func (p *Preferences) UnmarshalJSON(data []byte) error {
	var w preferencesWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := DefaultPreferences()
	if w.DefaultProjectPath != nil {
		out.DefaultProjectPath = *w.DefaultProjectPath
	}
	if w.UnitSystem != "" {
		out.UnitSystem = w.UnitSystem
	}
	if w.AutoSave != nil {
		out.AutoSave = *w.AutoSave
	}
	if w.AutoSaveInterval != nil {
		out.AutoSaveInterval = *w.AutoSaveInterval
	}
	if w.BackupEnabled != nil {
		out.BackupEnabled = *w.BackupEnabled
	}
	out.RecentProjects = w.RecentProjects
	if w.MaxRecentProjects != nil {
		out.MaxRecentProjects = *w.MaxRecentProjects
	}
	*p = out
	return nil
}

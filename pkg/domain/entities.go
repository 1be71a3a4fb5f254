// Package domain defines the scene entities, value types, errors and rule
// evaluation primitives used by scenecore.
package domain

import "math"

// EntityType identifies the kind of record held by the scene store.
type EntityType string

// Supported entity type identifiers used in Change records, errors and buckets.
const (
	EntityMaterial       EntityType = "material"
	EntityModel          EntityType = "model"
	EntityAvatar         EntityType = "avatar"
	EntityContactLaw     EntityType = "contact_law"
	EntityVisibilityRule EntityType = "visibility_rule"
	EntityDOFOperation   EntityType = "dof_operation"
	EntityLoop           EntityType = "loop"
	EntityGranulo        EntityType = "granulo_generation"
	EntityPostPro        EntityType = "postpro_command"
	EntityGroup          EntityType = "avatar_group"
	EntityProject        EntityType = "project"
)

// MaterialKind enumerates the material behaviours understood by the engine.
type MaterialKind string

// Supported material kinds.
const (
	MaterialRigid      MaterialKind = "RIGID"
	MaterialElas       MaterialKind = "ELAS"
	MaterialElasDila   MaterialKind = "ELAS_DILA"
	MaterialViscoElas  MaterialKind = "VISCO_ELAS"
	MaterialElasPlas   MaterialKind = "ELAS_PLAS"
	MaterialThermoElas MaterialKind = "THERMO_ELAS"
	MaterialPoroElas   MaterialKind = "PORO_ELAS"
)

// Valid reports whether k is a supported material kind.
func (k MaterialKind) Valid() bool {
	switch k {
	case MaterialRigid, MaterialElas, MaterialElasDila, MaterialViscoElas,
		MaterialElasPlas, MaterialThermoElas, MaterialPoroElas:
		return true
	}
	return false
}

// AvatarKind identifies the body builder used for an avatar.
type AvatarKind string

// 2-D avatar kinds.
const (
	AvatarRigidDisk     AvatarKind = "rigidDisk"
	AvatarRigidJonc     AvatarKind = "rigidJonc"
	AvatarRigidPolygon  AvatarKind = "rigidPolygon"
	AvatarRigidOvoid    AvatarKind = "rigidOvoidPolygon"
	AvatarRigidDiscrete AvatarKind = "rigidDiscreteDisk"
	AvatarRigidCluster  AvatarKind = "rigidCluster"
	AvatarRoughWall     AvatarKind = "roughWall"
	AvatarFineWall      AvatarKind = "fineWall"
	AvatarSmoothWall    AvatarKind = "smoothWall"
	AvatarGranuloWall   AvatarKind = "granuloRoughWall"
	AvatarEmpty         AvatarKind = "emptyAvatar"
)

// 3-D avatar kinds.
const (
	AvatarRigidSphere       AvatarKind = "rigidSphere"
	AvatarRigidPlan         AvatarKind = "rigidPlan"
	AvatarRigidCylinder     AvatarKind = "rigidCylinder"
	AvatarRigidPolyhedron   AvatarKind = "rigidPolyhedron"
	AvatarRoughWall3D       AvatarKind = "roughWall3D"
	AvatarGranuloRoughWall3 AvatarKind = "granuloRoughWall3D"
)

// Valid reports whether k is a known avatar kind.
func (k AvatarKind) Valid() bool {
	_, ok := avatarFamilies[k]
	return ok
}

// IsWall reports whether k builds a wall-like body.
func (k AvatarKind) IsWall() bool {
	return avatarFamilies[k] == familyWall
}

type shapeFamily int

const (
	familyDisk shapeFamily = iota + 1
	familyCluster
	familyJonc
	familyPolygon
	familyOvoid
	familyWall
	familyEmpty
	familyCylinder
	familyPlan
)

var avatarFamilies = map[AvatarKind]shapeFamily{
	AvatarRigidDisk:         familyDisk,
	AvatarRigidDiscrete:     familyDisk,
	AvatarRigidSphere:       familyDisk,
	AvatarRigidCluster:      familyCluster,
	AvatarRigidJonc:         familyJonc,
	AvatarRigidPolygon:      familyPolygon,
	AvatarRigidPolyhedron:   familyPolygon,
	AvatarRigidOvoid:        familyOvoid,
	AvatarRoughWall:         familyWall,
	AvatarFineWall:          familyWall,
	AvatarSmoothWall:        familyWall,
	AvatarGranuloWall:       familyWall,
	AvatarRoughWall3D:       familyWall,
	AvatarGranuloRoughWall3: familyWall,
	AvatarEmpty:             familyEmpty,
	AvatarRigidCylinder:     familyCylinder,
	AvatarRigidPlan:         familyPlan,
}

// ContactLawKind enumerates the interaction laws.
type ContactLawKind string

// Supported contact laws. The IQS_CLB family requires a friction coefficient.
const (
	LawIQSCLB     ContactLawKind = "IQS_CLB"
	LawIQSCLBG0   ContactLawKind = "IQS_CLB_g0"
	LawCoupledDOF ContactLawKind = "COUPLED_DOF"
)

// Valid reports whether k is a supported law.
func (k ContactLawKind) Valid() bool {
	switch k {
	case LawIQSCLB, LawIQSCLBG0, LawCoupledDOF:
		return true
	}
	return false
}

// NeedsFriction reports whether laws of this kind require a friction value.
func (k ContactLawKind) NeedsFriction() bool {
	return k == LawIQSCLB || k == LawIQSCLBG0
}

// Origin records how an avatar came to exist.
type Origin string

// Avatar origins.
const (
	OriginManual  Origin = "manual"
	OriginLoop    Origin = "loop"
	OriginGranulo Origin = "granulo"
)

// UnitSystem selects the unit labels shown to users.
type UnitSystem string

// Supported unit systems.
const (
	UnitsSI  UnitSystem = "SI"
	UnitsCGS UnitSystem = "CGS"
)

// Labels returns the unit label per physical quantity.
func (u UnitSystem) Labels() map[string]string {
	if u == UnitsCGS {
		return map[string]string{
			"length": "cm", "mass": "g", "time": "s", "force": "dyn",
			"pressure": "Ba", "energy": "erg", "density": "g/cm³",
			"velocity": "cm/s", "acceleration": "cm/s²",
		}
	}
	return map[string]string{
		"length": "m", "mass": "kg", "time": "s", "force": "N",
		"pressure": "Pa", "energy": "J", "density": "kg/m³",
		"velocity": "m/s", "acceleration": "m/s²",
	}
}

// DefaultColor is the engine's default contactor color.
const DefaultColor = "BLUEx"

// Material describes a bulk material.
type Material struct {
	Name       string
	Kind       MaterialKind
	Density    float64
	Properties map[string]any
}

// Model describes a physical model (rigid or finite element).
type Model struct {
	Name      string
	Physics   string
	Element   string
	Dimension int
	Options   map[string]any
}

// Avatar is a body placed in the scene. Shape carries the kind-specific
// parameters; its concrete type must match Kind.
type Avatar struct {
	Kind     AvatarKind
	Center   []float64
	Material string
	Model    string
	Color    string
	Origin   Origin
	Shape    Shape
}

// Shape is the closed set of kind-specific avatar parameters.
type Shape interface {
	family() shapeFamily
	clone() Shape
}

// DiskShape parameterises disks, discrete disks and spheres.
type DiskShape struct {
	Radius float64
	Hollow bool
}

// ClusterShape parameterises a cluster of disks inscribed in Radius.
type ClusterShape struct {
	Radius float64
	Disks  int
}

// JoncShape parameterises a rounded segment.
type JoncShape struct {
	Axe1 float64
	Axe2 float64
}

// PolygonGeneration selects how polygon vertices are produced.
type PolygonGeneration string

// Polygon generation modes.
const (
	PolygonRegular PolygonGeneration = "regular"
	PolygonFull    PolygonGeneration = "full"
	PolygonBevel   PolygonGeneration = "bevel"
)

// PolygonShape parameterises polygons and polyhedra.
type PolygonShape struct {
	Generation  PolygonGeneration
	Radius      float64
	VertexCount int
	Vertices    [][]float64
}

// OvoidShape parameterises an ovoid polygon with half axes Ra and Rb.
type OvoidShape struct {
	Ra          float64
	Rb          float64
	VertexCount int
}

// WallShape parameterises the wall family.
type WallShape struct {
	Length       float64
	Height       float64
	Radius       float64
	RMin         float64
	RMax         float64
	VertexCount  int
	PolygonCount int
}

// Contactor describes one contactor of an empty avatar.
type Contactor struct {
	Shape  string
	Color  string
	Params map[string]any
}

// EmptyShape is an avatar assembled from explicit contactors.
type EmptyShape struct {
	Contactors []Contactor
}

// CylinderShape parameterises a 3-D cylinder.
type CylinderShape struct {
	Radius float64
	Height float64
}

// PlanShape is a 3-D plane; it carries no parameters of its own.
type PlanShape struct{}

func (DiskShape) family() shapeFamily     { return familyDisk }
func (ClusterShape) family() shapeFamily  { return familyCluster }
func (JoncShape) family() shapeFamily     { return familyJonc }
func (PolygonShape) family() shapeFamily  { return familyPolygon }
func (OvoidShape) family() shapeFamily    { return familyOvoid }
func (WallShape) family() shapeFamily     { return familyWall }
func (EmptyShape) family() shapeFamily    { return familyEmpty }
func (CylinderShape) family() shapeFamily { return familyCylinder }
func (PlanShape) family() shapeFamily     { return familyPlan }

func (s DiskShape) clone() Shape     { return s }
func (s ClusterShape) clone() Shape  { return s }
func (s JoncShape) clone() Shape     { return s }
func (s OvoidShape) clone() Shape    { return s }
func (s WallShape) clone() Shape     { return s }
func (s CylinderShape) clone() Shape { return s }
func (s PlanShape) clone() Shape     { return s }

func (s PolygonShape) clone() Shape {
	cp := s
	cp.Vertices = clonePoints(s.Vertices)
	return cp
}

func (s EmptyShape) clone() Shape {
	cp := EmptyShape{Contactors: make([]Contactor, len(s.Contactors))}
	for i, c := range s.Contactors {
		cp.Contactors[i] = Contactor{Shape: c.Shape, Color: c.Color, Params: CloneMap(c.Params)}
	}
	return cp
}

// BoundingRadius returns the radius of a circle enclosing the shape around
// its center. It is used by backends that approximate bodies.
func BoundingRadius(s Shape) float64 {
	switch v := s.(type) {
	case DiskShape:
		return v.Radius
	case ClusterShape:
		return v.Radius
	case JoncShape:
		return v.Axe1 + v.Axe2
	case PolygonShape:
		r := v.Radius
		for _, p := range v.Vertices {
			var sq float64
			for _, c := range p {
				sq += c * c
			}
			r = math.Max(r, math.Sqrt(sq))
		}
		return r
	case OvoidShape:
		return math.Max(v.Ra, v.Rb)
	case WallShape:
		return v.Length/2 + math.Max(v.Radius, math.Max(v.RMax, v.Height/2))
	case CylinderShape:
		return math.Hypot(v.Radius, v.Height/2)
	}
	return 0
}

// Clone returns a deep copy of the avatar.
func (a Avatar) Clone() Avatar {
	cp := a
	cp.Center = append([]float64(nil), a.Center...)
	if a.Shape != nil {
		cp.Shape = a.Shape.clone()
	}
	return cp
}

// Clone returns a deep copy of the material.
func (m Material) Clone() Material {
	cp := m
	cp.Properties = CloneMap(m.Properties)
	return cp
}

// Clone returns a deep copy of the model.
func (m Model) Clone() Model {
	cp := m
	cp.Options = CloneMap(m.Options)
	return cp
}

// ContactLaw describes an interaction law between contactors.
type ContactLaw struct {
	Name       string
	Kind       ContactLawKind
	Friction   *float64
	Properties map[string]any
}

// Clone returns a deep copy of the law.
func (l ContactLaw) Clone() ContactLaw {
	cp := l
	if l.Friction != nil {
		f := *l.Friction
		cp.Friction = &f
	}
	cp.Properties = CloneMap(l.Properties)
	return cp
}

// ContactorSpec selects contactors by body kind, contactor kind and color.
type ContactorSpec struct {
	Body      string
	Contactor string
	Color     string
}

// VisibilityRule pairs two contactor specs with a contact law.
type VisibilityRule struct {
	Candidate  ContactorSpec
	Antagonist ContactorSpec
	Behavior   string
	Alert      float64
}

// DefaultAlert is the alert distance used when a record omits one.
const DefaultAlert = 0.1

// TargetKind discriminates operation and post-processing targets.
type TargetKind string

// Target kinds. TargetNone means global.
const (
	TargetNone   TargetKind = ""
	TargetAvatar TargetKind = "avatar"
	TargetGroup  TargetKind = "group"
)

// Target addresses a single avatar or a named group.
type Target struct {
	Kind   TargetKind
	Avatar int
	Group  string
}

// AvatarTarget returns a target for the avatar at index.
func AvatarTarget(index int) Target { return Target{Kind: TargetAvatar, Avatar: index} }

// GroupTarget returns a target for every member of group.
func GroupTarget(group string) Target { return Target{Kind: TargetGroup, Group: group} }

// DOFKind is the closed set of degree-of-freedom operations.
type DOFKind string

// Supported DOF operations.
const (
	DOFTranslate       DOFKind = "translate"
	DOFRotate          DOFKind = "rotate"
	DOFImposeDrivenDOF DOFKind = "imposeDrivenDof"
	DOFImposeInitValue DOFKind = "imposeInitValue"
)

// DOFOperation is a boundary-condition operation applied to avatars.
type DOFOperation struct {
	Kind   DOFKind
	Target Target
	Params map[string]any
}

// Clone returns a deep copy of the operation.
func (o DOFOperation) Clone() DOFOperation {
	cp := o
	cp.Params = CloneMap(o.Params)
	return cp
}

// LoopPattern selects a position generator.
type LoopPattern string

// Supported loop patterns.
const (
	PatternCircle LoopPattern = "circle"
	PatternGrid   LoopPattern = "grid"
	PatternLine   LoopPattern = "line"
	PatternSpiral LoopPattern = "spiral"
	PatternManual LoopPattern = "manual"
)

// Loop replicates a manual avatar along a pattern.
type Loop struct {
	Pattern      LoopPattern
	Source       int
	Count        int
	Radius       float64
	Step         float64
	OffsetX      float64
	OffsetY      float64
	SpiralFactor float64
	InvertAxis   bool
	Group        string
	Centers      [][]float64
	Generated    []int
}

// Clone returns a deep copy of the loop.
func (l Loop) Clone() Loop {
	cp := l
	cp.Centers = clonePoints(l.Centers)
	cp.Generated = append([]int(nil), l.Generated...)
	return cp
}

// ContainerKind selects the deposition container.
type ContainerKind string

// Supported deposition containers.
const (
	ContainerBox     ContainerKind = "Box2D"
	ContainerDisk    ContainerKind = "Disk2D"
	ContainerCouette ContainerKind = "Couette2D"
	ContainerDrum    ContainerKind = "Drum2D"
)

// RequiredParams lists the container parameters a deposition needs.
func (k ContainerKind) RequiredParams() ([]string, bool) {
	switch k {
	case ContainerBox:
		return []string{"lx", "ly"}, true
	case ContainerDisk, ContainerDrum:
		return []string{"r"}, true
	case ContainerCouette:
		return []string{"rint", "rext"}, true
	}
	return nil, false
}

// GranuloGeneration deposits randomly sized particles in a container.
type GranuloGeneration struct {
	Count           int
	RMin            float64
	RMax            float64
	Container       ContainerKind
	ContainerParams map[string]float64
	Material        string
	Model           string
	AvatarKind      AvatarKind
	Color           string
	Seed            *int64
	Group           string
	Generated       []int
}

// Clone returns a deep copy of the config.
func (g GranuloGeneration) Clone() GranuloGeneration {
	cp := g
	if g.ContainerParams != nil {
		cp.ContainerParams = make(map[string]float64, len(g.ContainerParams))
		for k, v := range g.ContainerParams {
			cp.ContainerParams[k] = v
		}
	}
	if g.Seed != nil {
		s := *g.Seed
		cp.Seed = &s
	}
	cp.Generated = append([]int(nil), g.Generated...)
	return cp
}

// Post-processing command names recognised by the engine.
const (
	PostProSolverInfo        = "SOLVER INFORMATIONS"
	PostProViolation         = "VIOLATION EVOLUTION"
	PostProKineticEnergy     = "KINETIC ENERGY"
	PostProDissipatedEnergy  = "DISSIPATED ENERGY"
	PostProCoordination      = "COORDINATION NUMBER"
	PostProBodyTracking      = "BODY TRACKING"
	PostProTorqueEvolution   = "TORQUE EVOLUTION"
	PostProForceDistribution = "CONTACT FORCE DISTRIBUTION"
	PostProNewMecaSets       = "NEW MECAx SETS"
	PostProFintEvolution     = "Fint EVOLUTION"
	PostProDepEvolution      = "Dep EVOLUTION"
)

var postProNames = map[string]bool{
	PostProSolverInfo:        false,
	PostProViolation:         false,
	PostProKineticEnergy:     false,
	PostProDissipatedEnergy:  false,
	PostProCoordination:      false,
	PostProBodyTracking:      true,
	PostProTorqueEvolution:   true,
	PostProForceDistribution: false,
	PostProNewMecaSets:       false,
	PostProFintEvolution:     false,
	PostProDepEvolution:      false,
}

// PostProCommand requests a post-processing output every Step iterations.
type PostProCommand struct {
	Name   string
	Step   int
	Target Target
}

// Preferences holds per-project user preferences.
type Preferences struct {
	DefaultProjectPath string
	UnitSystem         UnitSystem
	AutoSave           bool
	AutoSaveInterval   int
	BackupEnabled      bool
	RecentProjects     []string
	MaxRecentProjects  int
}

// DefaultPreferences returns the preferences of a fresh project.
func DefaultPreferences() Preferences {
	return Preferences{
		UnitSystem:        UnitsSI,
		AutoSave:          true,
		AutoSaveInterval:  300,
		BackupEnabled:     true,
		MaxRecentProjects: 10,
	}
}

// Project carries scene-wide metadata.
type Project struct {
	Name        string
	Dimension   int
	Units       map[string]string
	Preferences Preferences
	DynamicVars map[string]float64
}

// NewProject returns project metadata with defaults applied.
func NewProject(name string, dimension int) Project {
	prefs := DefaultPreferences()
	return Project{
		Name:        name,
		Dimension:   dimension,
		Units:       prefs.UnitSystem.Labels(),
		Preferences: prefs,
		DynamicVars: map[string]float64{},
	}
}

// Clone returns a deep copy of the project metadata.
func (p Project) Clone() Project {
	cp := p
	if p.Units != nil {
		cp.Units = make(map[string]string, len(p.Units))
		for k, v := range p.Units {
			cp.Units[k] = v
		}
	}
	if p.DynamicVars != nil {
		cp.DynamicVars = make(map[string]float64, len(p.DynamicVars))
		for k, v := range p.DynamicVars {
			cp.DynamicVars[k] = v
		}
	}
	cp.Preferences.RecentProjects = append([]string(nil), p.Preferences.RecentProjects...)
	return cp
}

// CloneMap returns a shallow copy of m, preserving nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePoints(in [][]float64) [][]float64 {
	if in == nil {
		return nil
	}
	out := make([][]float64, len(in))
	for i, p := range in {
		out[i] = append([]float64(nil), p...)
	}
	return out
}

// Change describes a mutation applied to an entity during an operation.
type Change struct {
	Entity EntityType
	Action Action
	Key    string
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

package domain

import (
	"fmt"
	"strings"
)

// MaxNameLength bounds material and model names; the engine truncates longer names.
const MaxNameLength = 5

var (
	elements2D = []string{"Rxx2D", "T3xxx", "Q4xxx", "T6xxx", "Q8xxx", "Q9xxx", "BARxx"}
	elements3D = []string{"Rxx3D", "H8xxx", "SHB8x", "H20xx", "SHB6x", "TE10x", "DKTxx", "BARxx"}
	physics    = []string{"MECAx", "THERx", "HYDRx"}

	kinds3D = map[AvatarKind]bool{
		AvatarRigidSphere:       true,
		AvatarRigidPlan:         true,
		AvatarRigidCylinder:     true,
		AvatarRigidPolyhedron:   true,
		AvatarRoughWall3D:       true,
		AvatarGranuloRoughWall3: true,
	}
)

// ValidElements returns the element names accepted for a dimension.
func ValidElements(dimension int) []string {
	if dimension == 3 {
		return append([]string(nil), elements3D...)
	}
	return append([]string(nil), elements2D...)
}

// KindDimension returns the dimension an avatar kind belongs to.
func KindDimension(kind AvatarKind) int {
	if kinds3D[kind] {
		return 3
	}
	return 2
}

func validName(entity EntityType, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid(entity, "name", "must not be empty")
	}
	if len(name) > MaxNameLength {
		return invalid(entity, "name", "must be at most %d characters, got %q", MaxNameLength, name)
	}
	return nil
}

// ValidateMaterial checks a material record.
func ValidateMaterial(m Material) error {
	if err := validName(EntityMaterial, m.Name); err != nil {
		return err
	}
	if !m.Kind.Valid() {
		return invalid(EntityMaterial, "type", "unknown kind %q", m.Kind)
	}
	if m.Density <= 0 {
		return invalid(EntityMaterial, "density", "must be strictly positive")
	}
	return nil
}

// ValidateModel checks a model record.
func ValidateModel(m Model) error {
	if err := validName(EntityModel, m.Name); err != nil {
		return err
	}
	if m.Dimension != 2 && m.Dimension != 3 {
		return invalid(EntityModel, "dimension", "must be 2 or 3, got %d", m.Dimension)
	}
	if !contains(physics, m.Physics) {
		return invalid(EntityModel, "physics", "unknown physics %q", m.Physics)
	}
	if !contains(ValidElements(m.Dimension), m.Element) {
		return invalid(EntityModel, "element", "%q is not valid for dimension %d", m.Element, m.Dimension)
	}
	return nil
}

// ValidateAvatar checks an avatar against the project dimension.
func ValidateAvatar(a Avatar, dimension int) error {
	if !a.Kind.Valid() {
		return invalid(EntityAvatar, "type", "unknown kind %q", a.Kind)
	}
	if len(a.Center) != dimension {
		return invalid(EntityAvatar, "center", "must have %d coordinates, got %d", dimension, len(a.Center))
	}
	if KindDimension(a.Kind) != dimension {
		return invalid(EntityAvatar, "type", "%s is not available in dimension %d", a.Kind, dimension)
	}
	if a.Material == "" || a.Model == "" {
		return invalid(EntityAvatar, "", "material and model are required")
	}
	if a.Shape == nil {
		return invalid(EntityAvatar, "shape", "missing parameters for %s", a.Kind)
	}
	if a.Shape.family() != avatarFamilies[a.Kind] {
		return invalid(EntityAvatar, "shape", "%T does not describe a %s", a.Shape, a.Kind)
	}
	return validateShape(a.Kind, a.Shape, dimension)
}

func validateShape(kind AvatarKind, shape Shape, dimension int) error {
	switch s := shape.(type) {
	case DiskShape:
		if s.Radius <= 0 {
			return invalid(EntityAvatar, "r", "positive radius required for %s", kind)
		}
	case ClusterShape:
		if s.Radius <= 0 {
			return invalid(EntityAvatar, "r", "positive radius required for %s", kind)
		}
		if s.Disks < 1 {
			return invalid(EntityAvatar, "nb_disk", "at least one disk required")
		}
	case JoncShape:
		if s.Axe1 <= 0 || s.Axe2 <= 0 {
			return invalid(EntityAvatar, "axe1", "axe1 and axe2 must be positive for %s", kind)
		}
	case PolygonShape:
		if s.Generation == PolygonRegular {
			if s.VertexCount < 3 {
				return invalid(EntityAvatar, "nb_vertices", "regular polygon needs at least 3 vertices")
			}
			if s.Radius <= 0 {
				return invalid(EntityAvatar, "r", "regular polygon needs a positive radius")
			}
			return nil
		}
		if len(s.Vertices) < 3 {
			return invalid(EntityAvatar, "vertices", "at least 3 vertices required")
		}
		for i, v := range s.Vertices {
			if len(v) != dimension {
				return invalid(EntityAvatar, "vertices", "vertex %d must have %d coordinates", i, dimension)
			}
		}
	case OvoidShape:
		if s.Ra <= 0 || s.Rb <= 0 {
			return invalid(EntityAvatar, "ra", "ra and rb must be positive")
		}
		if s.VertexCount < 3 {
			return invalid(EntityAvatar, "nb_vertices", "ovoid needs at least 3 vertices")
		}
	case WallShape:
		return validateWall(kind, s)
	case EmptyShape:
		if len(s.Contactors) == 0 {
			return invalid(EntityAvatar, "contactors", "empty avatar needs at least one contactor")
		}
		for i, c := range s.Contactors {
			if strings.TrimSpace(c.Shape) == "" {
				return invalid(EntityAvatar, "contactors", "contactor %d has no shape", i)
			}
		}
	case CylinderShape:
		if s.Radius <= 0 || s.Height <= 0 {
			return invalid(EntityAvatar, "r", "cylinder needs positive radius and height")
		}
	case PlanShape:
	default:
		return invalid(EntityAvatar, "shape", "unsupported shape %T", shape)
	}
	return nil
}

func validateWall(kind AvatarKind, s WallShape) error {
	if s.Length <= 0 {
		return invalid(EntityAvatar, "l", "wall length must be positive")
	}
	switch kind {
	case AvatarSmoothWall:
		if s.Height <= 0 {
			return invalid(EntityAvatar, "h", "smooth wall height must be positive")
		}
	case AvatarRoughWall, AvatarFineWall, AvatarRoughWall3D:
		if s.Radius <= 0 {
			return invalid(EntityAvatar, "r", "%s radius must be positive", kind)
		}
	case AvatarGranuloWall, AvatarGranuloRoughWall3:
		if s.RMin <= 0 || s.RMax < s.RMin {
			return invalid(EntityAvatar, "rmin", "need 0 < rmin <= rmax")
		}
	}
	return nil
}

// ValidateContactLaw checks a contact law record.
func ValidateContactLaw(l ContactLaw) error {
	if strings.TrimSpace(l.Name) == "" {
		return invalid(EntityContactLaw, "name", "must not be empty")
	}
	if !l.Kind.Valid() {
		return invalid(EntityContactLaw, "law", "unknown law %q", l.Kind)
	}
	if l.Kind.NeedsFriction() {
		if l.Friction == nil {
			return invalid(EntityContactLaw, "fric", "friction required for %s", l.Kind)
		}
		if *l.Friction < 0 {
			return invalid(EntityContactLaw, "fric", "friction must be non-negative")
		}
	}
	return nil
}

// ValidateVisibilityRule checks the structural fields of a rule.
func ValidateVisibilityRule(r VisibilityRule) error {
	for _, spec := range []ContactorSpec{r.Candidate, r.Antagonist} {
		if spec.Body == "" || spec.Contactor == "" || spec.Color == "" {
			return invalid(EntityVisibilityRule, "", "candidate and antagonist need body, contactor and color")
		}
	}
	if strings.TrimSpace(r.Behavior) == "" {
		return invalid(EntityVisibilityRule, "behav", "contact law name required")
	}
	if r.Alert < 0 {
		return invalid(EntityVisibilityRule, "alert", "must be non-negative")
	}
	return nil
}

var dofRequired = map[DOFKind][]string{
	DOFTranslate:       {"dx", "dy"},
	DOFRotate:          {"theta"},
	DOFImposeDrivenDOF: {"component"},
	DOFImposeInitValue: {"component", "value"},
}

// ValidateDOFOperation checks the kind and required parameters of op.
func ValidateDOFOperation(op DOFOperation) error {
	required, ok := dofRequired[op.Kind]
	if !ok {
		return invalid(EntityDOFOperation, "type", "unknown operation %q", op.Kind)
	}
	for _, key := range required {
		if _, ok := op.Params[key]; !ok {
			return invalid(EntityDOFOperation, "params", "%s requires %q", op.Kind, key)
		}
	}
	switch op.Target.Kind {
	case TargetAvatar, TargetGroup:
	default:
		return invalid(EntityDOFOperation, "target", "unknown target kind %q", op.Target.Kind)
	}
	return nil
}

// ValidateLoop checks a loop configuration for the project dimension.
func ValidateLoop(l Loop, dimension int) error {
	if dimension != 2 {
		return invalid(EntityLoop, "", "loops are only available in 2-D projects")
	}
	switch l.Pattern {
	case PatternCircle, PatternGrid, PatternLine, PatternSpiral:
		if l.Count <= 0 {
			return invalid(EntityLoop, "count", "must be positive, got %d", l.Count)
		}
	case PatternManual:
		if len(l.Centers) == 0 {
			return invalid(EntityLoop, "centers", "manual loop needs at least one center")
		}
		if l.Count != len(l.Centers) {
			return invalid(EntityLoop, "count", "manual loop count %d does not match %d centers", l.Count, len(l.Centers))
		}
		for i, c := range l.Centers {
			if len(c) != 2 {
				return invalid(EntityLoop, "centers", "center %d must have 2 coordinates", i)
			}
		}
	default:
		return invalid(EntityLoop, "type", "unknown pattern %q", l.Pattern)
	}
	return nil
}

// ValidateGranulo checks a deposition configuration.
func ValidateGranulo(g GranuloGeneration, dimension int) error {
	if dimension != 2 {
		return invalid(EntityGranulo, "", "deposition is only available in 2-D projects")
	}
	if g.Count <= 0 {
		return invalid(EntityGranulo, "nb", "must be positive, got %d", g.Count)
	}
	if g.RMin <= 0 || g.RMax < g.RMin {
		return invalid(EntityGranulo, "rmin", "need 0 < rmin <= rmax, got %g and %g", g.RMin, g.RMax)
	}
	params, ok := g.Container.RequiredParams()
	if !ok {
		return invalid(EntityGranulo, "container_params", "unknown container %q", g.Container)
	}
	for _, key := range params {
		if v, ok := g.ContainerParams[key]; !ok || v <= 0 {
			return invalid(EntityGranulo, "container_params", "%s requires positive %q", g.Container, key)
		}
	}
	if g.Container == ContainerCouette && g.ContainerParams["rint"] >= g.ContainerParams["rext"] {
		return invalid(EntityGranulo, "container_params", "rint must be smaller than rext")
	}
	if g.Material == "" || g.Model == "" {
		return invalid(EntityGranulo, "", "material and model are required")
	}
	if avatarFamilies[g.AvatarKind] != familyDisk {
		return invalid(EntityGranulo, "avatar_type", "cannot deposit %q particles", g.AvatarKind)
	}
	return nil
}

// PostProNames returns the supported post-processing command names.
func PostProNames() []string {
	out := make([]string, 0, len(postProNames))
	for name := range postProNames {
		out = append(out, name)
	}
	return out
}

// ValidatePostProCommand checks a post-processing command.
func ValidatePostProCommand(c PostProCommand) error {
	needsTarget, ok := postProNames[c.Name]
	if !ok {
		return invalid(EntityPostPro, "name", "unknown command %q", c.Name)
	}
	if c.Step < 1 {
		return invalid(EntityPostPro, "step", "must be at least 1")
	}
	if needsTarget && c.Target.Kind == TargetNone {
		return invalid(EntityPostPro, "target_info", "%s requires an avatar or group target", c.Name)
	}
	return nil
}

// ValidateGroupName checks a group name.
func ValidateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid(EntityGroup, "name", "must not be empty")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// DescribeAvatar returns the label used when listing avatar references.
func DescribeAvatar(index int, a Avatar) string {
	return fmt.Sprintf("avatar #%d (%s)", index, a.Kind)
}

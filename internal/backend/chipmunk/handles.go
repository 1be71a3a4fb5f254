package chipmunk

import (
	"github.com/jakecoffman/cp"

	"scenecore/internal/backend"
	"scenecore/pkg/domain"
)

type material struct {
	rec domain.Material
}

func (*material) Entity() domain.EntityType { return domain.EntityMaterial }

type model struct {
	rec domain.Model
}

func (*model) Entity() domain.EntityType { return domain.EntityModel }

// avatar owns one body and its shapes. Coordinates beyond the plane are kept
// in extra so 3-D centers round-trip through translations.
type avatar struct {
	rec      domain.Avatar
	material *material
	body     *cp.Body
	shapes   []*cp.Shape
	colors   []string
	extra    []float64
	attached bool
	driven   []backend.DrivenDOF
	initial  map[int]float64
}

func (*avatar) Entity() domain.EntityType { return domain.EntityAvatar }

type law struct {
	rec domain.ContactLaw
}

func (*law) Entity() domain.EntityType { return domain.EntityContactLaw }

func (l *law) friction() float64 {
	if l.rec.Friction == nil {
		return 0
	}
	return *l.rec.Friction
}

type visibility struct {
	rec domain.VisibilityRule
	law *law
}

func (*visibility) Entity() domain.EntityType { return domain.EntityVisibilityRule }

type postpro struct {
	name   string
	step   int
	bodies []*avatar
}

func (*postpro) Entity() domain.EntityType { return domain.EntityPostPro }

// Package backend declares the physics engine collaborator the scene store
// drives. Handles are opaque to callers; only the backend that created a
// handle may interpret it.
package backend

import "scenecore/pkg/domain"

// Handle is an opaque reference to an object owned by a Backend.
type Handle interface {
	Entity() domain.EntityType
}

// Handle aliases document which entity a handle refers to.
type (
	MaterialHandle = Handle
	ModelHandle    = Handle
	AvatarHandle   = Handle
	LawHandle      = Handle
	RuleHandle     = Handle
	PostProHandle  = Handle
)

// DrivenDOF imposes a driven degree of freedom on a body.
type DrivenDOF struct {
	Component int
	Kind      string
	CT        float64
	Amp       float64
	Omega     float64
	Phi       float64
	RampI     float64
	Ramp      float64
	DOFType   string
}

// Backend builds engine objects from scene records and keeps the engine's
// containers in sync with the scene.
type Backend interface {
	CreateMaterial(m domain.Material) (MaterialHandle, error)
	CreateModel(m domain.Model) (ModelHandle, error)
	CreateAvatar(a domain.Avatar, material MaterialHandle, model ModelHandle) (AvatarHandle, error)
	CreateContactLaw(l domain.ContactLaw) (LawHandle, error)
	CreateVisibilityRule(r domain.VisibilityRule, law LawHandle) (RuleHandle, error)
	CreatePostProCommand(name string, step int, bodies []AvatarHandle) (PostProHandle, error)

	AttachAvatar(a AvatarHandle) error
	DetachAvatar(a AvatarHandle) error
	AttachVisibilityRule(r RuleHandle) error
	ResetVisibility()
	AttachPostProCommand(c PostProHandle) error
	ResetPostPro()
	Reset()

	Translate(a AvatarHandle, dx, dy, dz float64) error
	Rotate(a AvatarHandle, theta float64, center []float64) error
	ImposeDrivenDOF(a AvatarHandle, dof DrivenDOF) error
	ImposeInitValue(a AvatarHandle, component int, value float64) error

	SampleRadii(count int, rmin, rmax float64, seed *int64) ([]float64, error)
	Pack(container domain.ContainerKind, params map[string]float64, radii []float64) (int, []float64, error)
}

// Package chipmunk implements the scene backend on the chipmunk2d port
// github.com/jakecoffman/cp. Avatars become bodies in a cp.Space; the space
// is never stepped, it only holds the authored configuration.
package chipmunk

import (
	"errors"
	"fmt"
	"math"

	"github.com/jakecoffman/cp"

	"scenecore/internal/backend"
	"scenecore/pkg/domain"
)

var errForeignHandle = errors.New("handle was not created by this backend")

// Backend holds the engine-side mirror of a scene.
type Backend struct {
	space   *cp.Space
	avatars []*avatar
	rules   []*visibility
	postpro []*postpro
}

var _ backend.Backend = (*Backend)(nil)

// New constructs an empty backend.
func New() *Backend {
	b := &Backend{}
	b.Reset()
	return b
}

// Reset drops every attached object and starts from an empty space.
func (b *Backend) Reset() {
	b.space = cp.NewSpace()
	b.space.Iterations = 20
	b.avatars = nil
	b.rules = nil
	b.postpro = nil
}

// CreateMaterial wraps the material parameters.
func (b *Backend) CreateMaterial(m domain.Material) (backend.MaterialHandle, error) {
	return &material{rec: m.Clone()}, nil
}

// CreateModel wraps the model parameters.
func (b *Backend) CreateModel(m domain.Model) (backend.ModelHandle, error) {
	return &model{rec: m.Clone()}, nil
}

// CreateAvatar builds a detached body for a.
func (b *Backend) CreateAvatar(a domain.Avatar, mat backend.MaterialHandle, mod backend.ModelHandle) (backend.AvatarHandle, error) {
	m, ok := mat.(*material)
	if !ok {
		return nil, errForeignHandle
	}
	if _, ok := mod.(*model); !ok {
		return nil, errForeignHandle
	}
	if len(a.Center) < 2 {
		return nil, fmt.Errorf("avatar center needs at least 2 coordinates")
	}
	body, shapes, colors, err := buildBody(a, m.rec.Density)
	if err != nil {
		return nil, err
	}
	return &avatar{
		rec:      a.Clone(),
		material: m,
		body:     body,
		shapes:   shapes,
		colors:   colors,
		extra:    append([]float64(nil), a.Center[2:]...),
		initial:  map[int]float64{},
	}, nil
}

// CreateContactLaw wraps the law parameters.
func (b *Backend) CreateContactLaw(l domain.ContactLaw) (backend.LawHandle, error) {
	return &law{rec: l.Clone()}, nil
}

// CreateVisibilityRule binds a rule to its law.
func (b *Backend) CreateVisibilityRule(r domain.VisibilityRule, l backend.LawHandle) (backend.RuleHandle, error) {
	lh, ok := l.(*law)
	if !ok {
		return nil, errForeignHandle
	}
	return &visibility{rec: r, law: lh}, nil
}

// CreatePostProCommand records a command over the given bodies.
func (b *Backend) CreatePostProCommand(name string, step int, bodies []backend.AvatarHandle) (backend.PostProHandle, error) {
	cmd := &postpro{name: name, step: step}
	for _, h := range bodies {
		a, ok := h.(*avatar)
		if !ok {
			return nil, errForeignHandle
		}
		cmd.bodies = append(cmd.bodies, a)
	}
	return cmd, nil
}

// AttachAvatar adds the body and its shapes to the space.
func (b *Backend) AttachAvatar(h backend.AvatarHandle) error {
	a, ok := h.(*avatar)
	if !ok {
		return errForeignHandle
	}
	if a.attached {
		return fmt.Errorf("avatar already attached")
	}
	b.space.AddBody(a.body)
	for _, s := range a.shapes {
		b.space.AddShape(s)
	}
	a.attached = true
	b.avatars = append(b.avatars, a)
	b.applyFriction(a)
	return nil
}

// DetachAvatar removes the body and its shapes from the space.
func (b *Backend) DetachAvatar(h backend.AvatarHandle) error {
	a, ok := h.(*avatar)
	if !ok {
		return errForeignHandle
	}
	if !a.attached {
		return fmt.Errorf("avatar not attached")
	}
	for _, s := range a.shapes {
		b.space.RemoveShape(s)
	}
	b.space.RemoveBody(a.body)
	a.attached = false
	for i, other := range b.avatars {
		if other == a {
			b.avatars = append(b.avatars[:i], b.avatars[i+1:]...)
			break
		}
	}
	return nil
}

// AttachVisibilityRule appends a rule to the visibility table.
func (b *Backend) AttachVisibilityRule(h backend.RuleHandle) error {
	r, ok := h.(*visibility)
	if !ok {
		return errForeignHandle
	}
	b.rules = append(b.rules, r)
	for _, a := range b.avatars {
		b.applyFriction(a)
	}
	return nil
}

// ResetVisibility clears the visibility table.
func (b *Backend) ResetVisibility() {
	b.rules = nil
	for _, a := range b.avatars {
		for _, s := range a.shapes {
			s.SetFriction(0)
		}
	}
}

// applyFriction sets each shape's friction from the first rule whose
// candidate or antagonist color matches the shape color.
func (b *Backend) applyFriction(a *avatar) {
	for i, s := range a.shapes {
		for _, r := range b.rules {
			if r.rec.Candidate.Color == a.colors[i] || r.rec.Antagonist.Color == a.colors[i] {
				s.SetFriction(r.law.friction())
				break
			}
		}
	}
}

// AttachPostProCommand appends a command to the post-processing list.
func (b *Backend) AttachPostProCommand(h backend.PostProHandle) error {
	c, ok := h.(*postpro)
	if !ok {
		return errForeignHandle
	}
	b.postpro = append(b.postpro, c)
	return nil
}

// ResetPostPro clears the post-processing list.
func (b *Backend) ResetPostPro() {
	b.postpro = nil
}

func avatarOf(h backend.AvatarHandle) (*avatar, error) {
	a, ok := h.(*avatar)
	if !ok {
		return nil, errForeignHandle
	}
	return a, nil
}

// Translate moves the body; dz shifts the out-of-plane coordinate if any.
func (b *Backend) Translate(h backend.AvatarHandle, dx, dy, dz float64) error {
	a, err := avatarOf(h)
	if err != nil {
		return err
	}
	p := a.body.Position()
	a.body.SetPosition(cp.Vector{X: p.X + dx, Y: p.Y + dy})
	if len(a.extra) > 0 {
		a.extra[0] += dz
	}
	return nil
}

// Rotate turns the body by theta, around center when given.
func (b *Backend) Rotate(h backend.AvatarHandle, theta float64, center []float64) error {
	a, err := avatarOf(h)
	if err != nil {
		return err
	}
	a.body.SetAngle(a.body.Angle() + theta)
	if len(center) >= 2 {
		p := a.body.Position()
		dx, dy := p.X-center[0], p.Y-center[1]
		sin, cos := math.Sincos(theta)
		a.body.SetPosition(cp.Vector{X: center[0] + dx*cos - dy*sin, Y: center[1] + dx*sin + dy*cos})
	}
	return nil
}

// ImposeDrivenDOF records a driven DOF; velocity-driven in-plane components
// set the body velocity immediately.
func (b *Backend) ImposeDrivenDOF(h backend.AvatarHandle, dof backend.DrivenDOF) error {
	a, err := avatarOf(h)
	if err != nil {
		return err
	}
	if dof.Component < 1 {
		return fmt.Errorf("component must be >= 1, got %d", dof.Component)
	}
	a.driven = append(a.driven, dof)
	if dof.DOFType == "vlocy" && dof.Kind == "predefined" {
		b.setComponent(a, dof.Component, dof.CT)
	}
	return nil
}

// ImposeInitValue sets an initial velocity component (1: vx, 2: vy, 3: omega).
func (b *Backend) ImposeInitValue(h backend.AvatarHandle, component int, value float64) error {
	a, err := avatarOf(h)
	if err != nil {
		return err
	}
	if component < 1 {
		return fmt.Errorf("component must be >= 1, got %d", component)
	}
	a.initial[component] = value
	b.setComponent(a, component, value)
	return nil
}

func (b *Backend) setComponent(a *avatar, component int, value float64) {
	v := a.body.Velocity()
	switch component {
	case 1:
		a.body.SetVelocity(value, v.Y)
	case 2:
		a.body.SetVelocity(v.X, value)
	case 3:
		a.body.SetAngularVelocity(value)
	}
}

// AvatarState is a read-only view of an attached body.
type AvatarState struct {
	Kind     domain.AvatarKind
	Position []float64
	Angle    float64
	Velocity []float64
	Mass     float64
	Shapes   int
	Driven   int
}

// State reports the current state of an avatar handle.
func (b *Backend) State(h backend.AvatarHandle) (AvatarState, bool) {
	a, ok := h.(*avatar)
	if !ok {
		return AvatarState{}, false
	}
	p, v := a.body.Position(), a.body.Velocity()
	return AvatarState{
		Kind:     a.rec.Kind,
		Position: append([]float64{p.X, p.Y}, a.extra...),
		Angle:    a.body.Angle(),
		Velocity: []float64{v.X, v.Y},
		Mass:     a.body.Mass(),
		Shapes:   len(a.shapes),
		Driven:   len(a.driven),
	}, true
}

// AttachedAvatars returns the number of bodies in the space.
func (b *Backend) AttachedAvatars() int { return len(b.avatars) }

// VisibilityTable returns the attached rules in order.
func (b *Backend) VisibilityTable() []domain.VisibilityRule {
	out := make([]domain.VisibilityRule, len(b.rules))
	for i, r := range b.rules {
		out[i] = r.rec
	}
	return out
}

// PostProCommands returns the attached command names in order.
func (b *Backend) PostProCommands() []string {
	out := make([]string, len(b.postpro))
	for i, c := range b.postpro {
		out[i] = c.name
	}
	return out
}

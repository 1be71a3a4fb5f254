// Package backendtest provides a recording Backend for tests.
package backendtest

import (
	"fmt"
	"sync"

	"scenecore/internal/backend"
	"scenecore/pkg/domain"
)

// Handle is the handle type issued by Fake.
type Handle struct {
	Kind  domain.EntityType
	ID    int
	Label string
}

// Entity implements backend.Handle.
func (h *Handle) Entity() domain.EntityType { return h.Kind }

// Call is one recorded backend invocation.
type Call struct {
	Method string
	Handle *Handle
	Args   []any
}

// Fake records calls and keeps attachment lists. Fail injects errors by
// method name.
type Fake struct {
	mu       sync.Mutex
	next     int
	calls    []Call
	attached []*Handle
	rules    []*Handle
	postpro  []*Handle
	fail     map[string]error
	failOn   map[string]func(args []any) error

	// Radii and Coords, when set, replace sampling and packing results.
	Radii  []float64
	Coords []float64
	Seated int
}

var _ backend.Backend = (*Fake)(nil)

// New returns an empty fake.
func New() *Fake {
	return &Fake{fail: map[string]error{}, failOn: map[string]func([]any) error{}}
}

// Fail makes every call to method return err until cleared with a nil err.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, method)
		return
	}
	f.fail[method] = err
}

// FailWhen installs a predicate evaluated on each call to method.
func (f *Fake) FailWhen(method string, fn func(args []any) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[method] = fn
}

func (f *Fake) record(method string, h *Handle, args ...any) error {
	f.calls = append(f.calls, Call{Method: method, Handle: h, Args: args})
	if err := f.fail[method]; err != nil {
		return err
	}
	if fn := f.failOn[method]; fn != nil {
		return fn(args)
	}
	return nil
}

func (f *Fake) issue(kind domain.EntityType, label string) *Handle {
	f.next++
	return &Handle{Kind: kind, ID: f.next, Label: label}
}

// Calls returns the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many times method was called.
func (f *Fake) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Attached returns the attached avatar handles in attach order.
func (f *Fake) Attached() []*Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Handle(nil), f.attached...)
}

// Rules returns the attached visibility rule handles.
func (f *Fake) Rules() []*Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Handle(nil), f.rules...)
}

// PostPro returns the attached post-processing handles.
func (f *Fake) PostPro() []*Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Handle(nil), f.postpro...)
}

func (f *Fake) create(method string, kind domain.EntityType, label string, args ...any) (backend.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.issue(kind, label)
	if err := f.record(method, h, args...); err != nil {
		return nil, err
	}
	return h, nil
}

// CreateMaterial implements backend.Backend.
func (f *Fake) CreateMaterial(m domain.Material) (backend.MaterialHandle, error) {
	return f.create("CreateMaterial", domain.EntityMaterial, m.Name, m)
}

// CreateModel implements backend.Backend.
func (f *Fake) CreateModel(m domain.Model) (backend.ModelHandle, error) {
	return f.create("CreateModel", domain.EntityModel, m.Name, m)
}

// CreateAvatar implements backend.Backend.
func (f *Fake) CreateAvatar(a domain.Avatar, _ backend.MaterialHandle, _ backend.ModelHandle) (backend.AvatarHandle, error) {
	return f.create("CreateAvatar", domain.EntityAvatar, string(a.Kind), a)
}

// CreateContactLaw implements backend.Backend.
func (f *Fake) CreateContactLaw(l domain.ContactLaw) (backend.LawHandle, error) {
	return f.create("CreateContactLaw", domain.EntityContactLaw, l.Name, l)
}

// CreateVisibilityRule implements backend.Backend.
func (f *Fake) CreateVisibilityRule(r domain.VisibilityRule, _ backend.LawHandle) (backend.RuleHandle, error) {
	return f.create("CreateVisibilityRule", domain.EntityVisibilityRule, r.Behavior, r)
}

// CreatePostProCommand implements backend.Backend.
func (f *Fake) CreatePostProCommand(name string, step int, bodies []backend.AvatarHandle) (backend.PostProHandle, error) {
	return f.create("CreatePostProCommand", domain.EntityPostPro, name, step, len(bodies))
}

func (f *Fake) handle(h backend.Handle) (*Handle, error) {
	fh, ok := h.(*Handle)
	if !ok {
		return nil, fmt.Errorf("foreign handle %T", h)
	}
	return fh, nil
}

// AttachAvatar implements backend.Backend.
func (f *Fake) AttachAvatar(h backend.AvatarHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fh, err := f.handle(h)
	if err != nil {
		return err
	}
	if err := f.record("AttachAvatar", fh); err != nil {
		return err
	}
	for _, a := range f.attached {
		if a == fh {
			return fmt.Errorf("avatar %d attached twice", fh.ID)
		}
	}
	f.attached = append(f.attached, fh)
	return nil
}

// DetachAvatar implements backend.Backend.
func (f *Fake) DetachAvatar(h backend.AvatarHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fh, err := f.handle(h)
	if err != nil {
		return err
	}
	if err := f.record("DetachAvatar", fh); err != nil {
		return err
	}
	for i, a := range f.attached {
		if a == fh {
			f.attached = append(f.attached[:i], f.attached[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("avatar %d not attached", fh.ID)
}

// AttachVisibilityRule implements backend.Backend.
func (f *Fake) AttachVisibilityRule(h backend.RuleHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fh, err := f.handle(h)
	if err != nil {
		return err
	}
	if err := f.record("AttachVisibilityRule", fh); err != nil {
		return err
	}
	f.rules = append(f.rules, fh)
	return nil
}

// ResetVisibility implements backend.Backend.
func (f *Fake) ResetVisibility() {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.record("ResetVisibility", nil)
	f.rules = nil
}

// AttachPostProCommand implements backend.Backend.
func (f *Fake) AttachPostProCommand(h backend.PostProHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fh, err := f.handle(h)
	if err != nil {
		return err
	}
	if err := f.record("AttachPostProCommand", fh); err != nil {
		return err
	}
	f.postpro = append(f.postpro, fh)
	return nil
}

// ResetPostPro implements backend.Backend.
func (f *Fake) ResetPostPro() {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.record("ResetPostPro", nil)
	f.postpro = nil
}

// Reset implements backend.Backend.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.record("Reset", nil)
	f.attached, f.rules, f.postpro = nil, nil, nil
}

func (f *Fake) dof(method string, h backend.AvatarHandle, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fh, err := f.handle(h)
	if err != nil {
		return err
	}
	return f.record(method, fh, args...)
}

// Translate implements backend.Backend.
func (f *Fake) Translate(h backend.AvatarHandle, dx, dy, dz float64) error {
	return f.dof("Translate", h, dx, dy, dz)
}

// Rotate implements backend.Backend.
func (f *Fake) Rotate(h backend.AvatarHandle, theta float64, center []float64) error {
	return f.dof("Rotate", h, theta, center)
}

// ImposeDrivenDOF implements backend.Backend.
func (f *Fake) ImposeDrivenDOF(h backend.AvatarHandle, dof backend.DrivenDOF) error {
	return f.dof("ImposeDrivenDOF", h, dof)
}

// ImposeInitValue implements backend.Backend.
func (f *Fake) ImposeInitValue(h backend.AvatarHandle, component int, value float64) error {
	return f.dof("ImposeInitValue", h, component, value)
}

// SampleRadii returns Radii when set, otherwise count copies of rmin.
func (f *Fake) SampleRadii(count int, rmin, rmax float64, seed *int64) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SampleRadii", nil, count, rmin, rmax, seed); err != nil {
		return nil, err
	}
	if f.Radii != nil {
		return append([]float64(nil), f.Radii...), nil
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = rmin
	}
	return out, nil
}

// Pack returns Seated and Coords when set, otherwise lines particles up
// along x at y = radius.
func (f *Fake) Pack(container domain.ContainerKind, params map[string]float64, radii []float64) (int, []float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Pack", nil, container, params, len(radii)); err != nil {
		return 0, nil, err
	}
	if f.Coords != nil {
		return f.Seated, append([]float64(nil), f.Coords...), nil
	}
	coords := make([]float64, 0, 2*len(radii))
	x := 0.0
	for _, r := range radii {
		x += r
		coords = append(coords, x, r)
		x += r
	}
	return len(radii), coords, nil
}

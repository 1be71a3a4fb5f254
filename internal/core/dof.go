package core

import (
	"context"
	"fmt"
	"math"

	"scenecore/internal/backend"
	"scenecore/internal/expr"
	"scenecore/pkg/domain"
)

// dofApplier applies one parsed operation to one body.
type dofApplier func(b backend.Backend, h backend.AvatarHandle) error

// dofChange is a parsed operation. invert is nil for kinds the backend cannot
// undo in place; bodies they touch are rebuilt on rollback instead.
type dofChange struct {
	apply  dofApplier
	invert dofApplier
}

// dofParsers holds one parser per DOF kind. Parsing happens before any body
// is touched so bad parameters never leave a partially applied operation.
var dofParsers = map[domain.DOFKind]func(p dofParams) (dofChange, error){
	domain.DOFTranslate:       parseTranslate,
	domain.DOFRotate:          parseRotate,
	domain.DOFImposeDrivenDOF: parseDrivenDOF,
	domain.DOFImposeInitValue: parseInitValue,
}

func parseTranslate(p dofParams) (dofChange, error) {
	dx, err := p.number("dx")
	if err != nil {
		return dofChange{}, err
	}
	dy, err := p.number("dy")
	if err != nil {
		return dofChange{}, err
	}
	dz, err := p.numberOr("dz", 0)
	if err != nil {
		return dofChange{}, err
	}
	return dofChange{
		apply: func(b backend.Backend, h backend.AvatarHandle) error {
			return b.Translate(h, dx, dy, dz)
		},
		invert: func(b backend.Backend, h backend.AvatarHandle) error {
			return b.Translate(h, -dx, -dy, -dz)
		},
	}, nil
}

func parseRotate(p dofParams) (dofChange, error) {
	theta, err := p.number("theta")
	if err != nil {
		return dofChange{}, err
	}
	center, err := p.vector("center")
	if err != nil {
		return dofChange{}, err
	}
	return dofChange{
		apply: func(b backend.Backend, h backend.AvatarHandle) error {
			return b.Rotate(h, theta, center)
		},
		invert: func(b backend.Backend, h backend.AvatarHandle) error {
			return b.Rotate(h, -theta, center)
		},
	}, nil
}

func parseDrivenDOF(p dofParams) (dofChange, error) {
	components, err := p.components("component")
	if err != nil {
		return dofChange{}, err
	}
	dof := backend.DrivenDOF{Kind: "predefined", DOFType: "vlocy", RampI: 1}
	if dof.DOFType, err = p.stringOr("dofty", dof.DOFType); err != nil {
		return dofChange{}, err
	}
	if dof.Kind, err = p.stringOr("description", dof.Kind); err != nil {
		return dofChange{}, err
	}
	if dof.DOFType != "vlocy" && dof.DOFType != "force" {
		return dofChange{}, p.invalid("dofty", "must be vlocy or force, got %q", dof.DOFType)
	}
	for key, dst := range map[string]*float64{
		"ct": &dof.CT, "amp": &dof.Amp, "omega": &dof.Omega,
		"phi": &dof.Phi, "rampi": &dof.RampI, "ramp": &dof.Ramp,
	} {
		if *dst, err = p.numberOr(key, *dst); err != nil {
			return dofChange{}, err
		}
	}
	return dofChange{apply: func(b backend.Backend, h backend.AvatarHandle) error {
		for _, c := range components {
			d := dof
			d.Component = c
			if err := b.ImposeDrivenDOF(h, d); err != nil {
				return err
			}
		}
		return nil
	}}, nil
}

func parseInitValue(p dofParams) (dofChange, error) {
	components, err := p.components("component")
	if err != nil {
		return dofChange{}, err
	}
	values, err := p.numbers("value")
	if err != nil {
		return dofChange{}, err
	}
	if len(values) == 1 && len(components) > 1 {
		for len(values) < len(components) {
			values = append(values, values[0])
		}
	}
	if len(values) != len(components) {
		return dofChange{}, p.invalid("value", "need %d values, got %d", len(components), len(values))
	}
	return dofChange{apply: func(b backend.Backend, h backend.AvatarHandle) error {
		for i, c := range components {
			if err := b.ImposeInitValue(h, c, values[i]); err != nil {
				return err
			}
		}
		return nil
	}}, nil
}

// dofParams reads typed values from an operation's parameter map.
type dofParams struct {
	kind   domain.DOFKind
	values map[string]any
}

func (p dofParams) invalid(field, format string, args ...any) error {
	return domain.ValidationError{
		Entity:  domain.EntityDOFOperation,
		Field:   "params." + field,
		Message: fmt.Sprintf("%s: %s", p.kind, fmt.Sprintf(format, args...)),
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func (p dofParams) number(key string) (float64, error) {
	v, ok := p.values[key]
	if !ok {
		return 0, p.invalid(key, "missing")
	}
	n, ok := toFloat(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, p.invalid(key, "not a number: %v", v)
	}
	return n, nil
}

func (p dofParams) numberOr(key string, def float64) (float64, error) {
	if _, ok := p.values[key]; !ok {
		return def, nil
	}
	return p.number(key)
}

func (p dofParams) stringOr(key, def string) (string, error) {
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", p.invalid(key, "not a string: %v", v)
	}
	return s, nil
}

// numbers accepts a single number or a list of numbers.
func (p dofParams) numbers(key string) ([]float64, error) {
	v, ok := p.values[key]
	if !ok {
		return nil, p.invalid(key, "missing")
	}
	if n, ok := toFloat(v); ok {
		return []float64{n}, nil
	}
	var items []any
	switch list := v.(type) {
	case []any:
		items = list
	case []float64:
		return append([]float64(nil), list...), nil
	case []int:
		for _, n := range list {
			items = append(items, n)
		}
	default:
		return nil, p.invalid(key, "not a number or list: %v", v)
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		n, ok := toFloat(item)
		if !ok {
			return nil, p.invalid(key, "not a number: %v", item)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, p.invalid(key, "empty list")
	}
	return out, nil
}

func (p dofParams) components(key string) ([]int, error) {
	nums, err := p.numbers(key)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(nums))
	for i, n := range nums {
		if n < 1 || n != math.Trunc(n) {
			return nil, p.invalid(key, "component must be a positive integer, got %v", n)
		}
		out[i] = int(n)
	}
	return out, nil
}

func (p dofParams) vector(key string) ([]float64, error) {
	if _, ok := p.values[key]; !ok {
		return nil, nil
	}
	return p.numbers(key)
}

// parseOperation validates op and evaluates string parameters against the
// project variables.
func (tx *txn) parseOperation(op domain.DOFOperation) (dofChange, error) {
	if err := domain.ValidateDOFOperation(op); err != nil {
		return dofChange{}, err
	}
	values := expr.New(tx.state.project.DynamicVars).Resolve(tx.ctx, op.Params)
	return dofParsers[op.Kind](dofParams{kind: op.Kind, values: values})
}

// applyOperation applies op to every resolved target accepted by keep. A nil
// keep accepts all targets. Bodies changed before a failing target are
// restored when the transaction rolls back.
func (tx *txn) applyOperation(op domain.DOFOperation, keep func(int) bool) error {
	change, err := tx.parseOperation(op)
	if err != nil {
		return err
	}
	for _, i := range tx.targetIndices(op.Target) {
		if keep != nil && !keep(i) {
			continue
		}
		h := tx.mirror.avatars[i]
		if change.invert == nil {
			tx.guardBody(h)
		}
		if err := change.apply(tx.be, h); err != nil {
			return domain.BackendError{Op: string(op.Kind), Err: err}
		}
		if change.invert != nil {
			tx.onUndo(func() { _ = change.invert(tx.be, h) })
		}
	}
	return nil
}

// reapplyOperations replays the log on a freshly built body for avatar i.
func (tx *txn) reapplyOperations(i int) error {
	only := func(j int) bool { return j == i }
	for _, op := range tx.state.operations {
		if err := tx.applyOperation(op, only); err != nil {
			return err
		}
	}
	return nil
}

// rebuildAvatars replaces every body and replays the whole log.
func (tx *txn) rebuildAvatars() error {
	for i := range tx.state.avatars {
		h, err := tx.createAvatar(tx.state.avatars[i])
		if err != nil {
			return err
		}
		if err := tx.detachAvatar(tx.mirror.avatars[i]); err != nil {
			return err
		}
		if err := tx.attachAvatar(h); err != nil {
			return err
		}
		tx.mirror.avatars[i] = h
	}
	for _, op := range tx.state.operations {
		if err := tx.applyOperation(op, nil); err != nil {
			return err
		}
	}
	if len(tx.state.postpro) > 0 {
		tx.postproStale = true
	}
	return nil
}

// ApplyDOFOperation applies op without recording it. Targets that do not
// resolve are skipped.
func (s *Service) ApplyDOFOperation(ctx context.Context, op domain.DOFOperation) error {
	return s.run(ctx, "apply_dof_operation", func(tx *txn) error {
		return tx.applyOperation(op, nil)
	})
}

// AddDOFOperation applies op and appends it to the operation log.
func (s *Service) AddDOFOperation(ctx context.Context, op domain.DOFOperation) (int, error) {
	var index int
	err := s.run(ctx, "add_dof_operation", func(tx *txn) error {
		if err := tx.applyOperation(op, nil); err != nil {
			return err
		}
		tx.state.operations = append(tx.state.operations, op.Clone())
		index = len(tx.state.operations) - 1
		return nil
	})
	return index, err
}

// RemoveDOFOperation drops the operation at i from the log. Applied effects
// cannot be undone one by one, so every body is rebuilt and the remaining log
// replayed.
func (s *Service) RemoveDOFOperation(ctx context.Context, i int) (bool, error) {
	removed := false
	err := s.run(ctx, "remove_dof_operation", func(tx *txn) error {
		if i < 0 || i >= len(tx.state.operations) {
			return nil
		}
		tx.state.operations = append(tx.state.operations[:i], tx.state.operations[i+1:]...)
		removed = true
		return tx.rebuildAvatars()
	})
	return removed, err
}

// ListDOFOperations returns the operation log in order.
func (s *Service) ListDOFOperations() []domain.DOFOperation {
	var out []domain.DOFOperation
	s.read(func(st *sceneState) {
		out = make([]domain.DOFOperation, len(st.operations))
		for i, op := range st.operations {
			out[i] = op.Clone()
		}
	})
	return out
}

package core

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"scenecore/internal/backend"
	"scenecore/pkg/domain"
)

// txn is the working copy of one operation.
type txn struct {
	ctx    context.Context
	svc    *Service
	be     backend.Backend
	state  sceneState
	mirror mirror
	undo   []func()

	visibilityGuarded bool
	postproGuarded    bool
	// postproStale is set when avatar handles changed under existing
	// post-processing commands; run rebuilds the list before commit.
	postproStale bool
}

func (tx *txn) onUndo(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *txn) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *txn) dimension() int {
	return tx.state.project.Dimension
}

func (tx *txn) checkDelete(entity domain.EntityType, key string, before any) error {
	res, err := tx.svc.engine.Evaluate(tx.ctx, ruleView{state: &tx.state}, []domain.Change{{
		Entity: entity, Action: domain.ActionDelete, Key: key, Before: before,
	}})
	if err != nil {
		return err
	}
	if res.HasBlocking() {
		return domain.ReferencedError{Entity: entity, Key: key, References: res.Messages(domain.SeverityBlock)}
	}
	return nil
}

func (tx *txn) attachAvatar(h backend.AvatarHandle) error {
	if err := tx.be.AttachAvatar(h); err != nil {
		return domain.BackendError{Op: "attach avatar", Err: err}
	}
	tx.onUndo(func() { _ = tx.be.DetachAvatar(h) })
	return nil
}

func (tx *txn) detachAvatar(h backend.AvatarHandle) error {
	if err := tx.be.DetachAvatar(h); err != nil {
		return domain.BackendError{Op: "detach avatar", Err: err}
	}
	tx.onUndo(func() { _ = tx.be.AttachAvatar(h) })
	return nil
}

func (tx *txn) createAvatar(a domain.Avatar) (backend.AvatarHandle, error) {
	mat, ok := tx.mirror.materials[a.Material]
	if !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityMaterial, Key: a.Material}
	}
	mod, ok := tx.mirror.models[a.Model]
	if !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityModel, Key: a.Model}
	}
	h, err := tx.be.CreateAvatar(a, mat, mod)
	if err != nil {
		return nil, domain.BackendError{Op: "create avatar", Err: err}
	}
	return h, nil
}

// addAvatar validates a, builds and attaches its body and appends it to both
// arenas. It is the single avatar creation path for manual and generated
// avatars.
func (tx *txn) addAvatar(a domain.Avatar) (int, error) {
	if a.Color == "" {
		a.Color = domain.DefaultColor
	}
	if a.Origin == "" {
		a.Origin = domain.OriginManual
	}
	if err := domain.ValidateAvatar(a, tx.dimension()); err != nil {
		return 0, err
	}
	h, err := tx.createAvatar(a)
	if err != nil {
		return 0, err
	}
	if err := tx.attachAvatar(h); err != nil {
		return 0, err
	}
	tx.state.avatars = append(tx.state.avatars, a.Clone())
	tx.mirror.avatars = append(tx.mirror.avatars, h)
	return len(tx.state.avatars) - 1, nil
}

// replaceAvatarHandle builds a fresh body for the avatar at i, swaps it in
// and re-applies the operations that target it.
func (tx *txn) replaceAvatarHandle(i int) error {
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
	if len(tx.state.postpro) > 0 {
		tx.postproStale = true
	}
	return tx.reapplyOperations(i)
}

// guardBody rebuilds a committed body when the transaction rolls back. It
// covers DOF changes the backend cannot invert; bodies created inside the
// transaction are detached by their own undo.
func (tx *txn) guardBody(h backend.AvatarHandle) {
	s := tx.svc
	committed := -1
	for j, c := range s.mirror.avatars {
		if c == h {
			committed = j
			break
		}
	}
	if committed < 0 {
		return
	}
	tx.onUndo(func() {
		rt := &txn{ctx: tx.ctx, svc: s, be: tx.be, state: s.state, mirror: s.mirror}
		err := rt.replaceAvatarHandle(committed)
		if err == nil && rt.postproStale {
			err = rt.rebuildPostPro()
		}
		if err != nil {
			s.logger.Warn("rebuild body on rollback", zap.Int("avatar", committed), zap.Error(err))
			return
		}
		s.mirror = rt.mirror
	})
}

// deleteAvatarAt removes the avatar at i from the backend and both arenas and
// rewrites stored indices.
func (tx *txn) deleteAvatarAt(i int) error {
	if err := tx.detachAvatar(tx.mirror.avatars[i]); err != nil {
		return err
	}
	tx.state.avatars = append(tx.state.avatars[:i], tx.state.avatars[i+1:]...)
	tx.mirror.avatars = append(tx.mirror.avatars[:i], tx.mirror.avatars[i+1:]...)
	tx.state.shiftAfterDelete(i)
	if len(tx.state.postpro) > 0 {
		tx.postproStale = true
	}
	return nil
}

// targetIndices resolves a target to avatar indices. Unknown indices and
// groups resolve to nothing.
func (tx *txn) targetIndices(t domain.Target) []int {
	n := len(tx.state.avatars)
	switch t.Kind {
	case domain.TargetAvatar:
		if t.Avatar >= 0 && t.Avatar < n {
			return []int{t.Avatar}
		}
	case domain.TargetGroup:
		var out []int
		for _, i := range tx.state.groups[t.Group] {
			if i >= 0 && i < n {
				out = append(out, i)
			}
		}
		return out
	}
	return nil
}

func (tx *txn) targetHandles(t domain.Target) []backend.AvatarHandle {
	idx := tx.targetIndices(t)
	out := make([]backend.AvatarHandle, 0, len(idx))
	for _, i := range idx {
		out = append(out, tx.mirror.avatars[i])
	}
	return out
}

// guardVisibility restores the current visibility table on rollback. It is
// registered once per transaction, before the first table change.
func (tx *txn) guardVisibility() {
	if tx.visibilityGuarded {
		return
	}
	tx.visibilityGuarded = true
	prev := append([]backend.RuleHandle(nil), tx.mirror.rules...)
	tx.onUndo(func() {
		tx.be.ResetVisibility()
		for _, h := range prev {
			_ = tx.be.AttachVisibilityRule(h)
		}
	})
}

func (tx *txn) createRule(r domain.VisibilityRule) (backend.RuleHandle, error) {
	law, ok := tx.mirror.laws[r.Behavior]
	if !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityContactLaw, Key: r.Behavior}
	}
	h, err := tx.be.CreateVisibilityRule(r, law)
	if err != nil {
		return nil, domain.BackendError{Op: "create visibility rule", Err: err}
	}
	return h, nil
}

// rebuildVisibility clears the backend table and re-creates every rule in
// stored order.
func (tx *txn) rebuildVisibility() error {
	tx.guardVisibility()
	tx.be.ResetVisibility()
	tx.mirror.rules = tx.mirror.rules[:0:0]
	for _, r := range tx.state.rules {
		h, err := tx.createRule(r)
		if err != nil {
			return err
		}
		if err := tx.be.AttachVisibilityRule(h); err != nil {
			return domain.BackendError{Op: "attach visibility rule", Err: err}
		}
		tx.mirror.rules = append(tx.mirror.rules, h)
	}
	return nil
}

func (tx *txn) guardPostPro() {
	if tx.postproGuarded {
		return
	}
	tx.postproGuarded = true
	prev := append([]backend.PostProHandle(nil), tx.mirror.postpro...)
	tx.onUndo(func() {
		tx.be.ResetPostPro()
		for _, h := range prev {
			_ = tx.be.AttachPostProCommand(h)
		}
	})
}

func (tx *txn) createPostPro(c domain.PostProCommand) (backend.PostProHandle, error) {
	h, err := tx.be.CreatePostProCommand(c.Name, c.Step, tx.targetHandles(c.Target))
	if err != nil {
		return nil, domain.BackendError{Op: "create postpro command", Err: err}
	}
	return h, nil
}

// rebuildPostPro clears the backend list and re-creates every command with
// freshly resolved target bodies.
func (tx *txn) rebuildPostPro() error {
	tx.guardPostPro()
	tx.be.ResetPostPro()
	tx.mirror.postpro = tx.mirror.postpro[:0:0]
	for _, c := range tx.state.postpro {
		h, err := tx.createPostPro(c)
		if err != nil {
			return err
		}
		if err := tx.be.AttachPostProCommand(h); err != nil {
			return domain.BackendError{Op: "attach postpro command", Err: err}
		}
		tx.mirror.postpro = append(tx.mirror.postpro, h)
	}
	tx.postproStale = false
	return nil
}

func duplicate(entity domain.EntityType, name string) error {
	return domain.ValidationError{Entity: entity, Field: "name", Message: strconv.Quote(name) + " already exists"}
}

func outOfRange(entity domain.EntityType, i, n int) error {
	return domain.IndexError{Entity: entity, Index: i, Len: n}
}

package core

import (
	"context"

	"scenecore/pkg/domain"
)

// AddVisibilityRule appends a rule to the visibility table and returns its
// index. The rule's behavior must name an existing contact law.
func (s *Service) AddVisibilityRule(ctx context.Context, r domain.VisibilityRule) (int, error) {
	var index int
	err := s.run(ctx, "add_visibility_rule", func(tx *txn) error {
		if r.Alert == 0 {
			r.Alert = domain.DefaultAlert
		}
		if err := domain.ValidateVisibilityRule(r); err != nil {
			return err
		}
		h, err := tx.createRule(r)
		if err != nil {
			return err
		}
		tx.guardVisibility()
		if err := tx.be.AttachVisibilityRule(h); err != nil {
			return domain.BackendError{Op: "attach visibility rule", Err: err}
		}
		tx.state.rules = append(tx.state.rules, r)
		tx.mirror.rules = append(tx.mirror.rules, h)
		index = len(tx.state.rules) - 1
		return nil
	})
	return index, err
}

// UpdateVisibilityRule replaces the rule at i and rebuilds the table.
func (s *Service) UpdateVisibilityRule(ctx context.Context, i int, r domain.VisibilityRule) error {
	return s.run(ctx, "update_visibility_rule", func(tx *txn) error {
		if i < 0 || i >= len(tx.state.rules) {
			return outOfRange(domain.EntityVisibilityRule, i, len(tx.state.rules))
		}
		if r.Alert == 0 {
			r.Alert = domain.DefaultAlert
		}
		if err := domain.ValidateVisibilityRule(r); err != nil {
			return err
		}
		tx.state.rules[i] = r
		return tx.rebuildVisibility()
	})
}

// RemoveVisibilityRule deletes the rule at i and rebuilds the table.
func (s *Service) RemoveVisibilityRule(ctx context.Context, i int) (bool, error) {
	removed := false
	err := s.run(ctx, "remove_visibility_rule", func(tx *txn) error {
		if i < 0 || i >= len(tx.state.rules) {
			return nil
		}
		tx.state.rules = append(tx.state.rules[:i], tx.state.rules[i+1:]...)
		removed = true
		return tx.rebuildVisibility()
	})
	return removed, err
}

// GetVisibilityRule returns the rule at i.
func (s *Service) GetVisibilityRule(i int) (domain.VisibilityRule, error) {
	var (
		out domain.VisibilityRule
		err error
	)
	s.read(func(st *sceneState) {
		if i < 0 || i >= len(st.rules) {
			err = outOfRange(domain.EntityVisibilityRule, i, len(st.rules))
			return
		}
		out = st.rules[i]
	})
	return out, err
}

// ListVisibilityRules returns the table in order.
func (s *Service) ListVisibilityRules() []domain.VisibilityRule {
	var out []domain.VisibilityRule
	s.read(func(st *sceneState) {
		out = append([]domain.VisibilityRule(nil), st.rules...)
	})
	return out
}

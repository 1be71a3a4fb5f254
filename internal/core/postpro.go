package core

import (
	"context"

	"scenecore/pkg/domain"
)

func (tx *txn) checkPostProTarget(c domain.PostProCommand) error {
	switch c.Target.Kind {
	case domain.TargetAvatar:
		if c.Target.Avatar < 0 || c.Target.Avatar >= len(tx.state.avatars) {
			return outOfRange(domain.EntityAvatar, c.Target.Avatar, len(tx.state.avatars))
		}
	case domain.TargetGroup:
		if _, ok := tx.state.groups[c.Target.Group]; !ok {
			return domain.NotFoundError{Entity: domain.EntityGroup, Key: c.Target.Group}
		}
	}
	return nil
}

// AddPostProCommand appends a command, resolving its target bodies now.
func (s *Service) AddPostProCommand(ctx context.Context, c domain.PostProCommand) (int, error) {
	var index int
	err := s.run(ctx, "add_postpro_command", func(tx *txn) error {
		if err := domain.ValidatePostProCommand(c); err != nil {
			return err
		}
		if err := tx.checkPostProTarget(c); err != nil {
			return err
		}
		h, err := tx.createPostPro(c)
		if err != nil {
			return err
		}
		tx.guardPostPro()
		if err := tx.be.AttachPostProCommand(h); err != nil {
			return domain.BackendError{Op: "attach postpro command", Err: err}
		}
		tx.state.postpro = append(tx.state.postpro, c)
		tx.mirror.postpro = append(tx.mirror.postpro, h)
		index = len(tx.state.postpro) - 1
		return nil
	})
	return index, err
}

// UpdatePostProCommand replaces the command at i and rebuilds the list.
func (s *Service) UpdatePostProCommand(ctx context.Context, i int, c domain.PostProCommand) error {
	return s.run(ctx, "update_postpro_command", func(tx *txn) error {
		if i < 0 || i >= len(tx.state.postpro) {
			return outOfRange(domain.EntityPostPro, i, len(tx.state.postpro))
		}
		if err := domain.ValidatePostProCommand(c); err != nil {
			return err
		}
		if err := tx.checkPostProTarget(c); err != nil {
			return err
		}
		tx.state.postpro[i] = c
		return tx.rebuildPostPro()
	})
}

// RemovePostProCommand deletes the command at i and rebuilds the list.
func (s *Service) RemovePostProCommand(ctx context.Context, i int) (bool, error) {
	removed := false
	err := s.run(ctx, "remove_postpro_command", func(tx *txn) error {
		if i < 0 || i >= len(tx.state.postpro) {
			return nil
		}
		tx.state.postpro = append(tx.state.postpro[:i], tx.state.postpro[i+1:]...)
		removed = true
		return tx.rebuildPostPro()
	})
	return removed, err
}

// GetPostProCommand returns the command at i.
func (s *Service) GetPostProCommand(i int) (domain.PostProCommand, error) {
	var (
		out domain.PostProCommand
		err error
	)
	s.read(func(st *sceneState) {
		if i < 0 || i >= len(st.postpro) {
			err = outOfRange(domain.EntityPostPro, i, len(st.postpro))
			return
		}
		out = st.postpro[i]
	})
	return out, err
}

// ListPostProCommands returns the commands in order.
func (s *Service) ListPostProCommands() []domain.PostProCommand {
	var out []domain.PostProCommand
	s.read(func(st *sceneState) {
		out = append([]domain.PostProCommand(nil), st.postpro...)
	})
	return out
}

package core

import (
	"context"
	"strconv"

	"scenecore/pkg/domain"
)

// AddAvatar adds a manual avatar and returns its index.
func (s *Service) AddAvatar(ctx context.Context, a domain.Avatar) (int, error) {
	var index int
	err := s.run(ctx, "add_avatar", func(tx *txn) error {
		a = a.Clone()
		a.Origin = domain.OriginManual
		var err error
		index, err = tx.addAvatar(a)
		return err
	})
	return index, err
}

// UpdateAvatar replaces the avatar at i, keeping its origin. The old body is
// detached before the new one is attached and re-attached if that fails.
func (s *Service) UpdateAvatar(ctx context.Context, i int, a domain.Avatar) error {
	return s.run(ctx, "update_avatar", func(tx *txn) error {
		if i < 0 || i >= len(tx.state.avatars) {
			return outOfRange(domain.EntityAvatar, i, len(tx.state.avatars))
		}
		a = a.Clone()
		a.Origin = tx.state.avatars[i].Origin
		if a.Color == "" {
			a.Color = domain.DefaultColor
		}
		if err := domain.ValidateAvatar(a, tx.dimension()); err != nil {
			return err
		}
		tx.state.avatars[i] = a
		return tx.replaceAvatarHandle(i)
	})
}

// RemoveAvatar deletes the avatar at i and shifts later indices down. It
// reports false for an out-of-range index and fails with ReferencedError
// while a loop, group or generator references the avatar.
func (s *Service) RemoveAvatar(ctx context.Context, i int) (bool, error) {
	removed := false
	err := s.run(ctx, "remove_avatar", func(tx *txn) error {
		if i < 0 || i >= len(tx.state.avatars) {
			return nil
		}
		if err := tx.checkDelete(domain.EntityAvatar, strconv.Itoa(i), i); err != nil {
			return err
		}
		if err := tx.deleteAvatarAt(i); err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

// GetAvatar returns the avatar at i.
func (s *Service) GetAvatar(i int) (domain.Avatar, error) {
	var (
		out domain.Avatar
		err error
	)
	s.read(func(st *sceneState) {
		if i < 0 || i >= len(st.avatars) {
			err = outOfRange(domain.EntityAvatar, i, len(st.avatars))
			return
		}
		out = st.avatars[i].Clone()
	})
	return out, err
}

// ListAvatars returns the avatars in index order. Without includeGenerated
// only manual avatars are returned.
func (s *Service) ListAvatars(includeGenerated bool) []domain.Avatar {
	var out []domain.Avatar
	s.read(func(st *sceneState) {
		out = make([]domain.Avatar, 0, len(st.avatars))
		for _, a := range st.avatars {
			if includeGenerated || a.Origin == domain.OriginManual {
				out = append(out, a.Clone())
			}
		}
	})
	return out
}

// AvatarCount returns the number of avatars, generated ones included.
func (s *Service) AvatarCount() int {
	n := 0
	s.read(func(st *sceneState) { n = len(st.avatars) })
	return n
}

// IsAvatarUsed reports whether loops, groups or generators reference the
// avatar at i.
func (s *Service) IsAvatarUsed(ctx context.Context, i int) (bool, []string) {
	return s.references(ctx, domain.EntityAvatar, strconv.Itoa(i), i)
}

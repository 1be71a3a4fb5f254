package core

import (
	"context"

	"scenecore/pkg/domain"
)

// addToGroup appends indices to a group, creating it when needed. An empty
// name is a no-op.
func (tx *txn) addToGroup(name string, indices []int) {
	if name == "" {
		return
	}
	members := tx.state.groups[name]
	for _, i := range indices {
		if !containsInt(members, i) {
			members = append(members, i)
		}
	}
	if members == nil {
		members = []int{}
	}
	tx.state.groups[name] = members
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// CreateGroup declares an empty avatar group.
func (s *Service) CreateGroup(ctx context.Context, name string) error {
	return s.run(ctx, "create_group", func(tx *txn) error {
		if err := domain.ValidateGroupName(name); err != nil {
			return err
		}
		if _, ok := tx.state.groups[name]; ok {
			return duplicate(domain.EntityGroup, name)
		}
		tx.state.groups[name] = []int{}
		return nil
	})
}

// AddToGroup adds avatars to a group, creating the group if it does not
// exist. Every index must address an existing avatar.
func (s *Service) AddToGroup(ctx context.Context, name string, indices ...int) error {
	return s.run(ctx, "add_to_group", func(tx *txn) error {
		if err := domain.ValidateGroupName(name); err != nil {
			return err
		}
		for _, i := range indices {
			if i < 0 || i >= len(tx.state.avatars) {
				return outOfRange(domain.EntityAvatar, i, len(tx.state.avatars))
			}
		}
		tx.addToGroup(name, indices)
		if len(tx.state.postpro) > 0 {
			tx.postproStale = true
		}
		return nil
	})
}

// RemoveFromGroup drops avatars from a group's member list.
func (s *Service) RemoveFromGroup(ctx context.Context, name string, indices ...int) error {
	return s.run(ctx, "remove_from_group", func(tx *txn) error {
		members, ok := tx.state.groups[name]
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityGroup, Key: name}
		}
		kept := make([]int, 0, len(members))
		for _, m := range members {
			if !containsInt(indices, m) {
				kept = append(kept, m)
			}
		}
		tx.state.groups[name] = kept
		if len(tx.state.postpro) > 0 {
			tx.postproStale = true
		}
		return nil
	})
}

// RemoveGroup deletes a group unless operations, commands or generators
// name it. Member avatars are kept.
func (s *Service) RemoveGroup(ctx context.Context, name string) (bool, error) {
	removed := false
	err := s.run(ctx, "remove_group", func(tx *txn) error {
		if _, ok := tx.state.groups[name]; !ok {
			return nil
		}
		if err := tx.checkDelete(domain.EntityGroup, name, nil); err != nil {
			return err
		}
		delete(tx.state.groups, name)
		removed = true
		return nil
	})
	return removed, err
}

// GetGroup returns the member indices of a group.
func (s *Service) GetGroup(name string) ([]int, error) {
	var (
		out []int
		err error
	)
	s.read(func(st *sceneState) {
		members, ok := st.groups[name]
		if !ok {
			err = domain.NotFoundError{Entity: domain.EntityGroup, Key: name}
			return
		}
		out = append([]int{}, members...)
	})
	return out, err
}

// ListGroups returns the group names, sorted.
func (s *Service) ListGroups() []string {
	var out []string
	s.read(func(st *sceneState) { out = st.groupNames() })
	return out
}

// IsGroupUsed reports what names the group.
func (s *Service) IsGroupUsed(ctx context.Context, name string) (bool, []string) {
	return s.references(ctx, domain.EntityGroup, name, nil)
}

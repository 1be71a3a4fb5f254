package core

import (
	"context"

	"scenecore/pkg/domain"
)

// AddMaterial registers a new material.
func (s *Service) AddMaterial(ctx context.Context, m domain.Material) error {
	return s.run(ctx, "add_material", func(tx *txn) error {
		if err := domain.ValidateMaterial(m); err != nil {
			return err
		}
		if tx.state.materialIndex(m.Name) >= 0 {
			return duplicate(domain.EntityMaterial, m.Name)
		}
		h, err := tx.be.CreateMaterial(m)
		if err != nil {
			return domain.BackendError{Op: "create material", Err: err}
		}
		tx.state.materials = append(tx.state.materials, m.Clone())
		tx.mirror.materials[m.Name] = h
		return nil
	})
}

// UpdateMaterial replaces the material named oldName. A rename cascades into
// avatars and depositions; avatars using the material get new bodies.
func (s *Service) UpdateMaterial(ctx context.Context, oldName string, m domain.Material) error {
	return s.run(ctx, "update_material", func(tx *txn) error {
		idx := tx.state.materialIndex(oldName)
		if idx < 0 {
			return domain.NotFoundError{Entity: domain.EntityMaterial, Key: oldName}
		}
		if err := domain.ValidateMaterial(m); err != nil {
			return err
		}
		if m.Name != oldName && tx.state.materialIndex(m.Name) >= 0 {
			return duplicate(domain.EntityMaterial, m.Name)
		}
		h, err := tx.be.CreateMaterial(m)
		if err != nil {
			return domain.BackendError{Op: "create material", Err: err}
		}
		tx.state.materials[idx] = m.Clone()
		delete(tx.mirror.materials, oldName)
		tx.mirror.materials[m.Name] = h
		for i := range tx.state.granulos {
			if tx.state.granulos[i].Material == oldName {
				tx.state.granulos[i].Material = m.Name
			}
		}
		for i := range tx.state.avatars {
			if tx.state.avatars[i].Material != oldName {
				continue
			}
			tx.state.avatars[i].Material = m.Name
			if err := tx.replaceAvatarHandle(i); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveMaterial deletes a material. It reports false when no material has
// that name and fails with ReferencedError while the material is in use.
func (s *Service) RemoveMaterial(ctx context.Context, name string) (bool, error) {
	removed := false
	err := s.run(ctx, "remove_material", func(tx *txn) error {
		idx := tx.state.materialIndex(name)
		if idx < 0 {
			return nil
		}
		if err := tx.checkDelete(domain.EntityMaterial, name, nil); err != nil {
			return err
		}
		tx.state.materials = append(tx.state.materials[:idx], tx.state.materials[idx+1:]...)
		delete(tx.mirror.materials, name)
		removed = true
		return nil
	})
	return removed, err
}

// GetMaterial returns the named material.
func (s *Service) GetMaterial(name string) (domain.Material, error) {
	var (
		out domain.Material
		err error
	)
	s.read(func(st *sceneState) {
		idx := st.materialIndex(name)
		if idx < 0 {
			err = domain.NotFoundError{Entity: domain.EntityMaterial, Key: name}
			return
		}
		out = st.materials[idx].Clone()
	})
	return out, err
}

// ListMaterials returns the materials in insertion order.
func (s *Service) ListMaterials() []domain.Material {
	var out []domain.Material
	s.read(func(st *sceneState) {
		out = make([]domain.Material, len(st.materials))
		for i, m := range st.materials {
			out[i] = m.Clone()
		}
	})
	return out
}

// IsMaterialUsed reports whether anything references the material and what.
func (s *Service) IsMaterialUsed(ctx context.Context, name string) (bool, []string) {
	return s.references(ctx, domain.EntityMaterial, name, nil)
}

// AddModel registers a new model.
func (s *Service) AddModel(ctx context.Context, m domain.Model) error {
	return s.run(ctx, "add_model", func(tx *txn) error {
		if err := domain.ValidateModel(m); err != nil {
			return err
		}
		if tx.state.modelIndex(m.Name) >= 0 {
			return duplicate(domain.EntityModel, m.Name)
		}
		h, err := tx.be.CreateModel(m)
		if err != nil {
			return domain.BackendError{Op: "create model", Err: err}
		}
		tx.state.models = append(tx.state.models, m.Clone())
		tx.mirror.models[m.Name] = h
		return nil
	})
}

// UpdateModel replaces the model named oldName, cascading a rename into
// avatars and depositions.
func (s *Service) UpdateModel(ctx context.Context, oldName string, m domain.Model) error {
	return s.run(ctx, "update_model", func(tx *txn) error {
		idx := tx.state.modelIndex(oldName)
		if idx < 0 {
			return domain.NotFoundError{Entity: domain.EntityModel, Key: oldName}
		}
		if err := domain.ValidateModel(m); err != nil {
			return err
		}
		if m.Name != oldName && tx.state.modelIndex(m.Name) >= 0 {
			return duplicate(domain.EntityModel, m.Name)
		}
		h, err := tx.be.CreateModel(m)
		if err != nil {
			return domain.BackendError{Op: "create model", Err: err}
		}
		tx.state.models[idx] = m.Clone()
		delete(tx.mirror.models, oldName)
		tx.mirror.models[m.Name] = h
		for i := range tx.state.granulos {
			if tx.state.granulos[i].Model == oldName {
				tx.state.granulos[i].Model = m.Name
			}
		}
		for i := range tx.state.avatars {
			if tx.state.avatars[i].Model != oldName {
				continue
			}
			tx.state.avatars[i].Model = m.Name
			if err := tx.replaceAvatarHandle(i); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveModel deletes a model unless it is referenced.
func (s *Service) RemoveModel(ctx context.Context, name string) (bool, error) {
	removed := false
	err := s.run(ctx, "remove_model", func(tx *txn) error {
		idx := tx.state.modelIndex(name)
		if idx < 0 {
			return nil
		}
		if err := tx.checkDelete(domain.EntityModel, name, nil); err != nil {
			return err
		}
		tx.state.models = append(tx.state.models[:idx], tx.state.models[idx+1:]...)
		delete(tx.mirror.models, name)
		removed = true
		return nil
	})
	return removed, err
}

// GetModel returns the named model.
func (s *Service) GetModel(name string) (domain.Model, error) {
	var (
		out domain.Model
		err error
	)
	s.read(func(st *sceneState) {
		idx := st.modelIndex(name)
		if idx < 0 {
			err = domain.NotFoundError{Entity: domain.EntityModel, Key: name}
			return
		}
		out = st.models[idx].Clone()
	})
	return out, err
}

// ListModels returns the models in insertion order.
func (s *Service) ListModels() []domain.Model {
	var out []domain.Model
	s.read(func(st *sceneState) {
		out = make([]domain.Model, len(st.models))
		for i, m := range st.models {
			out[i] = m.Clone()
		}
	})
	return out
}

// IsModelUsed reports whether anything references the model and what.
func (s *Service) IsModelUsed(ctx context.Context, name string) (bool, []string) {
	return s.references(ctx, domain.EntityModel, name, nil)
}

// AddContactLaw registers a new contact law.
func (s *Service) AddContactLaw(ctx context.Context, l domain.ContactLaw) error {
	return s.run(ctx, "add_contact_law", func(tx *txn) error {
		if err := domain.ValidateContactLaw(l); err != nil {
			return err
		}
		if tx.state.lawIndex(l.Name) >= 0 {
			return duplicate(domain.EntityContactLaw, l.Name)
		}
		h, err := tx.be.CreateContactLaw(l)
		if err != nil {
			return domain.BackendError{Op: "create contact law", Err: err}
		}
		tx.state.laws = append(tx.state.laws, l.Clone())
		tx.mirror.laws[l.Name] = h
		return nil
	})
}

// UpdateContactLaw replaces the law named oldName. Visibility rules follow a
// rename and the visibility table is rebuilt when any rule uses the law.
func (s *Service) UpdateContactLaw(ctx context.Context, oldName string, l domain.ContactLaw) error {
	return s.run(ctx, "update_contact_law", func(tx *txn) error {
		idx := tx.state.lawIndex(oldName)
		if idx < 0 {
			return domain.NotFoundError{Entity: domain.EntityContactLaw, Key: oldName}
		}
		if err := domain.ValidateContactLaw(l); err != nil {
			return err
		}
		if l.Name != oldName && tx.state.lawIndex(l.Name) >= 0 {
			return duplicate(domain.EntityContactLaw, l.Name)
		}
		h, err := tx.be.CreateContactLaw(l)
		if err != nil {
			return domain.BackendError{Op: "create contact law", Err: err}
		}
		tx.state.laws[idx] = l.Clone()
		delete(tx.mirror.laws, oldName)
		tx.mirror.laws[l.Name] = h
		used := false
		for i := range tx.state.rules {
			if tx.state.rules[i].Behavior == oldName {
				tx.state.rules[i].Behavior = l.Name
				used = true
			}
		}
		if used {
			return tx.rebuildVisibility()
		}
		return nil
	})
}

// RemoveContactLaw deletes a law unless a visibility rule names it.
func (s *Service) RemoveContactLaw(ctx context.Context, name string) (bool, error) {
	removed := false
	err := s.run(ctx, "remove_contact_law", func(tx *txn) error {
		idx := tx.state.lawIndex(name)
		if idx < 0 {
			return nil
		}
		if err := tx.checkDelete(domain.EntityContactLaw, name, nil); err != nil {
			return err
		}
		tx.state.laws = append(tx.state.laws[:idx], tx.state.laws[idx+1:]...)
		delete(tx.mirror.laws, name)
		removed = true
		return nil
	})
	return removed, err
}

// GetContactLaw returns the named law.
func (s *Service) GetContactLaw(name string) (domain.ContactLaw, error) {
	var (
		out domain.ContactLaw
		err error
	)
	s.read(func(st *sceneState) {
		idx := st.lawIndex(name)
		if idx < 0 {
			err = domain.NotFoundError{Entity: domain.EntityContactLaw, Key: name}
			return
		}
		out = st.laws[idx].Clone()
	})
	return out, err
}

// ListContactLaws returns the laws in insertion order.
func (s *Service) ListContactLaws() []domain.ContactLaw {
	var out []domain.ContactLaw
	s.read(func(st *sceneState) {
		out = make([]domain.ContactLaw, len(st.laws))
		for i, l := range st.laws {
			out[i] = l.Clone()
		}
	})
	return out
}

// IsContactLawUsed reports which visibility rules name the law.
func (s *Service) IsContactLawUsed(ctx context.Context, name string) (bool, []string) {
	return s.references(ctx, domain.EntityContactLaw, name, nil)
}

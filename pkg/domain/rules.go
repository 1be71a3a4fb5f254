package domain

import (
	"context"
	"fmt"
	"sort"
)

// RuleView provides read-only access to scene entities for rule evaluation.
type RuleView interface {
	ListAvatars() []Avatar
	ListVisibilityRules() []VisibilityRule
	ListDOFOperations() []DOFOperation
	ListLoops() []Loop
	ListGranulos() []GranuloGeneration
	ListPostProCommands() []PostProCommand
	Groups() map[string][]int
}

// Rule defines an evaluation executed within an operation boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// NewReferenceRulesEngine returns an engine with the reference-integrity rules
// that block deletion of records still in use.
func NewReferenceRulesEngine() *RulesEngine {
	e := NewRulesEngine()
	e.Register(MaterialReferenceRule())
	e.Register(ModelReferenceRule())
	e.Register(ContactLawReferenceRule())
	e.Register(AvatarReferenceRule())
	e.Register(GroupReferenceRule())
	return e
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}

type referenceRule struct {
	name   string
	entity EntityType
	find   func(view RuleView, change Change) []string
}

func (r referenceRule) Name() string { return r.name }

func (r referenceRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	var res Result
	for _, change := range changes {
		if change.Entity != r.entity || change.Action != ActionDelete {
			continue
		}
		for _, ref := range r.find(view, change) {
			res.Violations = append(res.Violations, Violation{
				Rule:     r.name,
				Severity: SeverityBlock,
				Message:  ref,
				Entity:   r.entity,
				Key:      change.Key,
			})
		}
	}
	return res, nil
}

// MaterialReferenceRule blocks deleting a material used by avatars or depositions.
func MaterialReferenceRule() Rule {
	return referenceRule{
		name:   "material_references",
		entity: EntityMaterial,
		find: func(view RuleView, change Change) []string {
			var refs []string
			for i, a := range view.ListAvatars() {
				if a.Material == change.Key {
					refs = append(refs, DescribeAvatar(i, a))
				}
			}
			for i, g := range view.ListGranulos() {
				if g.Material == change.Key {
					refs = append(refs, fmt.Sprintf("granulo #%d", i+1))
				}
			}
			return refs
		},
	}
}

// ModelReferenceRule blocks deleting a model used by avatars or depositions.
func ModelReferenceRule() Rule {
	return referenceRule{
		name:   "model_references",
		entity: EntityModel,
		find: func(view RuleView, change Change) []string {
			var refs []string
			for i, a := range view.ListAvatars() {
				if a.Model == change.Key {
					refs = append(refs, DescribeAvatar(i, a))
				}
			}
			for i, g := range view.ListGranulos() {
				if g.Model == change.Key {
					refs = append(refs, fmt.Sprintf("granulo #%d", i+1))
				}
			}
			return refs
		},
	}
}

// ContactLawReferenceRule blocks deleting a law named by visibility rules.
func ContactLawReferenceRule() Rule {
	return referenceRule{
		name:   "contact_law_references",
		entity: EntityContactLaw,
		find: func(view RuleView, change Change) []string {
			var refs []string
			for i, r := range view.ListVisibilityRules() {
				if r.Behavior == change.Key {
					refs = append(refs, fmt.Sprintf("visibility rule #%d", i+1))
				}
			}
			return refs
		},
	}
}

// AvatarReferenceRule blocks deleting an avatar that is a loop source, a group
// member or owned by a generator. The change Before value carries the index.
func AvatarReferenceRule() Rule {
	return referenceRule{
		name:   "avatar_references",
		entity: EntityAvatar,
		find: func(view RuleView, change Change) []string {
			index, ok := change.Before.(int)
			if !ok {
				return nil
			}
			var refs []string
			for i, l := range view.ListLoops() {
				if l.Source == index {
					refs = append(refs, fmt.Sprintf("loop #%d (%s)", i+1, l.Pattern))
				}
				if containsIndex(l.Generated, index) {
					refs = append(refs, fmt.Sprintf("loop #%d generated it", i+1))
				}
			}
			for i, g := range view.ListGranulos() {
				if containsIndex(g.Generated, index) {
					refs = append(refs, fmt.Sprintf("granulo #%d generated it", i+1))
				}
			}
			for _, name := range sortedGroupNames(view.Groups()) {
				if containsIndex(view.Groups()[name], index) {
					refs = append(refs, fmt.Sprintf("group '%s'", name))
				}
			}
			return refs
		},
	}
}

// GroupReferenceRule blocks deleting a group named by operations, commands or
// generator configs.
func GroupReferenceRule() Rule {
	return referenceRule{
		name:   "group_references",
		entity: EntityGroup,
		find: func(view RuleView, change Change) []string {
			var refs []string
			for i, op := range view.ListDOFOperations() {
				if op.Target.Kind == TargetGroup && op.Target.Group == change.Key {
					refs = append(refs, fmt.Sprintf("operation #%d (%s)", i+1, op.Kind))
				}
			}
			for i, c := range view.ListPostProCommands() {
				if c.Target.Kind == TargetGroup && c.Target.Group == change.Key {
					refs = append(refs, fmt.Sprintf("postpro #%d (%s)", i+1, c.Name))
				}
			}
			for i, l := range view.ListLoops() {
				if l.Group == change.Key {
					refs = append(refs, fmt.Sprintf("loop #%d (%s)", i+1, l.Pattern))
				}
			}
			for i, g := range view.ListGranulos() {
				if g.Group == change.Key {
					refs = append(refs, fmt.Sprintf("granulo #%d", i+1))
				}
			}
			return refs
		},
	}
}

func containsIndex(list []int, index int) bool {
	for _, v := range list {
		if v == index {
			return true
		}
	}
	return false
}

func sortedGroupNames(groups map[string][]int) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"scenecore/internal/backend"
	"scenecore/internal/expr"
	"scenecore/pkg/domain"
)

// DefaultDimension is the dimension of the project a new Service starts with.
const DefaultDimension = 2

// Service owns one scene: the entity store, the backend mirror and the rules
// that guard deletes. Every mutating operation runs against a clone of the
// store and commits only when it succeeds.
type Service struct {
	mu       sync.Mutex
	backend  backend.Backend
	engine   *domain.RulesEngine
	metrics  MetricsRecorder
	logger   *zap.Logger
	state    sceneState
	mirror   mirror
	warnings []string
}

// Option configures a Service.
type Option func(*Service)

// WithRulesEngine replaces the reference-integrity rules engine.
func WithRulesEngine(engine *domain.RulesEngine) Option {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithMetricsRecorder sets the recorder observing every mutating operation.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger used for replay warnings.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService constructs a service with an empty 2-D project driving b.
func NewService(b backend.Backend, opts ...Option) *Service {
	s := &Service{
		backend: b,
		engine:  domain.NewReferenceRulesEngine(),
		metrics: noopMetrics{},
		logger:  zap.NewNop(),
		state:   newSceneState(domain.NewProject(domain.DefaultProjectName, DefaultDimension)),
		mirror:  newMirror(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the backend the service drives.
func (s *Service) Backend() backend.Backend {
	return s.backend
}

// Logger returns the service logger.
func (s *Service) Logger() *zap.Logger {
	return s.logger
}

// NewProject drops every entity, resets the backend and starts an empty
// project.
func (s *Service) NewProject(ctx context.Context, name string, dimension int) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if dimension != 2 && dimension != 3 {
		s.metrics.Observe(ctx, "new_project", false, time.Since(start))
		return domain.ValidationError{Entity: domain.EntityProject, Field: "dimension", Message: "must be 2 or 3"}
	}
	if name == "" {
		name = domain.DefaultProjectName
	}
	s.backend.Reset()
	s.state = newSceneState(domain.NewProject(name, dimension))
	s.mirror = newMirror()
	s.warnings = nil
	s.metrics.Observe(ctx, "new_project", true, time.Since(start))
	return nil
}

// Project returns the project metadata.
func (s *Service) Project() domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.project.Clone()
}

// UpdateProject replaces name, units and preferences. The dimension is fixed
// for the life of the project.
func (s *Service) UpdateProject(ctx context.Context, fn func(*domain.Project) error) error {
	return s.run(ctx, "update_project", func(tx *txn) error {
		p := tx.state.project.Clone()
		if err := fn(&p); err != nil {
			return err
		}
		if p.Dimension != tx.state.project.Dimension {
			return domain.ValidationError{Entity: domain.EntityProject, Field: "dimension", Message: "cannot change the dimension of an existing project"}
		}
		if p.Preferences.UnitSystem != tx.state.project.Preferences.UnitSystem {
			p.Units = p.Preferences.UnitSystem.Labels()
		}
		tx.state.project = p
		return nil
	})
}

// SetDynamicVar binds a variable usable in parameter expressions.
func (s *Service) SetDynamicVar(ctx context.Context, name string, value float64) error {
	return s.run(ctx, "set_dynamic_var", func(tx *txn) error {
		if name == "" {
			return domain.ValidationError{Entity: domain.EntityProject, Field: "dynamic_vars", Message: "variable name must not be empty"}
		}
		if tx.state.project.DynamicVars == nil {
			tx.state.project.DynamicVars = map[string]float64{}
		}
		tx.state.project.DynamicVars[name] = value
		return nil
	})
}

// EvalParams evaluates an assignment list such as "young=1e9, nu=0.3" with
// the project dynamic variables in scope.
func (s *Service) EvalParams(ctx context.Context, src string) (map[string]float64, error) {
	s.mu.Lock()
	vars := s.state.project.Clone().DynamicVars
	s.mu.Unlock()
	out, err := expr.New(vars).Assignments(ctx, src)
	if err != nil {
		return nil, domain.ValidationError{Entity: domain.EntityProject, Field: "params", Message: err.Error()}
	}
	return out, nil
}

// Warnings returns the warnings collected by the last Load.
func (s *Service) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Mirror reports how many backend handles the service holds.
func (s *Service) Mirror() MirrorStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror.stats()
}

// Violations evaluates the rules engine for a prospective change without
// applying it.
func (s *Service) Violations(ctx context.Context, change domain.Change) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Evaluate(ctx, ruleView{state: &s.state}, []domain.Change{change})
}

func (s *Service) references(ctx context.Context, entity domain.EntityType, key string, before any) (bool, []string) {
	res, err := s.Violations(ctx, domain.Change{Entity: entity, Action: domain.ActionDelete, Key: key, Before: before})
	if err != nil {
		return false, nil
	}
	refs := res.Messages(domain.SeverityBlock)
	return len(refs) > 0, refs
}

func (s *Service) read(fn func(st *sceneState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// run executes fn inside a transaction. Store and mirror changes are made on
// clones and committed on success; backend side effects are undone in
// reverse order on failure.
func (s *Service) run(ctx context.Context, op string, fn func(tx *txn) error) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txn{ctx: ctx, svc: s, be: s.backend, state: s.state.clone(), mirror: s.mirror.clone()}
	err := fn(tx)
	if err == nil && tx.postproStale {
		err = tx.rebuildPostPro()
	}
	if err != nil {
		tx.rollback()
	} else {
		s.state, s.mirror = tx.state, tx.mirror
	}
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	return err
}

package core_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"scenecore/internal/backend"
	"scenecore/internal/backend/backendtest"
	"scenecore/pkg/domain"
)

func lastCall(t *testing.T, fake *backendtest.Fake, method string) backendtest.Call {
	t.Helper()
	calls := fake.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method {
			return calls[i]
		}
	}
	t.Fatalf("no %s call recorded", method)
	return backendtest.Call{}
}

func TestAddDOFOperationEvaluatesExpressions(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))
	if err := svc.SetDynamicVar(ctx, "k", 1.5); err != nil {
		t.Fatalf("var: %v", err)
	}

	i, err := svc.AddDOFOperation(ctx, domain.DOFOperation{
		Kind:   domain.DOFTranslate,
		Target: domain.AvatarTarget(0),
		Params: map[string]any{"dx": 1.0, "dy": "2*k"},
	})
	if err != nil || i != 0 {
		t.Fatalf("add op: %d %v", i, err)
	}
	call := lastCall(t, fake, "Translate")
	if call.Args[0] != 1.0 || call.Args[1] != 3.0 || call.Args[2] != 0.0 {
		t.Fatalf("unexpected translate args %v", call.Args)
	}
	ops := svc.ListDOFOperations()
	if len(ops) != 1 || ops[0].Params["dy"] != "2*k" {
		t.Fatalf("log should keep the raw expression, got %+v", ops)
	}
}

func TestAddDOFOperationRejectsBadParams(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))

	cases := []domain.DOFOperation{
		{Kind: domain.DOFTranslate, Target: domain.AvatarTarget(0), Params: map[string]any{"dx": 1.0}},
		{Kind: domain.DOFTranslate, Target: domain.AvatarTarget(0), Params: map[string]any{"dx": "nope", "dy": 0}},
		{Kind: domain.DOFKind("shear"), Target: domain.AvatarTarget(0), Params: map[string]any{}},
		{Kind: domain.DOFImposeDrivenDOF, Target: domain.AvatarTarget(0), Params: map[string]any{"component": 1, "dofty": "accel"}},
		{Kind: domain.DOFImposeDrivenDOF, Target: domain.AvatarTarget(0), Params: map[string]any{"component": 0.5}},
		{Kind: domain.DOFImposeInitValue, Target: domain.AvatarTarget(0), Params: map[string]any{"component": []any{1, 2, 3}, "value": []any{1.0, 2.0}}},
		{Kind: domain.DOFRotate, Target: domain.Target{}, Params: map[string]any{"theta": 1}},
	}
	for _, op := range cases {
		if _, err := svc.AddDOFOperation(ctx, op); !domain.IsValidation(err) {
			t.Fatalf("%s %v: expected validation error, got %v", op.Kind, op.Params, err)
		}
	}
	if len(svc.ListDOFOperations()) != 0 {
		t.Fatalf("rejected operations must not be logged")
	}
	for _, m := range []string{"Translate", "Rotate", "ImposeDrivenDOF", "ImposeInitValue"} {
		if fake.Count(m) != 0 {
			t.Fatalf("rejected operations must not touch bodies, %s called", m)
		}
	}
}

func TestDrivenDOFAndInitValue(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))

	if _, err := svc.AddDOFOperation(ctx, domain.DOFOperation{
		Kind:   domain.DOFImposeDrivenDOF,
		Target: domain.AvatarTarget(0),
		Params: map[string]any{"component": []any{1, 2}, "ct": 0.5},
	}); err != nil {
		t.Fatalf("driven dof: %v", err)
	}
	if fake.Count("ImposeDrivenDOF") != 2 {
		t.Fatalf("expected one call per component, got %d", fake.Count("ImposeDrivenDOF"))
	}
	dof := lastCall(t, fake, "ImposeDrivenDOF").Args[0].(backend.DrivenDOF)
	if dof.Component != 2 || dof.DOFType != "vlocy" || dof.Kind != "predefined" || dof.CT != 0.5 || dof.RampI != 1 {
		t.Fatalf("unexpected driven dof %+v", dof)
	}

	if _, err := svc.AddDOFOperation(ctx, domain.DOFOperation{
		Kind:   domain.DOFImposeInitValue,
		Target: domain.AvatarTarget(0),
		Params: map[string]any{"component": []any{1, 2}, "value": 4.0},
	}); err != nil {
		t.Fatalf("init value: %v", err)
	}
	if fake.Count("ImposeInitValue") != 2 {
		t.Fatalf("a single value should broadcast to every component")
	}
}

func TestDOFOperationTargetsGroups(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))
	mustAddAvatar(t, svc, disk(1, 0, 0.1))
	if err := svc.AddToGroup(ctx, "g", 0, 1); err != nil {
		t.Fatalf("group: %v", err)
	}
	if _, err := svc.AddDOFOperation(ctx, domain.DOFOperation{
		Kind:   domain.DOFRotate,
		Target: domain.GroupTarget("g"),
		Params: map[string]any{"theta": "pi/2", "center": []any{0, 0}},
	}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if fake.Count("Rotate") != 2 {
		t.Fatalf("expected both members rotated, got %d", fake.Count("Rotate"))
	}
	if theta := lastCall(t, fake, "Rotate").Args[0].(float64); math.Abs(theta-math.Pi/2) > 1e-12 {
		t.Fatalf("unexpected theta %g", theta)
	}
	if removed, err := svc.RemoveGroup(ctx, "g"); !domain.IsReferenced(err) || removed {
		t.Fatalf("group used by an operation should be protected, got %v %v", removed, err)
	}
}

func TestDOFOperationSkipsUnresolvedTargets(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))

	if _, err := svc.AddDOFOperation(ctx, domain.DOFOperation{
		Kind:   domain.DOFTranslate,
		Target: domain.AvatarTarget(7),
		Params: map[string]any{"dx": 1, "dy": 1},
	}); err != nil {
		t.Fatalf("unresolved targets are skipped, got %v", err)
	}
	if err := svc.ApplyDOFOperation(ctx, domain.DOFOperation{
		Kind:   domain.DOFTranslate,
		Target: domain.GroupTarget("missing"),
		Params: map[string]any{"dx": 1, "dy": 1},
	}); err != nil {
		t.Fatalf("unknown groups are skipped, got %v", err)
	}
	if fake.Count("Translate") != 0 {
		t.Fatalf("no body should move")
	}
	if len(svc.ListDOFOperations()) != 1 {
		t.Fatalf("ApplyDOFOperation must not log")
	}
}

func TestRemoveDOFOperationReplaysLog(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))
	for _, dx := range []float64{1, 2} {
		if _, err := svc.AddDOFOperation(ctx, domain.DOFOperation{
			Kind:   domain.DOFTranslate,
			Target: domain.AvatarTarget(0),
			Params: map[string]any{"dx": dx, "dy": 0},
		}); err != nil {
			t.Fatalf("op: %v", err)
		}
	}
	if removed, err := svc.RemoveDOFOperation(ctx, 0); err != nil || !removed {
		t.Fatalf("remove op: %v %v", removed, err)
	}
	if fake.Count("CreateAvatar") != 2 || fake.Count("Translate") != 3 {
		t.Fatalf("expected a rebuilt body with one replayed op, got %d bodies and %d translates",
			fake.Count("CreateAvatar"), fake.Count("Translate"))
	}
	if dx := lastCall(t, fake, "Translate").Args[0]; dx != 2.0 {
		t.Fatalf("the remaining op should be replayed, got dx=%v", dx)
	}
	if len(fake.Attached()) != 1 {
		t.Fatalf("exactly one body should stay attached")
	}

	if err := svc.UpdateAvatar(ctx, 0, disk(0, 0, 0.2)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if fake.Count("Translate") != 4 {
		t.Fatalf("replacing a body should replay its operations, got %d", fake.Count("Translate"))
	}
	if removed, err := svc.RemoveDOFOperation(ctx, 9); err != nil || removed {
		t.Fatalf("out of range remove should report false, got %v %v", removed, err)
	}
}

func TestFailedGroupTranslateRestoresMovedBodies(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	for x := 0; x < 3; x++ {
		mustAddAvatar(t, svc, disk(float64(x), 0, 0.1))
	}
	if err := svc.AddToGroup(ctx, "row", 0, 1, 2); err != nil {
		t.Fatalf("group: %v", err)
	}
	calls := 0
	fake.FailWhen("Translate", func([]any) error {
		calls++
		if calls == 3 {
			return errors.New("body locked")
		}
		return nil
	})

	_, err := svc.AddDOFOperation(ctx, domain.DOFOperation{
		Kind:   domain.DOFTranslate,
		Target: domain.GroupTarget("row"),
		Params: map[string]any{"dx": 1.0, "dy": 0.0},
	})
	var be domain.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected a backend error, got %v", err)
	}
	var translates []backendtest.Call
	for _, c := range fake.Calls() {
		if c.Method == "Translate" {
			translates = append(translates, c)
		}
	}
	if len(translates) != 5 {
		t.Fatalf("expected three moves and two reversals, got %d", len(translates))
	}
	for k, moved := range []int{1, 0} {
		back := translates[3+k]
		if back.Handle != translates[moved].Handle || back.Args[0] != -1.0 {
			t.Fatalf("reversal %d should undo move %d, got %+v", k, moved, back)
		}
	}
	if len(svc.ListDOFOperations()) != 0 {
		t.Fatalf("failed operations must not be logged")
	}
}

func TestFailedDrivenDOFRebuildsTouchedBodies(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	seedBasics(t, svc)
	mustAddAvatar(t, svc, disk(0, 0, 0.1))
	mustAddAvatar(t, svc, disk(1, 0, 0.1))
	if err := svc.AddToGroup(ctx, "pair", 0, 1); err != nil {
		t.Fatalf("group: %v", err)
	}
	before := fake.Attached()
	calls := 0
	fake.FailWhen("ImposeDrivenDOF", func([]any) error {
		calls++
		if calls == 2 {
			return errors.New("solver busy")
		}
		return nil
	})

	if _, err := svc.AddDOFOperation(ctx, domain.DOFOperation{
		Kind:   domain.DOFImposeDrivenDOF,
		Target: domain.GroupTarget("pair"),
		Params: map[string]any{"component": 1, "ct": 0.5},
	}); err == nil {
		t.Fatalf("expected the backend failure to surface")
	}
	after := fake.Attached()
	if len(after) != 2 || fake.Count("CreateAvatar") != 4 {
		t.Fatalf("expected both bodies rebuilt, got %d attached and %d created", len(after), fake.Count("CreateAvatar"))
	}
	for _, old := range before {
		for _, h := range after {
			if h == old {
				t.Fatalf("body %d kept its imposed state", old.ID)
			}
		}
	}

	fake.FailWhen("ImposeDrivenDOF", nil)
	if _, err := svc.AddDOFOperation(ctx, domain.DOFOperation{
		Kind:   domain.DOFTranslate,
		Target: domain.GroupTarget("pair"),
		Params: map[string]any{"dx": 1.0, "dy": 0.0},
	}); err != nil {
		t.Fatalf("rebuilt bodies should accept operations: %v", err)
	}
	moved := map[*backendtest.Handle]bool{}
	for _, c := range fake.Calls() {
		if c.Method == "Translate" {
			moved[c.Handle] = true
		}
	}
	for _, h := range after {
		if !moved[h] {
			t.Fatalf("rebuilt body %d was not targeted", h.ID)
		}
	}
}

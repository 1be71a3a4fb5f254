// Package expr evaluates numeric parameter expressions such as "2*pi*r" and
// assignment lists such as "young=1e9, nu=0.3". Expressions run in a tengo VM
// with only the math module importable.
package expr

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

const (
	resultVar = "__result"
	maxAllocs = 10000
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Evaluator evaluates expressions against a fixed set of variables.
type Evaluator struct {
	vars map[string]float64
}

// New returns an evaluator exposing vars plus pi and e.
func New(vars map[string]float64) *Evaluator {
	e := &Evaluator{vars: map[string]float64{"pi": math.Pi, "e": math.E}}
	for k, v := range vars {
		e.vars[k] = v
	}
	return e
}

// Vars returns the variable names visible to expressions, sorted.
func (e *Evaluator) Vars() []string {
	names := make([]string, 0, len(e.vars))
	for k := range e.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Number evaluates a single numeric expression.
func (e *Evaluator) Number(ctx context.Context, src string) (float64, error) {
	return e.eval(ctx, src, e.vars)
}

func (e *Evaluator) eval(ctx context.Context, src string, vars map[string]float64) (float64, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return 0, fmt.Errorf("empty expression")
	}
	script := tengo.NewScript([]byte(fmt.Sprintf("math := import(\"math\")\n%s := (%s)", resultVar, src)))
	script.SetImports(stdlib.GetModuleMap("math"))
	script.SetMaxAllocs(maxAllocs)
	for name, v := range vars {
		if !identifier.MatchString(name) || name == "math" {
			continue
		}
		if err := script.Add(name, v); err != nil {
			return 0, fmt.Errorf("bind %s: %w", name, err)
		}
	}
	compiled, err := script.RunContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", src, err)
	}
	switch v := compiled.Get(resultVar).Value().(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("evaluate %q: result is %T, not a number", src, v)
	}
}

// Assignments evaluates a comma separated "name=expr" list. Each assignment
// can use the names bound before it.
func (e *Evaluator) Assignments(ctx context.Context, src string) (map[string]float64, error) {
	out := map[string]float64{}
	scope := make(map[string]float64, len(e.vars))
	for k, v := range e.vars {
		scope[k] = v
	}
	for _, part := range splitTopLevel(src) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, body, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || !identifier.MatchString(name) {
			return nil, fmt.Errorf("expected name=expression, got %q", part)
		}
		v, err := e.eval(ctx, body, scope)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = v
		scope[name] = v
	}
	return out, nil
}

// splitTopLevel splits on commas outside parentheses and brackets.
func splitTopLevel(src string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range src {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, src[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, src[start:])
}

// Resolve evaluates the string values of params that parse as expressions
// and returns a copy. Strings that do not evaluate are kept verbatim.
func (e *Evaluator) Resolve(ctx context.Context, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			if n, err := e.Number(ctx, s); err == nil {
				out[k] = n
				continue
			}
		}
		out[k] = v
	}
	return out
}

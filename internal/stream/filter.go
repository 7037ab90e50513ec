package stream

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Filter wraps a compiled CEL program evaluated per point before delivery.
// When disabled (empty expression), Eval always returns true.
type Filter struct {
	prog    cel.Program
	expr    string
	enabled bool
}

// NewFilter compiles expr into a Filter. An empty or blank expression
// yields a disabled filter and no error.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.StringType)),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, expr: expr, enabled: true}, nil
}

// FilterFromConfig builds a Filter from a subscribe filters blob. Only the
// "expr" key is interpreted; everything else is opaque to the engine.
func FilterFromConfig(cfg map[string]any) (Filter, error) {
	if cfg == nil {
		return Filter{}, nil
	}
	raw, ok := cfg["expr"]
	if !ok {
		return Filter{}, nil
	}
	expr, ok := raw.(string)
	if !ok {
		return Filter{}, fmt.Errorf("filter expr must be a string, got %T", raw)
	}
	return NewFilter(expr)
}

// Enabled reports whether the filter carries a compiled expression.
func (f Filter) Enabled() bool { return f.enabled }

// Expr returns the source expression, empty when disabled.
func (f Filter) Expr() string { return f.expr }

// Apply returns the points of pts that match the filter. A disabled filter
// returns pts unchanged.
func (f Filter) Apply(pts []Point) []Point {
	if !f.enabled {
		return pts
	}
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		if f.Eval(p) {
			out = append(out, p)
		}
	}
	return out
}

// Eval evaluates the expression against a point. When disabled, returns
// true. Evaluation errors and non-bool results count as no-match.
func (f Filter) Eval(p Point) bool {
	if !f.enabled {
		return true
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"value":    p.Value,
		"ts_ms":    p.Timestamp.UnixMilli(),
		"metadata": metadata,
		"now_ms":   time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

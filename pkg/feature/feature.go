// Package feature implements the feature/flag decision tree and its
// evaluator: walking a flag's ordered constraints and returning the
// first matching value together with the index path taken.
package feature

import (
	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/rules"
	"github.com/lekkodev/sidecar/pkg/value"
)

// Type tags a flag's declared value type. Unspecified is accepted in
// place of any concrete type for backward compatibility (invariant I3).
type Type int

const (
	Unspecified Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeProto
	TypeJSON
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeProto:
		return "proto"
	case TypeJSON:
		return "json"
	default:
		return "unspecified"
	}
}

// Constraint is a node of the decision tree: a rule, an optional value,
// and an ordered list of children.
type Constraint struct {
	Rule     rules.Rule
	Value    *any
	Children []Constraint
}

// Flag (a.k.a. feature) is identified by (namespace, name) at the store
// layer; this type carries only what the tree walk needs.
type Flag struct {
	Name        string
	Type        Type
	Constraints []Constraint
	Default     *any
}

// Result is the outcome of a single evaluate() call: the resolved value
// and the path of child indices taken to reach it.
type Result struct {
	Value any
	Path  []int
}

// descendResult mirrors the three-way outcome of a sibling-list walk:
// matched=false means no sibling's rule was true. matched=true with a
// non-nil value means a resolved value was found somewhere along the
// branch taken. matched=true with a nil value means some sibling's rule
// was true but neither it nor anything beneath it carried a value — this
// propagates upward unresolved, so an enclosing constraint's own value
// can still take precedence ("bare passed branch").
type descendResult struct {
	matched bool
	value   *any
	path    []int
}

// Evaluate walks flag's top-level constraints in order against ctx and
// returns the resolved value together with the index path taken.
//
// A branch that matches without ever producing a value does not fall
// straight through to the flag's default: each enclosing constraint
// along that branch gets a chance to supply its own value first, from
// the innermost outward. Only once none of them has one does the flag's
// default apply, using the path of the outermost constraint that
// matched.
func Evaluate(flag Flag, ctx map[string]value.Context, ec rules.EvalContext) (Result, error) {
	res, err := walk(flag.Constraints, ctx, ec)
	if err != nil {
		return Result{}, err
	}
	if !res.matched {
		if flag.Default == nil {
			return Result{}, errs.Internalf("flag %q has no default value", flag.Name)
		}
		return Result{Value: *flag.Default, Path: []int{}}, nil
	}
	if res.value != nil {
		return Result{Value: *res.value, Path: res.path}, nil
	}
	if flag.Default == nil {
		return Result{}, errs.Internalf("flag %q matched a branch with no resolvable value and has no default", flag.Name)
	}
	return Result{Value: *flag.Default, Path: res.path}, nil
}

// walk evaluates one sibling list. It never substitutes the flag's
// default itself — that decision belongs solely to Evaluate, once every
// enclosing constraint along the matched branch has had a chance to
// supply its own value.
func walk(constraints []Constraint, ctx map[string]value.Context, ec rules.EvalContext) (descendResult, error) {
	for i, c := range constraints {
		ok, err := rules.Check(c.Rule, ctx, ec)
		if err != nil {
			return descendResult{}, err
		}
		if !ok {
			continue
		}

		child, err := walk(c.Children, ctx, ec)
		if err != nil {
			return descendResult{}, err
		}

		if child.matched && child.value != nil {
			return descendResult{
				matched: true,
				value:   child.value,
				path:    append([]int{i}, child.path...),
			}, nil
		}

		// Either no child matched, or a child matched but carried no
		// value of its own: stop descending. Take this constraint's
		// own value if present; otherwise propagate "matched, no
		// value yet" to our caller, discarding the deeper path.
		if c.Value != nil {
			return descendResult{matched: true, value: c.Value, path: []int{i}}, nil
		}
		return descendResult{matched: true, value: nil, path: []int{i}}, nil
	}
	return descendResult{matched: false}, nil
}

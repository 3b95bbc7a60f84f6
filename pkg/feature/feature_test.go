package feature

import (
	"testing"

	"github.com/lekkodev/sidecar/pkg/rules"
	"github.com/lekkodev/sidecar/pkg/types"
	"github.com/lekkodev/sidecar/pkg/value"
	"github.com/stretchr/testify/assert"
)

func ec() rules.EvalContext {
	return rules.EvalContext{Repo: types.RepositoryKey{Owner: "acme", Name: "flags"}, Namespace: "default"}
}

func ptr(v any) *any { return &v }

// TestEvaluateNoConstraintsReturnsDefault covers scenario 1: a flag with
// no constraints at all always resolves to its default with an empty
// path.
func TestEvaluateNoConstraintsReturnsDefault(t *testing.T) {
	flag := Flag{Name: "enabled", Type: TypeBool, Default: ptr(true)}

	res, err := Evaluate(flag, nil, ec())
	assert.NoError(t, err)
	assert.Equal(t, true, res.Value)
	assert.Equal(t, []int{}, res.Path)
}

// TestEvaluateTopLevelConstraintOwnValue covers scenario 2: a single
// top-level constraint with its own value, no children.
func TestEvaluateTopLevelConstraintOwnValue(t *testing.T) {
	cmp := rules.Scalar(value.NewInt(18))
	flag := Flag{
		Name:    "rollout_pct",
		Type:    TypeInt,
		Default: ptr(int64(0)),
		Constraints: []Constraint{
			{Rule: rules.Atom("age", rules.GreaterOrEqual, &cmp), Value: ptr(int64(1))},
		},
	}

	res, err := Evaluate(flag, map[string]value.Context{"age": value.NewInt(42)}, ec())
	assert.NoError(t, err)
	assert.Equal(t, int64(1), res.Value)
	assert.Equal(t, []int{0}, res.Path)

	res, err = Evaluate(flag, map[string]value.Context{"age": value.NewInt(17)}, ec())
	assert.NoError(t, err)
	assert.Equal(t, int64(0), res.Value)
	assert.Equal(t, []int{}, res.Path)
}

// TestEvaluateNestedPassThroughUsesParentValue covers scenario 3: a
// top-level constraint matches, its sole child also matches but carries
// no value of its own. The parent's own value is used, not the flag's
// default, and the path stops at the parent's index.
func TestEvaluateNestedPassThroughUsesParentValue(t *testing.T) {
	flag := Flag{
		Name:    "theme",
		Type:    TypeString,
		Default: ptr("flag-default"),
		Constraints: []Constraint{
			{
				Rule:  rules.BoolConst(true),
				Value: ptr("parent-value"),
				Children: []Constraint{
					{Rule: rules.BoolConst(true)},
				},
			},
		},
	}

	res, err := Evaluate(flag, nil, ec())
	assert.NoError(t, err)
	assert.Equal(t, "parent-value", res.Value)
	assert.Equal(t, []int{0}, res.Path)
}

// TestEvaluateNestedPassThroughWithNoParentValueUsesFlagDefault extends
// scenario 3: when no constraint along the matched branch carries a
// value at all, the flag's default applies, with the path truncated to
// the outermost matching constraint.
func TestEvaluateNestedPassThroughWithNoParentValueUsesFlagDefault(t *testing.T) {
	flag := Flag{
		Name:    "theme",
		Type:    TypeString,
		Default: ptr("flag-default"),
		Constraints: []Constraint{
			{
				Rule: rules.BoolConst(true),
				Children: []Constraint{
					{Rule: rules.BoolConst(true)},
				},
			},
		},
	}

	res, err := Evaluate(flag, nil, ec())
	assert.NoError(t, err)
	assert.Equal(t, "flag-default", res.Value)
	assert.Equal(t, []int{0}, res.Path)
}

// TestEvaluateChildMatchedWithValuePropagatesFullPath confirms that when
// a child actually resolves with its own value, the full index path is
// concatenated rather than truncated.
func TestEvaluateChildMatchedWithValuePropagatesFullPath(t *testing.T) {
	flag := Flag{
		Name:    "theme",
		Type:    TypeString,
		Default: ptr("flag-default"),
		Constraints: []Constraint{
			{
				Rule: rules.BoolConst(true),
				Children: []Constraint{
					{Rule: rules.BoolConst(false), Value: ptr("unreached")},
					{Rule: rules.BoolConst(true), Value: ptr("child-value")},
				},
			},
		},
	}

	res, err := Evaluate(flag, nil, ec())
	assert.NoError(t, err)
	assert.Equal(t, "child-value", res.Value)
	assert.Equal(t, []int{0, 1}, res.Path)
}

// TestEvaluateNoMatchingConstraintReturnsDefault covers the "no
// constraint matches" branch distinct from "no constraints at all".
func TestEvaluateNoMatchingConstraintReturnsDefault(t *testing.T) {
	flag := Flag{
		Name:    "enabled",
		Type:    TypeBool,
		Default: ptr(false),
		Constraints: []Constraint{
			{Rule: rules.BoolConst(false), Value: ptr(true)},
		},
	}

	res, err := Evaluate(flag, nil, ec())
	assert.NoError(t, err)
	assert.Equal(t, false, res.Value)
	assert.Equal(t, []int{}, res.Path)
}

func TestEvaluateNoDefaultAndNoMatchIsInternalError(t *testing.T) {
	flag := Flag{Name: "broken", Type: TypeBool}
	_, err := Evaluate(flag, nil, ec())
	assert.Error(t, err)
}

// TestEvaluateDeterministic covers property P3: repeated evaluation of
// the same flag against the same context yields the same result.
func TestEvaluateDeterministic(t *testing.T) {
	cmp := rules.Scalar(value.NewString("us"))
	flag := Flag{
		Name:    "geo",
		Type:    TypeBool,
		Default: ptr(false),
		Constraints: []Constraint{
			{Rule: rules.Atom("country", rules.Equals, &cmp), Value: ptr(true)},
		},
	}
	ctx := map[string]value.Context{"country": value.NewString("us")}

	a, errA := Evaluate(flag, ctx, ec())
	b, errB := Evaluate(flag, ctx, ec())
	assert.NoError(t, errA)
	assert.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestEvaluatePropagatesRuleError(t *testing.T) {
	flag := Flag{
		Name:    "broken",
		Type:    TypeBool,
		Default: ptr(false),
		Constraints: []Constraint{
			{Rule: rules.Atom("missing", rules.Equals, nil), Value: ptr(true)},
		},
	}
	_, err := Evaluate(flag, map[string]value.Context{"missing": value.NewInt(1)}, ec())
	assert.Error(t, err)
}

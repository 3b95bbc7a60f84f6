// Package rules implements the rule AST and its tree-walking evaluator:
// comparison, logical, set-membership, string predicates, and
// deterministic bucketing, against a per-request context map.
package rules

import (
	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/types"
	"github.com/lekkodev/sidecar/pkg/value"
)

// Op tags a comparison operator used by an Atom rule.
type Op int

const (
	Equals Op = iota
	NotEquals
	LessThan
	LessOrEqual
	GreaterThan
	GreaterOrEqual
	ContainedWithin
	StartsWith
	EndsWith
	Contains
	Present
)

// LogicalOp tags a Logical rule's combinator.
type LogicalOp int

const (
	And LogicalOp = iota
	Or
)

// Kind tags a Rule variant. Rule is a closed sum type; exactly one of the
// fields below is meaningful per Kind.
type Kind int

const (
	KindBoolConst Kind = iota
	KindNot
	KindLogical
	KindAtom
	KindCall
)

// CompareValue is the rule-side operand of an Atom: either a scalar
// context value or (for ContainedWithin) a list of scalars.
type CompareValue struct {
	Scalar value.Context
	List   []value.Context
	IsList bool
}

func Scalar(v value.Context) CompareValue { return CompareValue{Scalar: v} }
func List(vs ...value.Context) CompareValue {
	return CompareValue{List: vs, IsList: true}
}

// Rule is the sum-typed expression evaluated against a request context.
type Rule struct {
	kind Kind

	boolConst bool

	not *Rule

	logicalOp LogicalOp
	operands  []Rule

	atomKey   string
	atomOp    Op
	atomValue *CompareValue // nil for Present, and only Present may have a nil value

	callKey       string
	callThreshold int
}

func BoolConst(b bool) Rule { return Rule{kind: KindBoolConst, boolConst: b} }
func Not(r Rule) Rule       { return Rule{kind: KindNot, not: &r} }
func Logical(op LogicalOp, rs []Rule) Rule {
	return Rule{kind: KindLogical, logicalOp: op, operands: rs}
}
func Atom(key string, op Op, v *CompareValue) Rule {
	return Rule{kind: KindAtom, atomKey: key, atomOp: op, atomValue: v}
}

// Bucket builds a Call(Bucket(key, threshold)) rule. threshold is in
// [0, 100000], basis-points-with-three-decimal-places of traffic
// inclusion.
func Bucket(key string, threshold int) Rule {
	return Rule{kind: KindCall, callKey: key, callThreshold: threshold}
}

// EvalContext carries the identity fields needed for salted bucketing and
// is threaded unchanged through a single evaluate() call.
type EvalContext struct {
	Repo      types.RepositoryKey
	Namespace string
}

// Check evaluates ast against ctx, short-circuiting per spec and returning
// a precise error-kinded failure on malformed input.
func Check(ast Rule, ctx map[string]value.Context, ec EvalContext) (bool, error) {
	switch ast.kind {
	case KindBoolConst:
		return ast.boolConst, nil

	case KindNot:
		r, err := Check(*ast.not, ctx, ec)
		if err != nil {
			return false, err
		}
		return !r, nil

	case KindLogical:
		if len(ast.operands) == 0 {
			return false, errs.Internalf("logical rule has no operands")
		}
		switch ast.logicalOp {
		case And:
			for _, r := range ast.operands {
				ok, err := Check(r, ctx, ec)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
			return true, nil
		case Or:
			for _, r := range ast.operands {
				ok, err := Check(r, ctx, ec)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, errs.Internalf("unknown logical op %d", ast.logicalOp)
		}

	case KindAtom:
		return checkAtom(ast, ctx)

	case KindCall:
		return checkBucket(ast, ctx, ec)

	default:
		return false, errs.Internalf("unknown rule kind %d", ast.kind)
	}
}

func checkAtom(ast Rule, ctx map[string]value.Context) (bool, error) {
	if ast.atomOp == Present {
		_, ok := ctx[ast.atomKey]
		return ok, nil
	}

	if ast.atomValue == nil {
		return false, errs.Internalf("atom rule for key %q has no comparison value", ast.atomKey)
	}

	ctxVal, ok := ctx[ast.atomKey]
	if !ok {
		return false, nil
	}

	switch ast.atomOp {
	case Equals:
		return equalsCompare(ctxVal, *ast.atomValue)
	case NotEquals:
		eq, err := equalsCompare(ctxVal, *ast.atomValue)
		if err != nil {
			return false, err
		}
		return !eq, nil
	case LessThan, LessOrEqual, GreaterThan, GreaterOrEqual:
		return numCompare(ast.atomOp, ctxVal, *ast.atomValue)
	case ContainedWithin:
		return listCompare(ctxVal, *ast.atomValue)
	case StartsWith, EndsWith, Contains:
		return strCompare(ast.atomOp, ctxVal, *ast.atomValue)
	default:
		return false, errs.Internalf("unknown atom op %d", ast.atomOp)
	}
}

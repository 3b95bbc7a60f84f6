package rules

import (
	"strings"

	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/value"
)

// equalsCompare implements type-directed equality: numeric rule values
// may compare against either int or double context values (int widened
// to double), string compares against string, bool against bool. Any
// other pairing is a type mismatch.
func equalsCompare(ctxVal value.Context, cmp CompareValue) (bool, error) {
	if cmp.IsList {
		return false, errs.InvalidArgumentf("equals comparison value must be a scalar, not a list")
	}
	rv := cmp.Scalar

	if ctxB, ok := ctxVal.Bool(); ok {
		if rb, ok := rv.Bool(); ok {
			return ctxB == rb, nil
		}
		return false, errs.InvalidArgumentf("type mismatch: bool context value compared against non-bool rule value")
	}

	if ctxS, ok := ctxVal.String(); ok {
		if rs, ok := rv.String(); ok {
			return ctxS == rs, nil
		}
		return false, errs.InvalidArgumentf("type mismatch: string context value compared against non-string rule value")
	}

	if ctxD, ok := ctxVal.AsDouble(); ok {
		if rd, ok := rv.AsDouble(); ok {
			return ctxD == rd, nil
		}
		return false, errs.InvalidArgumentf("type mismatch: numeric context value compared against non-numeric rule value")
	}

	return false, errs.Internalf("unrecognised context value kind")
}

// numCompare implements <, <=, >, >=, requiring both sides numeric (int
// widened to double).
func numCompare(op Op, ctxVal value.Context, cmp CompareValue) (bool, error) {
	if cmp.IsList {
		return false, errs.InvalidArgumentf("numeric comparison value must be a scalar, not a list")
	}
	cd, ok := ctxVal.AsDouble()
	if !ok {
		return false, errs.InvalidArgumentf("type mismatch: numeric comparison requires a numeric context value")
	}
	rd, ok := cmp.Scalar.AsDouble()
	if !ok {
		return false, errs.InvalidArgumentf("type mismatch: numeric comparison requires a numeric rule value")
	}

	switch op {
	case LessThan:
		return cd < rd, nil
	case LessOrEqual:
		return cd <= rd, nil
	case GreaterThan:
		return cd > rd, nil
	case GreaterOrEqual:
		return cd >= rd, nil
	default:
		return false, errs.Internalf("unknown numeric op %d", op)
	}
}

// listCompare implements ContainedWithin: the rule value must be a list;
// succeeds iff some element equals-compares true against the context
// value.
func listCompare(ctxVal value.Context, cmp CompareValue) (bool, error) {
	if !cmp.IsList {
		return false, errs.InvalidArgumentf("contained_within comparison value must be a list")
	}
	for _, elem := range cmp.List {
		ok, err := equalsCompare(ctxVal, Scalar(elem))
		if err != nil {
			continue // a non-matching-type element simply doesn't match
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// strCompare implements StartsWith/EndsWith/Contains: both sides must be
// strings.
func strCompare(op Op, ctxVal value.Context, cmp CompareValue) (bool, error) {
	if cmp.IsList {
		return false, errs.InvalidArgumentf("string comparison value must be a scalar, not a list")
	}
	cs, ok := ctxVal.String()
	if !ok {
		return false, errs.InvalidArgumentf("type mismatch: string comparison requires a string context value")
	}
	rs, ok := cmp.Scalar.String()
	if !ok {
		return false, errs.InvalidArgumentf("type mismatch: string comparison requires a string rule value")
	}

	switch op {
	case StartsWith:
		return strings.HasPrefix(cs, rs), nil
	case EndsWith:
		return strings.HasSuffix(cs, rs), nil
	case Contains:
		return strings.Contains(cs, rs), nil
	default:
		return false, errs.Internalf("unknown string op %d", op)
	}
}

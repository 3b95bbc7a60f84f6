package loader

import (
	"encoding/json"

	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/feature"
	"github.com/lekkodev/sidecar/pkg/rules"
	"github.com/lekkodev/sidecar/pkg/value"
)

// The on-disk flag artifact format is a tagged JSON document mirroring
// the closed sum types in pkg/feature/pkg/rules/pkg/value: every node
// names its own kind rather than relying on JSON's structural typing, so
// a malformed artifact fails to decode instead of silently picking the
// wrong variant.

type flagArtifact struct {
	Type        string             `json:"type"`
	Default     *valueArtifact     `json:"default"`
	Constraints []constraintArtifact `json:"constraints"`
}

type constraintArtifact struct {
	Rule     ruleArtifact         `json:"rule"`
	Value    *valueArtifact       `json:"value,omitempty"`
	Children []constraintArtifact `json:"children,omitempty"`
}

type ruleArtifact struct {
	Kind      string              `json:"kind"`
	BoolConst bool                `json:"bool_const,omitempty"`
	Rule      *ruleArtifact       `json:"rule,omitempty"`
	Op        string              `json:"op,omitempty"`
	Operands  []ruleArtifact      `json:"operands,omitempty"`
	Key       string              `json:"key,omitempty"`
	Value     *compareValueArtifact `json:"value,omitempty"`
	Threshold int                 `json:"threshold,omitempty"`
}

type compareValueArtifact struct {
	Scalar *valueArtifact  `json:"scalar,omitempty"`
	List   []valueArtifact `json:"list,omitempty"`
}

type valueArtifact struct {
	Kind   string          `json:"kind"`
	Bool   bool            `json:"bool,omitempty"`
	Int    int64           `json:"int,omitempty"`
	Double float64         `json:"double,omitempty"`
	String string          `json:"string,omitempty"`
	JSON   json.RawMessage `json:"json,omitempty"`
	// Bytes carries a raw proto-encoded value for TypeProto flags.
	// encoding/json marshals/unmarshals []byte as base64 automatically.
	Bytes []byte `json:"bytes,omitempty"`
}

// DecodeFlagArtifact parses the raw bytes read from a *.proto.bin file
// into a feature.Flag, named after the flag's file name.
func DecodeFlagArtifact(name string, raw []byte) (feature.Flag, error) {
	var fa flagArtifact
	if err := json.Unmarshal(raw, &fa); err != nil {
		return feature.Flag{}, errs.InternalWrap(err, "loader: decoding flag artifact %q", name)
	}

	ft, err := decodeType(fa.Type)
	if err != nil {
		return feature.Flag{}, err
	}

	var def *any
	if fa.Default != nil {
		v, err := decodeNativeValue(*fa.Default)
		if err != nil {
			return feature.Flag{}, err
		}
		def = &v
	}

	constraints, err := decodeConstraints(fa.Constraints)
	if err != nil {
		return feature.Flag{}, err
	}

	return feature.Flag{Name: name, Type: ft, Default: def, Constraints: constraints}, nil
}

func decodeType(s string) (feature.Type, error) {
	switch s {
	case "", "unspecified":
		return feature.Unspecified, nil
	case "bool":
		return feature.TypeBool, nil
	case "int":
		return feature.TypeInt, nil
	case "float":
		return feature.TypeFloat, nil
	case "string":
		return feature.TypeString, nil
	case "proto":
		return feature.TypeProto, nil
	case "json":
		return feature.TypeJSON, nil
	default:
		return feature.Unspecified, errs.Internalf("loader: unknown flag type %q", s)
	}
}

func decodeConstraints(cs []constraintArtifact) ([]feature.Constraint, error) {
	out := make([]feature.Constraint, 0, len(cs))
	for _, c := range cs {
		rule, err := decodeRule(c.Rule)
		if err != nil {
			return nil, err
		}
		var val *any
		if c.Value != nil {
			v, err := decodeNativeValue(*c.Value)
			if err != nil {
				return nil, err
			}
			val = &v
		}
		children, err := decodeConstraints(c.Children)
		if err != nil {
			return nil, err
		}
		out = append(out, feature.Constraint{Rule: rule, Value: val, Children: children})
	}
	return out, nil
}

func decodeRule(ra ruleArtifact) (rules.Rule, error) {
	switch ra.Kind {
	case "bool_const":
		return rules.BoolConst(ra.BoolConst), nil
	case "not":
		if ra.Rule == nil {
			return rules.Rule{}, errs.Internalf("loader: not-rule missing operand")
		}
		inner, err := decodeRule(*ra.Rule)
		if err != nil {
			return rules.Rule{}, err
		}
		return rules.Not(inner), nil
	case "and", "or":
		op := rules.And
		if ra.Kind == "or" {
			op = rules.Or
		}
		operands := make([]rules.Rule, 0, len(ra.Operands))
		for _, o := range ra.Operands {
			r, err := decodeRule(o)
			if err != nil {
				return rules.Rule{}, err
			}
			operands = append(operands, r)
		}
		return rules.Logical(op, operands), nil
	case "atom":
		op, err := decodeOp(ra.Op)
		if err != nil {
			return rules.Rule{}, err
		}
		if op == rules.Present {
			return rules.Atom(ra.Key, op, nil), nil
		}
		if ra.Value == nil {
			return rules.Rule{}, errs.Internalf("loader: atom rule for key %q missing comparison value", ra.Key)
		}
		cmp, err := decodeCompareValue(*ra.Value)
		if err != nil {
			return rules.Rule{}, err
		}
		return rules.Atom(ra.Key, op, &cmp), nil
	case "bucket":
		return rules.Bucket(ra.Key, ra.Threshold), nil
	default:
		return rules.Rule{}, errs.Internalf("loader: unknown rule kind %q", ra.Kind)
	}
}

func decodeOp(s string) (rules.Op, error) {
	switch s {
	case "equals":
		return rules.Equals, nil
	case "not_equals":
		return rules.NotEquals, nil
	case "less_than":
		return rules.LessThan, nil
	case "less_or_equal":
		return rules.LessOrEqual, nil
	case "greater_than":
		return rules.GreaterThan, nil
	case "greater_or_equal":
		return rules.GreaterOrEqual, nil
	case "contained_within":
		return rules.ContainedWithin, nil
	case "starts_with":
		return rules.StartsWith, nil
	case "ends_with":
		return rules.EndsWith, nil
	case "contains":
		return rules.Contains, nil
	case "present":
		return rules.Present, nil
	default:
		return 0, errs.Internalf("loader: unknown comparison op %q", s)
	}
}

func decodeCompareValue(cva compareValueArtifact) (rules.CompareValue, error) {
	if len(cva.List) > 0 {
		vs := make([]value.Context, 0, len(cva.List))
		for _, va := range cva.List {
			v, err := decodeContextValue(va)
			if err != nil {
				return rules.CompareValue{}, err
			}
			vs = append(vs, v)
		}
		return rules.List(vs...), nil
	}
	if cva.Scalar == nil {
		return rules.CompareValue{}, errs.Internalf("loader: comparison value has neither scalar nor list")
	}
	v, err := decodeContextValue(*cva.Scalar)
	if err != nil {
		return rules.CompareValue{}, err
	}
	return rules.Scalar(v), nil
}

func decodeContextValue(va valueArtifact) (value.Context, error) {
	switch va.Kind {
	case "bool":
		return value.NewBool(va.Bool), nil
	case "int":
		return value.NewInt(va.Int), nil
	case "double":
		return value.NewDouble(va.Double), nil
	case "string":
		return value.NewString(va.String), nil
	default:
		return value.Context{}, errs.Internalf("loader: unsupported context value kind %q", va.Kind)
	}
}

// decodeNativeValue decodes a flag or constraint's own value, which may
// additionally be a JSON-typed structure for TypeJSON flags.
func decodeNativeValue(va valueArtifact) (any, error) {
	switch va.Kind {
	case "bool":
		return va.Bool, nil
	case "int":
		return int64(va.Int), nil
	case "double":
		return va.Double, nil
	case "string":
		return va.String, nil
	case "json":
		v, err := value.DecodeJSON(va.JSON)
		if err != nil {
			return nil, errs.InternalWrap(err, "loader: decoding json-typed value")
		}
		return v, nil
	case "bytes":
		return va.Bytes, nil
	default:
		return nil, errs.Internalf("loader: unsupported value kind %q", va.Kind)
	}
}

package value

import "github.com/lekkodev/sidecar/pkg/errs"

// ContextWire is the tagged JSON wire form of a Context, used by the
// host-facing RPC surface to decode a request's context map.
type ContextWire struct {
	Kind   string  `json:"kind"`
	Bool   bool    `json:"bool,omitempty"`
	Int    int64   `json:"int,omitempty"`
	Double float64 `json:"double,omitempty"`
	String string  `json:"string,omitempty"`
}

// ToWire converts c to its tagged JSON wire form.
func (c Context) ToWire() ContextWire {
	switch c.kind {
	case Bool:
		return ContextWire{Kind: "bool", Bool: c.b}
	case Int:
		return ContextWire{Kind: "int", Int: c.i}
	case Double:
		return ContextWire{Kind: "double", Double: c.d}
	case String:
		return ContextWire{Kind: "string", String: c.s}
	default:
		return ContextWire{}
	}
}

// ContextFromWire decodes w into a Context.
func ContextFromWire(w ContextWire) (Context, error) {
	switch w.Kind {
	case "bool":
		return NewBool(w.Bool), nil
	case "int":
		return NewInt(w.Int), nil
	case "double":
		return NewDouble(w.Double), nil
	case "string":
		return NewString(w.String), nil
	default:
		return Context{}, errs.InvalidArgumentf("value: unknown context value kind %q", w.Kind)
	}
}

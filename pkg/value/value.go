// Package value defines the two closed sum types the evaluation core
// operates over: the context value supplied per request (bool, int64,
// double, string) and the JSON-serialisable result value used by GetJson.
package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind tags a Context variant.
type Kind int

const (
	Bool Kind = iota
	Int
	Double
	String
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Double:
		return "float"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

// Context is a closed sum over {bool, int64, double, string}, the four
// kinds a request's context map may hold per key.
type Context struct {
	kind Kind
	b    bool
	i    int64
	d    float64
	s    string
}

func NewBool(b bool) Context     { return Context{kind: Bool, b: b} }
func NewInt(i int64) Context     { return Context{kind: Int, i: i} }
func NewDouble(d float64) Context { return Context{kind: Double, d: d} }
func NewString(s string) Context { return Context{kind: String, s: s} }

func (c Context) Kind() Kind { return c.kind }

func (c Context) Bool() (bool, bool)       { return c.b, c.kind == Bool }
func (c Context) Int() (int64, bool)       { return c.i, c.kind == Int }
func (c Context) Double() (float64, bool)  { return c.d, c.kind == Double }
func (c Context) String() (string, bool)   { return c.s, c.kind == String }

// AsDouble widens numeric kinds (Int, Double) to float64, matching the
// rule evaluator's int-to-double widening rule. The second return is
// false for non-numeric kinds.
func (c Context) AsDouble() (float64, bool) {
	switch c.kind {
	case Int:
		return float64(c.i), true
	case Double:
		return c.d, true
	default:
		return 0, false
	}
}

// Bytes extracts the byte representation used for bucketing: UTF-8 bytes
// for strings, 8-byte big-endian for ints, 8-byte big-endian raw bits for
// doubles. Booleans are unsupported and return ok=false.
func (c Context) Bytes() (b []byte, ok bool) {
	switch c.kind {
	case String:
		return []byte(c.s), true
	case Int:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(c.i))
		return buf, true
	case Double:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(c.d))
		return buf, true
	default:
		return nil, false
	}
}

func (c Context) GoString() string {
	switch c.kind {
	case Bool:
		return fmt.Sprintf("bool(%v)", c.b)
	case Int:
		return fmt.Sprintf("int(%d)", c.i)
	case Double:
		return fmt.Sprintf("double(%v)", c.d)
	case String:
		return fmt.Sprintf("string(%q)", c.s)
	default:
		return "unknown"
	}
}

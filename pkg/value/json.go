package value

import (
	"bytes"
	"encoding/json"

	"github.com/elliotchance/orderedmap"
	"github.com/lekkodev/sidecar/pkg/errs"
)

// JSONKind tags a JSON variant.
type JSONKind int

const (
	JSONNull JSONKind = iota
	JSONBool
	JSONNumber
	JSONString
	JSONStruct
	JSONList
)

// JSON is the closed sum type backing GetJson results: null, bool,
// number (double precision), string, and the two containers (struct,
// list). Struct field order is preserved via orderedmap so that
// serialise-then-parse round-trips are deterministic (spec property P5).
type JSON struct {
	kind   JSONKind
	b      bool
	n      float64
	s      string
	fields *orderedmap.OrderedMap
	items  []JSON
}

func JSONNullValue() JSON            { return JSON{kind: JSONNull} }
func JSONBoolValue(b bool) JSON      { return JSON{kind: JSONBool, b: b} }
func JSONNumberValue(n float64) JSON { return JSON{kind: JSONNumber, n: n} }
func JSONStringValue(s string) JSON  { return JSON{kind: JSONString, s: s} }

// NewJSONStruct returns an empty ordered struct container; callers append
// fields with Set in the order they should be iterated and serialised.
func NewJSONStruct() JSON {
	return JSON{kind: JSONStruct, fields: orderedmap.NewOrderedMap()}
}

// Set appends or updates a field on a JSONStruct value, preserving
// first-insertion order for new keys.
func (v JSON) Set(key string, field JSON) {
	v.fields.Set(key, field)
}

// JSONStructValue wraps an already-ordered field map.
func JSONStructValue(fields *orderedmap.OrderedMap) JSON {
	return JSON{kind: JSONStruct, fields: fields}
}

// JSONListValue wraps an ordered slice of elements.
func JSONListValue(items []JSON) JSON {
	return JSON{kind: JSONList, items: items}
}

func (v JSON) Kind() JSONKind { return v.kind }

// MarshalJSON implements json.Marshaler, writing struct fields in
// insertion order rather than Go's default (alphabetised, via
// encoding/json's map handling) order.
func (v JSON) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case JSONNull:
		return []byte("null"), nil
	case JSONBool:
		return json.Marshal(v.b)
	case JSONNumber:
		return json.Marshal(v.n)
	case JSONString:
		return json.Marshal(v.s)
	case JSONList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			enc, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(enc)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case JSONStruct:
		var buf bytes.Buffer
		buf.WriteByte('{')
		if v.fields != nil {
			i := 0
			for el := v.fields.Front(); el != nil; el = el.Next() {
				fieldVal, ok := el.Value.(JSON)
				if !ok {
					return nil, errs.Internalf("value: struct field %q is not a JSON value", el.Key)
				}
				if i > 0 {
					buf.WriteByte(',')
				}
				key, err := json.Marshal(el.Key)
				if err != nil {
					return nil, err
				}
				val, err := fieldVal.MarshalJSON()
				if err != nil {
					return nil, err
				}
				buf.Write(key)
				buf.WriteByte(':')
				buf.Write(val)
				i++
			}
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, errs.Internalf("value: unknown JSON kind %d", v.kind)
	}
}

// DecodeJSON parses raw into a JSON value, preserving object field
// order by walking encoding/json's token stream directly rather than
// unmarshaling into a map (which would alphabetise keys).
func DecodeJSON(raw []byte) (JSON, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return JSON{}, err
	}
	if dec.More() {
		return JSON{}, errs.InvalidArgumentf("value: trailing data after JSON value")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (JSON, error) {
	tok, err := dec.Token()
	if err != nil {
		return JSON{}, err
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (JSON, error) {
	switch t := tok.(type) {
	case nil:
		return JSONNullValue(), nil
	case bool:
		return JSONBoolValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return JSON{}, errs.InvalidArgumentWrap(err, "value: decoding JSON number %q", t)
		}
		return JSONNumberValue(f), nil
	case string:
		return JSONStringValue(t), nil
	case json.Delim:
		switch t {
		case '{':
			obj := NewJSONStruct()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return JSON{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return JSON{}, errs.Internalf("value: object key %v is not a string", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return JSON{}, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return JSON{}, err
			}
			return obj, nil
		case '[':
			var items []JSON
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return JSON{}, err
				}
				items = append(items, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return JSON{}, err
			}
			return JSONListValue(items), nil
		}
	}
	return JSON{}, errs.Internalf("value: unexpected JSON token %v", tok)
}

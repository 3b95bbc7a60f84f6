package value

import (
	"encoding/json"
	"testing"
)

func TestJSONMarshalScalars(t *testing.T) {
	cases := []struct {
		v    JSON
		want string
	}{
		{JSONNullValue(), "null"},
		{JSONBoolValue(true), "true"},
		{JSONNumberValue(3.5), "3.5"},
		{JSONStringValue("hi"), `"hi"`},
	}
	for _, c := range cases {
		got, err := c.v.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON: %v", err)
		}
		if string(got) != c.want {
			t.Errorf("got %s want %s", got, c.want)
		}
	}
}

func TestJSONStructPreservesFieldOrder(t *testing.T) {
	s := NewJSONStruct()
	s.Set("z", JSONNumberValue(1))
	s.Set("a", JSONNumberValue(2))
	s.Set("m", JSONNumberValue(3))

	got, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"z":1,"a":2,"m":3}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestJSONListOrderPreserved(t *testing.T) {
	l := JSONListValue([]JSON{JSONNumberValue(1), JSONStringValue("two"), JSONBoolValue(false)})
	got, err := l.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `[1,"two",false]`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

// TestJSONRoundTrip exercises property P5: serialise-then-parse yields a
// value equivalent to the original for the four scalar kinds plus the two
// containers.
func TestJSONRoundTrip(t *testing.T) {
	s := NewJSONStruct()
	s.Set("name", JSONStringValue("flag"))
	s.Set("enabled", JSONBoolValue(true))
	s.Set("weight", JSONNumberValue(0.5))
	s.Set("tags", JSONListValue([]JSON{JSONStringValue("a"), JSONStringValue("b")}))
	s.Set("nothing", JSONNullValue())

	encoded, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded["name"] != "flag" {
		t.Errorf("name = %v", decoded["name"])
	}
	if decoded["enabled"] != true {
		t.Errorf("enabled = %v", decoded["enabled"])
	}
	if decoded["weight"] != 0.5 {
		t.Errorf("weight = %v", decoded["weight"])
	}
	if decoded["nothing"] != nil {
		t.Errorf("nothing = %v", decoded["nothing"])
	}
	tags, ok := decoded["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("tags = %v", decoded["tags"])
	}
}

func TestDecodeJSONPreservesFieldOrderFromBytes(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"z":1,"a":2,"m":3}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	got, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"z":1,"a":2,"m":3}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestDecodeJSONNestedContainers(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"list":[1,"x",true,null],"nested":{"inner":2.5}}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	got, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"list":[1,"x",true,null],"nested":{"inner":2.5}}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestDecodeJSONScalars(t *testing.T) {
	cases := map[string]string{
		`true`: "true",
		`null`: "null",
		`"hi"`: `"hi"`,
		`3.5`:  "3.5",
	}
	for in, want := range cases {
		v, err := DecodeJSON([]byte(in))
		if err != nil {
			t.Fatalf("DecodeJSON(%s): %v", in, err)
		}
		got, err := v.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON: %v", err)
		}
		if string(got) != want {
			t.Errorf("DecodeJSON(%s) = %s, want %s", in, got, want)
		}
	}
}

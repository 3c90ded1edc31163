package directlink

import "encoding/json"

// Kind identifies the shape of a Value.
type Kind int

// Supported value shapes. The zero Kind is Invalid, which covers both absent
// values and shapes a backend is not allowed to return (numbers, booleans).
const (
	KindInvalid Kind = iota
	KindMapping
	KindText
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindMapping:
		return "mapping"
	case KindText:
		return "text"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is the raw, weakly-typed result returned by a resolution backend. It
// is a closed union: exactly one of the mapping, text or list fields is
// meaningful, as indicated by Kind.
type Value struct {
	kind    Kind
	mapping map[string]any
	text    string
	list    []Value
}

// Mapping wraps a string-keyed mapping.
func Mapping(m map[string]any) Value {
	return Value{kind: KindMapping, mapping: m}
}

// Text wraps a bare string.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// List wraps an ordered list of values.
func List(vs ...Value) Value {
	return Value{kind: KindList, list: vs}
}

// FromAny converts a decoded JSON document (as produced by encoding/json into
// an interface{}) into a Value. Unsupported shapes yield an Invalid value.
func FromAny(v any) Value {
	switch t := v.(type) {
	case map[string]any:
		return Mapping(t)
	case string:
		return Text(t)
	case []any:
		vs := make([]Value, len(t))
		for i, elem := range t {
			vs[i] = FromAny(elem)
		}
		return List(vs...)
	default:
		return Value{}
	}
}

// Kind returns the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// AsMapping returns the wrapped mapping, if v is a Mapping.
func (v Value) AsMapping() (map[string]any, bool) {
	return v.mapping, v.kind == KindMapping
}

// AsText returns the wrapped string, if v is Text.
func (v Value) AsText() (string, bool) {
	return v.text, v.kind == KindText
}

// AsList returns the wrapped values, if v is a List.
func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// MarshalJSON renders the value back to the JSON shape it was built from.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindMapping:
		return json.Marshal(v.mapping)
	case KindText:
		return json.Marshal(v.text)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

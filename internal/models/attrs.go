package models

// AttrValue is a scalar variant stored in an attribute bag (raw_metadata,
// play context). It mirrors the dynamic attribute dicts the source system
// passes around, but keeps the set of representable shapes closed so it
// round-trips through JSON without reflection tricks.
type AttrValue struct {
	Str  string  `json:"str,omitempty"`
	Int  int64   `json:"int,omitempty"`
	Flt  float64 `json:"flt,omitempty"`
	Bool bool    `json:"bool,omitempty"`
	Kind AttrKind `json:"kind"`
}

// AttrKind discriminates which field of AttrValue is populated.
type AttrKind string

const (
	AttrKindString AttrKind = "string"
	AttrKindInt    AttrKind = "int"
	AttrKindFloat  AttrKind = "float"
	AttrKindBool   AttrKind = "bool"
)

func StrAttr(s string) AttrValue  { return AttrValue{Kind: AttrKindString, Str: s} }
func IntAttr(i int64) AttrValue   { return AttrValue{Kind: AttrKindInt, Int: i} }
func FloatAttr(f float64) AttrValue { return AttrValue{Kind: AttrKindFloat, Flt: f} }
func BoolAttr(b bool) AttrValue   { return AttrValue{Kind: AttrKindBool, Bool: b} }

// AttrBag is a small enumerated-key attribute bag, e.g. raw_metadata or a
// play's preserved context. Keys are plain strings (service field names);
// values are one of the scalar AttrValue variants.
type AttrBag map[string]AttrValue

// String returns the string value for key, or "" if absent or not a string.
func (b AttrBag) String(key string) string {
	if v, ok := b[key]; ok && v.Kind == AttrKindString {
		return v.Str
	}
	return ""
}

// Int returns the int value for key, or 0 if absent or not an int.
func (b AttrBag) Int(key string) int64 {
	if v, ok := b[key]; ok && v.Kind == AttrKindInt {
		return v.Int
	}
	return 0
}

// Bool returns the bool value for key, or false if absent or not a bool.
func (b AttrBag) Bool(key string) bool {
	if v, ok := b[key]; ok && v.Kind == AttrKindBool {
		return v.Bool
	}
	return false
}

// Float returns the float value for key, or 0 if absent or not a float.
func (b AttrBag) Float(key string) float64 {
	if v, ok := b[key]; ok && v.Kind == AttrKindFloat {
		return v.Flt
	}
	return 0
}

package tweak

import (
	"fmt"
	"slices"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat32
	KindFloat64
	KindColor
	KindString
	KindStringOption
)

var kinds = []Kind{KindBool, KindInt, KindFloat32, KindFloat64, KindColor, KindString, KindStringOption}

// Kinds lists every valid kind in the fixed order used by codecs.
func Kinds() []Kind {
	return slices.Clone(kinds)
}

// Tag returns the stable on-disk name of the kind. These names are shared
// with archives written by older builds and must never be renamed.
func (k Kind) Tag() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat32:
		return "cgfloat"
	case KindFloat64:
		return "double"
	case KindColor:
		return "uicolor"
	case KindString:
		return "string"
	case KindStringOption:
		return "stringlist"
	default:
		return ""
	}
}

func (k Kind) String() string {
	if t := k.Tag(); t != "" {
		return t
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Numeric reports whether values of this kind can be clipped.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat32 || k == KindFloat64
}

// KindFromTag is the inverse of Kind.Tag.
func KindFromTag(tag string) (Kind, bool) {
	for _, k := range kinds {
		if k.Tag() == tag {
			return k, true
		}
	}
	return KindInvalid, false
}

// Color is an RGBA color with channels in [0, 1].
type Color struct {
	R, G, B, A float32
}

// Value holds exactly one tweakable value. The kind is set by the
// constructor and is never derived from the payload.
type Value struct {
	kind    Kind
	b       bool
	i       int64
	f32     float32
	f64     float64
	color   Color
	s       string
	allowed []string
}

func Bool(v bool) Value { return Value{kind: KindBool, b: v} }
func Int(v int64) Value { return Value{kind: KindInt, i: v} }
func Float32(v float32) Value { return Value{kind: KindFloat32, f32: v} }
func Float64(v float64) Value { return Value{kind: KindFloat64, f64: v} }
func ColorValue(c Color) Value { return Value{kind: KindColor, color: c} }
func String(v string) Value { return Value{kind: KindString, s: v} }

// StringOption returns a string option value. The allowed list is copied.
func StringOption(selected string, allowed []string) Value {
	return Value{kind: KindStringOption, s: selected, allowed: slices.Clone(allowed)}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a variant. The zero Value does not.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// The accessors below return the payload and whether v is of that kind.

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }
func (v Value) AsFloat32() (float32, bool) { return v.f32, v.kind == KindFloat32 }
func (v Value) AsFloat64() (float64, bool) { return v.f64, v.kind == KindFloat64 }
func (v Value) AsColor() (Color, bool) { return v.color, v.kind == KindColor }

// AsString returns the string payload of String and StringOption values.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString || v.kind == KindStringOption
}

// Allowed returns a copy of the allowed options of a StringOption.
func (v Value) Allowed() []string {
	if v.kind != KindStringOption {
		return nil
	}
	return slices.Clone(v.allowed)
}

// Equal reports whether both values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat32:
		return v.f32 == o.f32
	case KindFloat64:
		return v.f64 == o.f64
	case KindColor:
		return v.color == o.color
	case KindString:
		return v.s == o.s
	case KindStringOption:
		return v.s == o.s && slices.Equal(v.allowed, o.allowed)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat32:
		return fmt.Sprintf("%g", v.f32)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f64)
	case KindColor:
		return fmt.Sprintf("rgba(%g, %g, %g, %g)", v.color.R, v.color.G, v.color.B, v.color.A)
	case KindString, KindStringOption:
		return v.s
	default:
		return "<invalid>"
	}
}

// Interface returns the payload as a plain Go value, suitable for generic
// encoders. Colors become a map with r, g, b, a keys.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat32:
		return v.f32
	case KindFloat64:
		return v.f64
	case KindColor:
		return map[string]float32{"r": v.color.R, "g": v.color.G, "b": v.color.B, "a": v.color.A}
	case KindString, KindStringOption:
		return v.s
	default:
		return nil
	}
}

package tweak

import "cmp"

// Clamp bounds v into [lo, hi] as max(lo, min(v, hi)).
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

// Clip bounds a numeric value into [lo, hi]. Bounds must be of the same kind
// as v; non-numeric values and mismatched bounds are returned unchanged.
// lo > hi is rejected by Descriptor.Validate and yields lo here.
func (v Value) Clip(lo, hi Value) Value {
	if lo.kind != v.kind || hi.kind != v.kind {
		return v
	}
	switch v.kind {
	case KindInt:
		return Int(Clamp(v.i, lo.i, hi.i))
	case KindFloat32:
		return Float32(Clamp(v.f32, lo.f32, hi.f32))
	case KindFloat64:
		return Float64(Clamp(v.f64, lo.f64, hi.f64))
	default:
		return v
	}
}

// less orders two numeric values of the same kind.
func less(a, b Value) bool {
	switch a.kind {
	case KindInt:
		return a.i < b.i
	case KindFloat32:
		return a.f32 < b.f32
	case KindFloat64:
		return a.f64 < b.f64
	}
	return false
}

package tweak

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a value of the given kind from its command-line form.
// Colors are written as "#RRGGBB", "#RRGGBBAA" or "r,g,b,a" with channels
// in [0, 1].
func Parse(kind Kind, s string) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("parsing %s: %w", kind, err)
		}
		return Bool(b), nil
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parsing %s: %w", kind, err)
		}
		return Int(i), nil
	case KindFloat32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, fmt.Errorf("parsing %s: %w", kind, err)
		}
		return Float32(float32(f)), nil
	case KindFloat64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parsing %s: %w", kind, err)
		}
		return Float64(f), nil
	case KindColor:
		c, err := parseColor(s)
		if err != nil {
			return Value{}, fmt.Errorf("parsing %s: %w", kind, err)
		}
		return ColorValue(c), nil
	case KindString:
		return String(s), nil
	case KindStringOption:
		return StringOption(s, nil), nil
	default:
		return Value{}, fmt.Errorf("parsing %q: %w", s, ErrKindMismatch)
	}
}

func parseColor(s string) (Color, error) {
	if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) == 6 {
			hex += "ff"
		}
		if len(hex) != 8 {
			return Color{}, fmt.Errorf("hex color %q must have 6 or 8 digits", s)
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Color{}, err
		}
		ch := func(shift uint) float32 { return float32((n>>shift)&0xff) / 255 }
		return Color{R: ch(24), G: ch(16), B: ch(8), A: ch(0)}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Color{}, fmt.Errorf("color %q must have four channels", s)
	}
	var ch [4]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return Color{}, err
		}
		ch[i] = float32(f)
	}
	return Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

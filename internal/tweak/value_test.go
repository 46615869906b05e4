package tweak

import (
	"errors"
	"math"
	"testing"
)

func TestKindIsFixedByConstructor(t *testing.T) {
	tests := []struct {
		v    Value
		want Kind
	}{
		{Bool(true), KindBool},
		{Int(1), KindInt},
		{Float32(1), KindFloat32},
		{Float64(1), KindFloat64},
		{ColorValue(Color{1, 1, 1, 1}), KindColor},
		{String("1"), KindString},
		{StringOption("1", []string{"1", "2"}), KindStringOption},
		{Value{}, KindInvalid},
	}
	for _, tt := range tests {
		if got := tt.v.Kind(); got != tt.want {
			t.Errorf("%v.Kind() = %s, want %s", tt.v, got, tt.want)
		}
	}
}

func TestBoolAndIntAreDistinct(t *testing.T) {
	if Bool(true).Equal(Int(1)) {
		t.Error("Bool(true) must not equal Int(1)")
	}
	if Bool(false).Equal(Int(0)) {
		t.Error("Bool(false) must not equal Int(0)")
	}
	if Float32(1).Equal(Float64(1)) {
		t.Error("Float32(1) must not equal Float64(1)")
	}
}

func TestTagsAreStable(t *testing.T) {
	want := map[Kind]string{
		KindBool:         "boolean",
		KindInt:          "integer",
		KindFloat32:      "cgfloat",
		KindFloat64:      "double",
		KindColor:        "uicolor",
		KindString:       "string",
		KindStringOption: "stringlist",
	}
	for k, tag := range want {
		if got := k.Tag(); got != tag {
			t.Errorf("%d.Tag() = %q, want %q", k, got, tag)
		}
		back, ok := KindFromTag(tag)
		if !ok || back != k {
			t.Errorf("KindFromTag(%q) = %v, %v", tag, back, ok)
		}
	}
	if _, ok := KindFromTag("Boolean"); ok {
		t.Error("tags must be case-sensitive")
	}
}

func TestKindsReturnsCopy(t *testing.T) {
	ks := Kinds()
	if len(ks) != 7 || ks[0] != KindBool || ks[6] != KindStringOption {
		t.Fatalf("Kinds() = %v", ks)
	}
	ks[0] = KindInvalid
	if Kinds()[0] != KindBool {
		t.Error("mutating the result of Kinds changed the codec order")
	}
}

func TestStringOptionCopiesAllowed(t *testing.T) {
	allowed := []string{"a", "b"}
	v := StringOption("a", allowed)
	allowed[0] = "z"
	if got := v.Allowed(); got[0] != "a" {
		t.Errorf("Allowed()[0] = %q, want %q", got[0], "a")
	}
	if !v.Equal(StringOption("a", []string{"a", "b"})) {
		t.Error("equal string options compare unequal")
	}
	if v.Equal(StringOption("a", nil)) {
		t.Error("string options with different allowed lists compare equal")
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		name   string
		v      Value
		lo, hi Value
		want   Value
	}{
		{"int above", Int(11), Int(0), Int(10), Int(10)},
		{"int inside", Int(11), Int(0), Int(20), Int(11)},
		{"int below", Int(-3), Int(0), Int(10), Int(0)},
		{"float32", Float32(1.5), Float32(0), Float32(1), Float32(1)},
		{"float64", Float64(-0.5), Float64(0), Float64(1), Float64(0)},
		{"bool ignored", Bool(true), Int(0), Int(0), Bool(true)},
		{"string ignored", String("x"), String("a"), String("b"), String("x")},
		{"mismatched bounds", Int(50), Float64(0), Float64(1), Int(50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Clip(tt.lo, tt.hi); !got.Equal(tt.want) {
				t.Errorf("Clip = %v (%s), want %v (%s)", got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestClipIdempotent(t *testing.T) {
	ints := []int64{math.MinInt64, -100, -1, 0, 1, 7, 100, math.MaxInt64}
	for _, v := range ints {
		for _, lo := range ints {
			for _, hi := range ints {
				if lo > hi {
					continue
				}
				once := Int(v).Clip(Int(lo), Int(hi))
				twice := once.Clip(Int(lo), Int(hi))
				if !once.Equal(twice) {
					t.Fatalf("clip(%d,[%d,%d]) not idempotent: %v then %v", v, lo, hi, once, twice)
				}
			}
		}
	}

	floats := []float64{math.Inf(-1), -2.5, 0, 0.1, 3, math.Inf(1)}
	for _, v := range floats {
		for _, lo := range floats {
			for _, hi := range floats {
				if lo > hi {
					continue
				}
				once := Float64(v).Clip(Float64(lo), Float64(hi))
				if twice := once.Clip(Float64(lo), Float64(hi)); !once.Equal(twice) {
					t.Fatalf("clip(%g,[%g,%g]) not idempotent", v, lo, hi)
				}
			}
		}
	}
}

func TestNewID(t *testing.T) {
	id, err := NewID("Animation", "Spring", "Damping")
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	if id != "Animation|Spring|Damping" {
		t.Errorf("id = %q", id)
	}

	c, g, n, err := ParseID(string(id))
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if c != "Animation" || g != "Spring" || n != "Damping" {
		t.Errorf("ParseID = %q %q %q", c, g, n)
	}

	if _, err := NewID("A|B", "g", "n"); !errors.Is(err, ErrReservedSeparator) {
		t.Errorf("separator in collection: err = %v", err)
	}
	if _, err := NewID("c", "g", "a|b"); !errors.Is(err, ErrReservedSeparator) {
		t.Errorf("separator in name: err = %v", err)
	}
	if _, err := NewID("c", "", "n"); !errors.Is(err, ErrEmptyName) {
		t.Errorf("empty group: err = %v", err)
	}
	if _, err := NewID("c", "g", "\xff"); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("invalid UTF-8 name: err = %v", err)
	}
	if _, err := NewID("c", "g", "ünïcödé"); err != nil {
		t.Errorf("unicode name: err = %v", err)
	}
	if _, _, _, err := ParseID("only|two"); !errors.Is(err, ErrMalformedID) {
		t.Errorf("ParseID(only|two): err = %v", err)
	}
}

func TestSameTripleSameID(t *testing.T) {
	a := MustID("c", "g", "n")
	b := MustID("c", "g", "n")
	if a != b {
		t.Errorf("%q != %q", a, b)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		kind Kind
		in   string
		want Value
	}{
		{KindBool, "true", Bool(true)},
		{KindInt, "-42", Int(-42)},
		{KindFloat32, "0.5", Float32(0.5)},
		{KindFloat64, "2.25", Float64(2.25)},
		{KindColor, "#ff000080", ColorValue(Color{R: 1, A: float32(0x80) / 255})},
		{KindColor, "0, 0.5, 1, 1", ColorValue(Color{0, 0.5, 1, 1})},
		{KindString, "hello", String("hello")},
		{KindStringOption, "fast", StringOption("fast", nil)},
	}
	for _, tt := range tests {
		got, err := Parse(tt.kind, tt.in)
		if err != nil {
			t.Errorf("Parse(%s, %q): %v", tt.kind, tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Parse(%s, %q) = %v, want %v", tt.kind, tt.in, got, tt.want)
		}
	}

	for _, bad := range []struct {
		kind Kind
		in   string
	}{
		{KindBool, "yes please"},
		{KindInt, "1.5"},
		{KindColor, "#abc"},
		{KindColor, "1,2,3"},
		{KindInvalid, "x"},
	} {
		if _, err := Parse(bad.kind, bad.in); err == nil {
			t.Errorf("Parse(%s, %q) succeeded, want error", bad.kind, bad.in)
		}
	}
}

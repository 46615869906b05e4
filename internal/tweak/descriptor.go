package tweak

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrInvalidBounds = errors.New("invalid tweak bounds")
	ErrKindMismatch  = errors.New("tweak kind mismatch")
)

// Descriptor is the live definition of a tweak as declared by the registry.
// Min and Max are only meaningful for numeric kinds; Options only for
// string options.
type Descriptor struct {
	Collection string
	Group      string
	Name       string
	Kind       Kind
	Default    Value
	Min        *Value
	Max        *Value
	Options    []string

	// Index orders tweaks inside their group. Unordered tweaks use -1.
	Index int
}

// ID returns the persistence identifier of the tweak.
func (d Descriptor) ID() (ID, error) {
	return NewID(d.Collection, d.Group, d.Name)
}

// Validate checks the descriptor invariants the persistence layer relies on.
func (d Descriptor) Validate() error {
	if _, err := d.ID(); err != nil {
		return err
	}
	if d.Kind == KindInvalid {
		return fmt.Errorf("%s: %w: no kind declared", d.Name, ErrKindMismatch)
	}
	if d.Default.IsValid() && d.Default.Kind() != d.Kind {
		return fmt.Errorf("%s: %w: default is %s, declared %s", d.Name, ErrKindMismatch, d.Default.Kind(), d.Kind)
	}
	if d.Min == nil && d.Max == nil {
		return nil
	}
	if !d.Kind.Numeric() {
		return fmt.Errorf("%s: %w: bounds on %s tweak", d.Name, ErrInvalidBounds, d.Kind)
	}
	for _, b := range []*Value{d.Min, d.Max} {
		if b != nil && b.Kind() != d.Kind {
			return fmt.Errorf("%s: %w: bound is %s, declared %s", d.Name, ErrKindMismatch, b.Kind(), d.Kind)
		}
	}
	if d.Min != nil && d.Max != nil && less(*d.Max, *d.Min) {
		return fmt.Errorf("%s: %w: min %s > max %s", d.Name, ErrInvalidBounds, d.Min, d.Max)
	}
	return nil
}

// Reconcile adapts a stored value to the live descriptor. A value of the
// wrong kind is treated as absent. Numeric values are clipped into the
// declared bounds, and stored strings are rehydrated as string options
// carrying the descriptor's allowed list; a choice that is no longer
// allowed is treated as absent. Float32 and Float64 values convert to each
// other when the conversion is exact, so a hand-edited float that was read
// back as the other width still applies.
func Reconcile(d Descriptor, stored Value) (Value, bool) {
	stored = convertFloat(stored, d.Kind)
	switch d.Kind {
	case KindStringOption:
		s, ok := stored.AsString()
		if !ok {
			return Value{}, false
		}
		if len(d.Options) > 0 && !slices.Contains(d.Options, s) {
			return Value{}, false
		}
		return StringOption(s, d.Options), true
	case KindInt, KindFloat32, KindFloat64:
		if stored.Kind() != d.Kind {
			return Value{}, false
		}
		lo, hi := stored, stored
		if d.Min != nil {
			lo = *d.Min
		}
		if d.Max != nil {
			hi = *d.Max
		}
		return stored.Clip(lo, hi), true
	default:
		if stored.Kind() != d.Kind {
			return Value{}, false
		}
		return stored, true
	}
}

// SortDescriptors orders descriptors for display: by Index, then by name.
func SortDescriptors(ds []Descriptor) {
	slices.SortStableFunc(ds, func(a, b Descriptor) int {
		if c := cmp.Compare(a.Index, b.Index); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// convertFloat returns v as the float kind want when that loses nothing,
// and v unchanged otherwise.
func convertFloat(v Value, want Kind) Value {
	switch {
	case v.Kind() == KindFloat64 && want == KindFloat32:
		f, _ := v.AsFloat64()
		if float64(float32(f)) == f {
			return Float32(float32(f))
		}
	case v.Kind() == KindFloat32 && want == KindFloat64:
		f, _ := v.AsFloat32()
		return Float64(float64(f))
	}
	return v
}

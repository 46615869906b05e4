package tweak

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Separator joins the collection, group and tweak names of an ID. It is
// reserved and may not appear inside any of the names.
const Separator = "|"

var (
	ErrReservedSeparator = errors.New("name contains reserved separator " + Separator)
	ErrEmptyName         = errors.New("name is empty")
	ErrMalformedID       = errors.New("malformed tweak identifier")
	ErrInvalidUTF8       = errors.New("name is not valid UTF-8")
)

// ID identifies one tweak across the whole registry and keys the
// persisted cache.
type ID string

// NewID builds the identifier for a collection/group/tweak triple.
func NewID(collection, group, name string) (ID, error) {
	for _, part := range [...]struct{ label, v string }{
		{"collection", collection},
		{"group", group},
		{"tweak", name},
	} {
		if part.v == "" {
			return "", fmt.Errorf("%s: %w", part.label, ErrEmptyName)
		}
		if !utf8.ValidString(part.v) {
			return "", fmt.Errorf("%s %q: %w", part.label, part.v, ErrInvalidUTF8)
		}
		if strings.Contains(part.v, Separator) {
			return "", fmt.Errorf("%s %q: %w", part.label, part.v, ErrReservedSeparator)
		}
	}
	return ID(collection + Separator + group + Separator + name), nil
}

// MustID is like NewID but panics on invalid names. Intended for
// package-level tweak declarations and tests.
func MustID(collection, group, name string) ID {
	id, err := NewID(collection, group, name)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID splits an identifier back into its names.
func ParseID(s string) (collection, group, name string, err error) {
	parts := strings.Split(s, Separator)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%q: %w", s, ErrMalformedID)
	}
	return parts[0], parts[1], parts[2], nil
}

// Cache maps identifiers to their persisted values.
type Cache map[ID]Value

// Clone returns a shallow copy. Values are immutable so sharing them is safe.
func (c Cache) Clone() Cache {
	out := make(Cache, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Package jsonfile stores a tweak cache as one flat JSON object keyed by
// tweak identifier. Values are written in their natural JSON form and their
// kinds are recovered on read by trying decoders in a fixed order:
//
//	boolean → integer → float32 → float64 → color → string
//
// The encoder writes every kind in a form that only its own decoder (or a
// later one it cannot reach) accepts, so documents written here round-trip
// exactly. Hand-edited float32 values must be in that canonical form (for
// example 2.5, not 2.50 or 25e-1); other fractional spellings read back as
// float64, which tweak.Reconcile narrows again when the value is exact.
// String options are written as plain strings and read back as strings; the
// live descriptor restores the option list. Strings must be valid UTF-8:
// invalid bytes are written as U+FFFD.
package jsonfile

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/kalambet/tweaks/internal/tweak"
)

// Extension is the file extension of JSON stores.
const Extension = "json"

// Codec reads and writes a tweak cache at a fixed path.
type Codec struct {
	path   string
	logger *slog.Logger
}

// New returns a Codec for path. The parent directory must exist before Save.
func New(path string, logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{path: path, logger: logger}
}

// Path returns the file the codec reads and writes.
func (c *Codec) Path() string { return c.path }

// Load reads the cache from disk. A missing file yields an empty cache and
// no error. Entries whose value matches no decoder are dropped.
func (c *Codec) Load() (tweak.Cache, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return tweak.Cache{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.path, err)
	}
	cache, dropped, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.path, err)
	}
	for _, key := range dropped {
		c.logger.Debug("skipping undecodable tweak", "id", key)
	}
	return cache, nil
}

// Save replaces the file with the encoded cache. The document is written to
// a temporary file next to the target and renamed over it.
func (c *Codec) Save(cache tweak.Cache) error {
	data, err := c.encode(cache)
	if err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(c.path), "."+filepath.Base(c.path)+"."+uuid.New().String()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", c.path, err)
	}
	return nil
}

// Decode parses a JSON document into a cache. Only a document that is not a
// JSON object is an error; individual entries that cannot be decoded are
// skipped.
func Decode(data []byte) (tweak.Cache, error) {
	cache, _, err := decode(data)
	return cache, err
}

func decode(data []byte) (tweak.Cache, []string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("document is null")
	}

	cache := make(tweak.Cache, len(raw))
	var dropped []string
	for key, token := range raw {
		if v, ok := decodeValue(token); ok {
			cache[tweak.ID(key)] = v
		} else {
			dropped = append(dropped, key)
		}
	}
	return cache, dropped, nil
}

// Encode renders a cache as an indented JSON object with sorted keys.
// Non-finite floats cannot be represented in JSON and are skipped.
func Encode(cache tweak.Cache) ([]byte, error) {
	return New("", slog.Default()).encode(cache)
}

func (c *Codec) encode(cache tweak.Cache) ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(cache))
	for id, v := range cache {
		token, err := encodeValue(v)
		if err != nil {
			c.logger.Debug("skipping unencodable tweak", "id", id, "kind", v.Kind(), "error", err)
			continue
		}
		doc[string(id)] = token
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding cache: %w", err)
	}
	return append(data, '\n'), nil
}

type colorObject struct {
	R *float32 `json:"r"`
	G *float32 `json:"g"`
	B *float32 `json:"b"`
	A *float32 `json:"a"`
}

func encodeValue(v tweak.Value) (json.RawMessage, error) {
	switch v.Kind() {
	case tweak.KindBool:
		b, _ := v.AsBool()
		return json.RawMessage(strconv.FormatBool(b)), nil
	case tweak.KindInt:
		i, _ := v.AsInt()
		return json.RawMessage(strconv.FormatInt(i, 10)), nil
	case tweak.KindFloat32:
		f, _ := v.AsFloat32()
		if !finite(float64(f)) {
			return nil, fmt.Errorf("non-finite value %v", f)
		}
		return json.RawMessage(formatFloat32(f)), nil
	case tweak.KindFloat64:
		f, _ := v.AsFloat64()
		if !finite(f) {
			return nil, fmt.Errorf("non-finite value %v", f)
		}
		return json.RawMessage(formatFloat64(f)), nil
	case tweak.KindColor:
		col, _ := v.AsColor()
		for _, ch := range []float32{col.R, col.G, col.B, col.A} {
			if !finite(float64(ch)) {
				return nil, fmt.Errorf("non-finite color channel %v", ch)
			}
		}
		return json.Marshal(colorObject{R: &col.R, G: &col.G, B: &col.B, A: &col.A})
	case tweak.KindString, tweak.KindStringOption:
		s, _ := v.AsString()
		return json.Marshal(s)
	default:
		return nil, fmt.Errorf("invalid value")
	}
}

// decodeValue tries each decoder in priority order and returns the first
// that accepts the token.
func decodeValue(token json.RawMessage) (tweak.Value, bool) {
	t := bytes.TrimSpace(token)
	for _, dec := range decoders {
		if v, ok := dec(t); ok {
			return v, true
		}
	}
	return tweak.Value{}, false
}

var decoders = []func([]byte) (tweak.Value, bool){
	decodeBool,
	decodeInt,
	decodeFloat32,
	decodeFloat64,
	decodeColor,
	decodeString,
}

func decodeBool(t []byte) (tweak.Value, bool) {
	switch string(t) {
	case "true":
		return tweak.Bool(true), true
	case "false":
		return tweak.Bool(false), true
	}
	return tweak.Value{}, false
}

func decodeInt(t []byte) (tweak.Value, bool) {
	if !isNumber(t) || bytes.ContainsAny(t, ".eE") {
		return tweak.Value{}, false
	}
	i, err := strconv.ParseInt(string(t), 10, 64)
	if err != nil {
		return tweak.Value{}, false
	}
	return tweak.Int(i), true
}

// decodeFloat32 accepts a fractional literal only when it is exactly the
// canonical float32 rendering of its value, which is what the encoder emits.
func decodeFloat32(t []byte) (tweak.Value, bool) {
	if !isNumber(t) || !bytes.ContainsAny(t, ".eE") {
		return tweak.Value{}, false
	}
	f, err := strconv.ParseFloat(string(t), 32)
	if err != nil {
		return tweak.Value{}, false
	}
	if formatFloat32(float32(f)) != string(t) {
		return tweak.Value{}, false
	}
	return tweak.Float32(float32(f)), true
}

func decodeFloat64(t []byte) (tweak.Value, bool) {
	if !isNumber(t) {
		return tweak.Value{}, false
	}
	f, err := strconv.ParseFloat(string(t), 64)
	if err != nil || !finite(f) {
		return tweak.Value{}, false
	}
	return tweak.Float64(f), true
}

// decodeColor accepts {"r":..,"g":..,"b":..,"a":..} with exactly those keys,
// or a four element numeric array.
func decodeColor(t []byte) (tweak.Value, bool) {
	if len(t) == 0 {
		return tweak.Value{}, false
	}
	switch t[0] {
	case '{':
		dec := json.NewDecoder(bytes.NewReader(t))
		dec.DisallowUnknownFields()
		var obj colorObject
		if err := dec.Decode(&obj); err != nil {
			return tweak.Value{}, false
		}
		if obj.R == nil || obj.G == nil || obj.B == nil || obj.A == nil {
			return tweak.Value{}, false
		}
		return finiteColor(tweak.Color{R: *obj.R, G: *obj.G, B: *obj.B, A: *obj.A})
	case '[':
		var arr []float32
		if err := json.Unmarshal(t, &arr); err != nil || len(arr) != 4 {
			return tweak.Value{}, false
		}
		return finiteColor(tweak.Color{R: arr[0], G: arr[1], B: arr[2], A: arr[3]})
	}
	return tweak.Value{}, false
}

// finiteColor rejects channels that overflowed float32 on decode.
func finiteColor(c tweak.Color) (tweak.Value, bool) {
	for _, ch := range [...]float32{c.R, c.G, c.B, c.A} {
		if !finite(float64(ch)) {
			return tweak.Value{}, false
		}
	}
	return tweak.ColorValue(c), true
}

func decodeString(t []byte) (tweak.Value, bool) {
	if len(t) == 0 || t[0] != '"' {
		return tweak.Value{}, false
	}
	var s string
	if err := json.Unmarshal(t, &s); err != nil {
		return tweak.Value{}, false
	}
	return tweak.String(s), true
}

// formatFloat32 renders the shortest float32 decimal, forced to carry a
// fraction so it never reads back as an integer.
func formatFloat32(f float32) string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// formatFloat64 renders 17 significant digits in exponent form. That is
// enough to round-trip any float64 and never matches the float32 form.
func formatFloat64(f float64) string {
	return strconv.FormatFloat(f, 'e', 16, 64)
}

func isNumber(t []byte) bool {
	if len(t) == 0 {
		return false
	}
	c := t[0]
	return c == '-' || (c >= '0' && c <= '9')
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

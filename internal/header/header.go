// Package header holds the flat key/value form of a FITS primary header and
// the derived entries the indexer adds while extracting it.
package header

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Well-known keys, including the ones derived during extraction.
const (
	KeyFilename    = "FILENAME"
	KeyPlateScale  = "PLATE_SCALE"
	KeyOdds        = "ODDS"
	KeyCalSources  = "BP-SRC"
	KeyCalSourcesN = "BP-SRCN"
)

// Header maps uppercase keys to scalar values (numbers, strings, bools) or
// []string for multi-valued entries.
type Header map[string]any

// Get returns the raw value and whether the key is present with a non-nil value.
func (h Header) Get(key string) (any, bool) {
	v, ok := h[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns the value as trimmed text. Numbers are formatted.
func (h Header) String(key string) (string, bool) {
	v, ok := h.Get(key)
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), true
	case []byte:
		return strings.TrimSpace(string(val)), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return fmt.Sprint(v), true
	}
}

// Float returns the numeric value of key. ok is false when the key is absent;
// err is set when it is present but not numeric.
func (h Header) Float(key string) (v float64, ok bool, err error) {
	raw, present := h.Get(key)
	if !present {
		return 0, false, nil
	}
	if f, isNum := toFloat(raw); isNum {
		return f, true, nil
	}
	if s, isStr := raw.(string); isStr {
		f, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if perr != nil {
			return 0, false, fmt.Errorf("%s: not a number: %q", key, s)
		}
		return f, true, nil
	}
	return 0, false, fmt.Errorf("%s: unexpected type %T", key, raw)
}

// Int is Float restricted to integral values.
func (h Header) Int(key string) (v int, ok bool, err error) {
	f, ok, err := h.Float(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if f != math.Trunc(f) {
		return 0, false, fmt.Errorf("%s: not an integer: %v", key, f)
	}
	return int(f), true, nil
}

// Strings returns a multi-valued entry; a single string is promoted.
func (h Header) Strings(key string) ([]string, bool) {
	v, ok := h.Get(key)
	if !ok {
		return nil, false
	}
	switch val := v.(type) {
	case []string:
		return val, true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out, true
	case string:
		return []string{val}, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

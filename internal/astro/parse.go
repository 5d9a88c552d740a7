package astro

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/unit"
)

var dateObsLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDateObs reads a FITS DATE-OBS value as UTC. Fractional seconds are
// accepted after the seconds field.
func ParseDateObs(value string) (time.Time, error) {
	value = strings.TrimSuffix(strings.TrimSpace(value), "Z")
	for _, layout := range dateObsLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised DATE-OBS %q", value)
}

// ParseRA converts "HH MM SS.s" or "HH:MM:SS.s" hour-angle text to degrees.
func ParseRA(text string) (float64, error) {
	neg, parts, err := sexagesimal(text)
	if err != nil {
		return 0, fmt.Errorf("ra: %w", err)
	}
	if neg {
		return 0, fmt.Errorf("ra: negative value %q", text)
	}
	h, m, s := splitParts(parts)
	return unit.NewRA(h, m, s).Deg(), nil
}

// ParseDec converts "+DD MM SS.s" or "-DD:MM:SS.s" text to degrees.
func ParseDec(text string) (float64, error) {
	neg, parts, err := sexagesimal(text)
	if err != nil {
		return 0, fmt.Errorf("dec: %w", err)
	}
	d, m, s := splitParts(parts)
	var sign byte = '+'
	if neg {
		sign = '-'
	}
	return unit.NewAngle(sign, d, m, s).Deg(), nil
}

func sexagesimal(text string) (neg bool, parts []float64, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil, fmt.Errorf("empty value")
	}
	switch text[0] {
	case '-':
		neg = true
		text = text[1:]
	case '+':
		text = text[1:]
	}

	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ' ' || r == ':' })
	if len(fields) == 0 || len(fields) > 3 {
		return false, nil, fmt.Errorf("malformed sexagesimal %q", text)
	}
	for i, f := range fields {
		v, perr := strconv.ParseFloat(f, 64)
		if perr != nil || v < 0 {
			return false, nil, fmt.Errorf("malformed sexagesimal %q", text)
		}
		if i > 0 && v >= 60 {
			return false, nil, fmt.Errorf("component out of range in %q", text)
		}
		parts = append(parts, v)
	}
	return neg, parts, nil
}

// splitParts spreads fractional leading components into minutes and seconds
// so "5.5" reads as 5h30m.
func splitParts(parts []float64) (int, int, float64) {
	total := 0.0
	scale := 1.0
	for _, p := range parts {
		total += p / scale
		scale *= 60
	}
	whole := int(total)
	rem := (total - float64(whole)) * 60
	minutes := int(rem)
	seconds := (rem - float64(minutes)) * 60
	return whole, minutes, seconds
}

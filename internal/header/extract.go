package header

import (
	"fmt"
	"strconv"
	"strings"
)

// Card is one header record as read from a file.
type Card struct {
	Key   string
	Value any
}

var excludedKeys = map[string]struct{}{
	"COMMENT": {},
	"HISTORY": {},
	"":        {},
}

// FromCards flattens header cards into a Header. COMMENT and HISTORY cards are
// dropped; the astrometry.net plate scale and odds found in the comments are
// kept as PLATE_SCALE and ODDS, and BP-SRC1..N are folded into BP-SRC.
func FromCards(cards []Card, absPath string) Header {
	h := make(Header, len(cards)+3)
	var comments []string
	for _, c := range cards {
		key := strings.ToUpper(strings.TrimSpace(c.Key))
		if key == "COMMENT" {
			if s, ok := c.Value.(string); ok {
				comments = append(comments, s)
			}
			continue
		}
		if _, skip := excludedKeys[key]; skip {
			continue
		}
		h[key] = c.Value
	}

	h[KeyFilename] = absPath

	if scale, ok := findPlateScale(comments); ok {
		h[KeyPlateScale] = scale
	}
	if odds, ok := findOdds(comments); ok {
		h[KeyOdds] = odds
	}
	foldCalibrationSources(h)
	return h
}

func findPlateScale(comments []string) (float64, bool) {
	for _, line := range comments {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "scale: ") || !strings.HasSuffix(line, " arcsec/pix") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		return v, err == nil
	}
	return 0, false
}

func findOdds(comments []string) (float64, bool) {
	for _, line := range comments {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "odds: ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		return v, err == nil
	}
	return 0, false
}

// foldCalibrationSources replaces BP-SRCN and BP-SRC1..N with a BP-SRC list.
// Headers with a missing or non-positive count are left untouched.
func foldCalibrationSources(h Header) {
	n, ok, err := h.Int(KeyCalSourcesN)
	if err != nil || !ok || n < 1 {
		return
	}
	sources := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		key := fmt.Sprintf("%s%d", KeyCalSources, i)
		s, present := h.String(key)
		if !present {
			return
		}
		sources = append(sources, s)
	}
	for i := 1; i <= n; i++ {
		delete(h, fmt.Sprintf("%s%d", KeyCalSources, i))
	}
	delete(h, KeyCalSourcesN)
	h[KeyCalSources] = sources
}

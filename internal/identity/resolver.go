package identity

import (
	"fmt"
	"path/filepath"
	"strings"

	"ObservationsIndexer/internal/domain"
)

var (
	stagePrefixes = []string{"astrom_"}
	stageSuffixes = []string{".astrom", "_astrom"}
)

// Resolve composes {facility}/{date-segment}/{stem} for a classified path.
// Unclassified paths yield ErrUnclassifiablePath; a path too shallow to hold
// the date segment and a file name below it yields ErrIdentityResolution.
func Resolve(path string, cls Classification) (domain.Identity, error) {
	if !cls.Classified() {
		return "", &domain.PathError{Path: path, Kind: domain.ErrUnclassifiablePath}
	}

	pos := cls.Tree.DateSegment
	if pos+1 >= len(cls.Rel) {
		return "", &domain.PathError{
			Path:   path,
			Kind:   domain.ErrIdentityResolution,
			Reason: fmt.Sprintf("date segment %d out of range for %d components below %s", pos, len(cls.Rel), cls.Tree.BaseDir),
		}
	}

	date := cls.Rel[pos]
	stem := StripStageDecoration(fileStem(path))
	if date == "" || stem == "" {
		return "", &domain.PathError{Path: path, Kind: domain.ErrIdentityResolution, Reason: "empty date segment or file name"}
	}
	return domain.NewIdentity(cls.Facility, date, stem), nil
}

// StripStageDecoration removes the affixes that mark astrometric copies.
// Only exact affixes are removed, repeatedly, so the result is a fixed point.
func StripStageDecoration(stem string) string {
	for {
		before := stem
		for _, p := range stagePrefixes {
			stem = strings.TrimPrefix(stem, p)
		}
		for _, s := range stageSuffixes {
			stem = strings.TrimSuffix(stem, s)
		}
		if stem == before {
			return stem
		}
	}
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

package crawler

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

var dateDirPattern = regexp.MustCompile(`^([0-9][0-9])?([0-9][0-9]-?[0-9][0-9]-?[0-9][0-9])`)

// DateDir is one date directory below a tree's base directory.
type DateDir struct {
	Name string
	// Key is the date as YYYYMMDD, comparable as a string.
	Key  string
}

// dateKey extracts the YYYYMMDD key of a directory name. Two-digit years
// are taken to be 20YY.
func dateKey(name string) (string, bool) {
	m := dateDirPattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	century := m[1]
	if century == "" {
		century = "20"
	}
	return century + strings.ReplaceAll(m[2], "-", ""), true
}

// Selection picks date directories. The zero value selects nothing.
type Selection struct {
	all      bool
	from, to string
}

// SelectAll selects every date directory.
func SelectAll() Selection { return Selection{all: true} }

// SelectDate selects one day.
func SelectDate(day time.Time) Selection {
	key := day.Format("20060102")
	return Selection{from: key, to: key}
}

// SelectRange selects the inclusive range between two days.
func SelectRange(from, to time.Time) (Selection, error) {
	if to.Before(from) {
		return Selection{}, fmt.Errorf("date range ends before it starts: %s > %s", from.Format("060102"), to.Format("060102"))
	}
	return Selection{from: from.Format("20060102"), to: to.Format("20060102")}, nil
}

// ParseDay reads a YYMMDD or YYYY-MM-DD date argument.
func ParseDay(value string) (time.Time, error) {
	for _, layout := range []string{"060102", "2006-01-02", "20060102"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYMMDD", value)
}

func (s Selection) includes(key string) bool {
	if s.all {
		return true
	}
	return s.from != "" && key >= s.from && key <= s.to
}

// String describes the selection for logs.
func (s Selection) String() string {
	switch {
	case s.all:
		return "all"
	case s.from == s.to:
		return s.from
	default:
		return s.from + ".." + s.to
	}
}

// ListDateDirs returns the selected date directories of base in date order.
// Names listed in excluded are skipped even when they look like dates.
func ListDateDirs(base string, sel Selection, excluded []string) ([]DateDir, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", base, err)
	}

	skip := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		skip[name] = struct{}{}
	}

	var dirs []DateDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := skip[e.Name()]; ok {
			continue
		}
		key, ok := dateKey(e.Name())
		if !ok || !sel.includes(key) {
			continue
		}
		dirs = append(dirs, DateDir{Name: e.Name(), Key: key})
	}

	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].Key != dirs[j].Key {
			return dirs[i].Key < dirs[j].Key
		}
		return dirs[i].Name < dirs[j].Name
	})
	return dirs, nil
}

// Package identity classifies FITS paths by facility tree and derives the
// stage-independent identity of the exposure they hold.
package identity

import (
	"fmt"
	"path/filepath"
	"strings"

	"ObservationsIndexer/internal/domain"
)

// Layout names how files are arranged below a tree's date directories.
const (
	LayoutDated    = "dated"
	LayoutPipeline = "pipeline"
)

// Tree is one configured base directory of a facility.
type Tree struct {
	Name        string
	Facility    domain.Facility
	Stage       domain.ProcessingStage
	BaseDir     string
	Layout      string
	DateSegment int
}

// Config enumerates facility trees and ground locations.
type Config struct {
	Trees     []Tree
	Locations map[domain.Facility]domain.Location
}

// Location returns the ground position of f.
func (c Config) Location(f domain.Facility) (domain.Location, bool) {
	loc, ok := c.Locations[f]
	return loc, ok
}

// TreeByName finds a configured tree.
func (c Config) TreeByName(name string) (Tree, bool) {
	for _, t := range c.Trees {
		if t.Name == name {
			return t, true
		}
	}
	return Tree{}, false
}

// Classification is the structural reading of a path.
type Classification struct {
	Facility domain.Facility
	Stage    domain.ProcessingStage
	Tree     Tree
	// Rel holds the path components below Tree.BaseDir.
	Rel []string
}

// Classified reports whether the path lies under a known tree.
func (c Classification) Classified() bool {
	return c.Facility != domain.FacilityUnknown
}

// Classifier matches paths against the configured base directories.
type Classifier struct {
	trees []Tree
}

// NewClassifier validates and cleans the configured trees.
func NewClassifier(cfg Config) (*Classifier, error) {
	trees := make([]Tree, 0, len(cfg.Trees))
	for _, t := range cfg.Trees {
		if t.Facility == domain.FacilityUnknown {
			return nil, fmt.Errorf("tree %s: facility is not set", t.Name)
		}
		if t.Stage == domain.StageUnknown {
			return nil, fmt.Errorf("tree %s: stage is not set", t.Name)
		}
		if !filepath.IsAbs(t.BaseDir) {
			return nil, fmt.Errorf("tree %s: base dir %q must be absolute", t.Name, t.BaseDir)
		}
		if t.DateSegment < 0 {
			return nil, fmt.Errorf("tree %s: negative date segment", t.Name)
		}
		t.BaseDir = filepath.Clean(t.BaseDir)
		trees = append(trees, t)
	}
	return &Classifier{trees: trees}, nil
}

// Classify returns the facility and stage of path. Only the path structure is
// inspected; the deepest matching base directory wins.
func (c *Classifier) Classify(path string) Classification {
	clean := filepath.Clean(path)
	var (
		best    Classification
		bestLen = -1
	)
	for _, t := range c.trees {
		rel, ok := below(t.BaseDir, clean)
		if !ok || len(t.BaseDir) <= bestLen {
			continue
		}
		best = Classification{Facility: t.Facility, Stage: t.Stage, Tree: t, Rel: rel}
		bestLen = len(t.BaseDir)
	}
	return best
}

// Identify classifies path and resolves its identity in one step.
func (c *Classifier) Identify(path string) (Classification, domain.Identity, error) {
	cls := c.Classify(path)
	id, err := Resolve(path, cls)
	return cls, id, err
}

// below returns the components of path under base, or false when path is not
// strictly below base.
func below(base, path string) ([]string, bool) {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, false
	}
	if filepath.IsAbs(rel) {
		return nil, false
	}
	return strings.Split(rel, string(filepath.Separator)), true
}

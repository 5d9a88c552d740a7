package crawler

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"ObservationsIndexer/internal/identity"
)

// Group is a set of files found in one date directory that share a kind.
// Kind is empty for trees that do not distinguish kinds.
type Group struct {
	Kind  string
	Files []string
}

// Options tune file discovery.
type Options struct {
	Extensions    []string
	PipelineKinds []string
}

func (o Options) matches(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	for _, e := range o.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Layout captures how one kind of tree arranges files below a date directory.
type Layout interface {
	Name() string
	Find(ctx context.Context, dateDir string, opts Options) ([]Group, error)
}

// Registry keeps a mapping from layout names to their implementations.
type Registry struct {
	layouts map[string]Layout
}

// NewRegistry returns a registry holding the dated and pipeline layouts.
func NewRegistry() *Registry {
	r := &Registry{layouts: map[string]Layout{}}
	r.Register(DatedLayout{})
	r.Register(PipelineLayout{})
	return r
}

// Register adds or replaces a layout implementation.
func (r *Registry) Register(layout Layout) {
	if r.layouts == nil {
		r.layouts = map[string]Layout{}
	}
	r.layouts[layout.Name()] = layout
}

// Resolve returns a layout by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Layout, error) {
	if layout, ok := r.layouts[name]; ok {
		return layout, nil
	}
	return nil, fmt.Errorf("layout %s is not registered", name)
}

// DatedLayout holds FITS files anywhere below the date directory, e.g.
// <date>/<camera>/<filter>/<file>.
type DatedLayout struct{}

func (DatedLayout) Name() string { return identity.LayoutDated }

func (DatedLayout) Find(ctx context.Context, dateDir string, opts Options) ([]Group, error) {
	files, err := findFiles(ctx, dateDir, opts)
	if err != nil {
		return nil, err
	}
	return []Group{{Files: files}}, nil
}

// PipelineLayout holds FITS files in per-kind directories found at any
// depth below the date directory, e.g. <date>/<target>/Reduced/<file>. Only
// files directly inside a kind directory count.
type PipelineLayout struct{}

func (PipelineLayout) Name() string { return identity.LayoutPipeline }

func (PipelineLayout) Find(ctx context.Context, dateDir string, opts Options) ([]Group, error) {
	files, err := findFiles(ctx, dateDir, opts)
	if err != nil {
		return nil, err
	}

	byKind := make(map[string][]string, len(opts.PipelineKinds))
	for _, path := range files {
		kind := filepath.Base(filepath.Dir(path))
		byKind[kind] = append(byKind[kind], path)
	}

	groups := make([]Group, 0, len(opts.PipelineKinds))
	for _, kind := range opts.PipelineKinds {
		if len(byKind[kind]) == 0 {
			continue
		}
		groups = append(groups, Group{Kind: kind, Files: byKind[kind]})
	}
	return groups, nil
}

func findFiles(ctx context.Context, root string, opts Options) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() && opts.matches(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Package crawler finds FITS files in facility trees and extracts their
// headers.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"ObservationsIndexer/internal/header"
	"ObservationsIndexer/internal/identity"
	"ObservationsIndexer/internal/ports"
)

// Settings configure a Crawler.
type Settings struct {
	Workers      int
	ExcludedDirs []string
	Options      Options
}

// FileError records a file whose header could not be read.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e FileError) Unwrap() error { return e.Err }

// Result holds the headers of one kind of file found in a tree.
type Result struct {
	Tree     string
	Kind     string
	Headers  []header.Header
	Failures []FileError
}

// Crawler walks trees through their registered layouts.
type Crawler struct {
	registry *Registry
	reader   ports.HeaderReader
	settings Settings
	logger   *slog.Logger
}

// New wires the layout registry and header reader.
func New(reg *Registry, reader ports.HeaderReader, settings Settings, logger *slog.Logger) *Crawler {
	if reg == nil {
		reg = NewRegistry()
	}
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	return &Crawler{
		registry: reg,
		reader:   reader,
		settings: settings,
		logger:   logger,
	}
}

// Crawl reads the headers of every selected file of tree. Results are
// ordered by kind, headers within a result by path. Unreadable files are
// reported in Failures and do not stop the crawl.
func (c *Crawler) Crawl(ctx context.Context, tree identity.Tree, sel Selection) ([]Result, error) {
	if c.reader == nil {
		return nil, fmt.Errorf("header reader is not configured")
	}
	layout, err := c.registry.Resolve(tree.Layout)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", tree.Name, err)
	}

	dirs, err := ListDateDirs(tree.BaseDir, sel, c.settings.ExcludedDirs)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", tree.Name, err)
	}
	c.debug("date directories selected", "tree", tree.Name, "selection", sel.String(), "count", len(dirs))

	files := map[string][]string{}
	for _, dir := range dirs {
		groups, err := layout.Find(ctx, filepath.Join(tree.BaseDir, dir.Name), c.settings.Options)
		if err != nil {
			return nil, fmt.Errorf("tree %s: %w", tree.Name, err)
		}
		for _, g := range groups {
			files[g.Kind] = append(files[g.Kind], g.Files...)
		}
	}

	kinds := make([]string, 0, len(files))
	for kind := range files {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	results := make([]Result, 0, len(kinds))
	for _, kind := range kinds {
		res, err := c.extract(ctx, files[kind])
		if err != nil {
			return nil, err
		}
		res.Tree, res.Kind = tree.Name, kind
		c.debug("headers extracted", "tree", tree.Name, "kind", kind, "files", len(files[kind]), "failed", len(res.Failures))
		results = append(results, res)
	}
	return results, nil
}

// extract reads headers on a bounded pool of workers.
func (c *Crawler) extract(ctx context.Context, paths []string) (Result, error) {
	var (
		mu  sync.Mutex
		res Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.settings.Workers)
	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h, err := c.reader.ReadHeader(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures = append(res.Failures, FileError{Path: path, Err: err})
				return nil
			}
			res.Headers = append(res.Headers, h)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	sort.Slice(res.Headers, func(i, j int) bool {
		return header.NewView(res.Headers[i]).Filename() < header.NewView(res.Headers[j]).Filename()
	})
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Path < res.Failures[j].Path })
	return res, nil
}

func (c *Crawler) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

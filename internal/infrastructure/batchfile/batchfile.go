// Package batchfile stores crawled headers between the crawl and insert steps.
package batchfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"ObservationsIndexer/internal/header"
)

// Extension is appended to every batch file name.
const Extension = ".msgpack"

// Batch is the headers of one tree and kind crawled in a single run.
type Batch struct {
	Tree      string          `msgpack:"tree"`
	Kind      string          `msgpack:"kind,omitempty"`
	CreatedAt time.Time       `msgpack:"created_at"`
	Headers   []header.Header `msgpack:"headers"`
}

// Name returns the conventional file name, e.g. gbt-pipe-Reduced-headers.msgpack.
func (b Batch) Name() string {
	label := b.Tree
	if b.Kind != "" {
		label += "-" + b.Kind
	}
	return label + "-headers" + Extension
}

// Encode writes b to w.
func Encode(w io.Writer, b Batch) error {
	if err := msgpack.NewEncoder(w).Encode(&b); err != nil {
		return fmt.Errorf("encode batch %s: %w", b.Name(), err)
	}
	return nil
}

// Decode reads one batch from r.
func Decode(r io.Reader) (Batch, error) {
	var b Batch
	if err := msgpack.NewDecoder(r).Decode(&b); err != nil {
		return Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	return b, nil
}

// Write stores b in dir under b.Name() and returns the path. The file is
// replaced atomically.
func Write(dir string, b Batch) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	path := filepath.Join(dir, b.Name())
	tmp, err := os.CreateTemp(dir, "."+b.Name()+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := Encode(w, b); err != nil {
		tmp.Close()
		return "", err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return path, nil
}

// Read loads a batch file.
func Read(path string) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	b, err := Decode(bufio.NewReader(f))
	if err != nil {
		return Batch{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

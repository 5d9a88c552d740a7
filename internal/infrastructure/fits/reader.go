// Package fits reads primary headers of FITS files.
package fits

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"

	"ObservationsIndexer/internal/header"
	"ObservationsIndexer/internal/ports"
)

const (
	cardSize  = 80
	blockSize = 2880

	// maxHeaderCards bounds the scan of a file without an END card.
	maxHeaderCards = 36 * 1000
)

// Reader opens files with fitsio and flattens the primary HDU header.
type Reader struct{}

var _ ports.HeaderReader = Reader{}

// NewReader returns a header reader.
func NewReader() Reader { return Reader{} }

// ReadHeader returns the primary header of path with FILENAME set to the
// absolute path.
func (Reader) ReadHeader(ctx context.Context, path string) (header.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", abs, err)
	}
	defer f.Close()

	ff, err := fitsio.Open(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", abs, err)
	}
	defer ff.Close()

	if len(ff.HDUs()) == 0 {
		return nil, fmt.Errorf("decode %s: no HDU", abs)
	}
	out := cards(ff.HDU(0).Header())

	// Keys() leaves out commentary cards, so COMMENT text is read from the
	// raw card images of the primary header.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", abs, err)
	}
	comments, err := primaryComments(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", abs, err)
	}
	for _, c := range comments {
		out = append(out, header.Card{Key: "COMMENT", Value: c})
	}
	return header.FromCards(out, abs), nil
}

func cards(hdr *fitsio.Header) []header.Card {
	keys := hdr.Keys()
	out := make([]header.Card, 0, len(keys))
	for _, key := range keys {
		card := hdr.Get(key)
		if card == nil {
			continue
		}
		out = append(out, header.Card{Key: key, Value: card.Value})
	}
	return out
}

// primaryComments returns the text of the COMMENT cards of the first header.
func primaryComments(r io.Reader) ([]string, error) {
	br := bufio.NewReaderSize(r, blockSize)
	card := make([]byte, cardSize)
	var comments []string
	for n := 0; n < maxHeaderCards; n++ {
		if _, err := io.ReadFull(br, card); err != nil {
			return nil, fmt.Errorf("read header card %d: %w", n, err)
		}
		name := strings.TrimSpace(string(card[:8]))
		switch name {
		case "END":
			return comments, nil
		case "COMMENT":
			comments = append(comments, strings.TrimSpace(string(card[8:])))
		}
	}
	return nil, fmt.Errorf("no END card in the first %d cards", maxHeaderCards)
}

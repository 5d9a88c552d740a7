package fits

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ObservationsIndexer/internal/header"
)

func card(key, value string) string {
	var line string
	if value == "" {
		line = key
	} else {
		line = fmt.Sprintf("%-8s= %20s", key, value)
	}
	return fmt.Sprintf("%-80s", line)
}

func writeFITS(t *testing.T, path string, cards ...string) {
	t.Helper()

	var b strings.Builder
	for _, c := range cards {
		b.WriteString(c)
	}
	b.WriteString(card("END", ""))
	for b.Len()%2880 != 0 {
		b.WriteByte(' ')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestReadHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "160216_Li_00000157.fits")
	writeFITS(t, path,
		card("SIMPLE", "T"),
		card("BITPIX", "8"),
		card("NAXIS", "0"),
		card("DATE-OBS", "'2016-02-16T20:00:00'"),
		card("EXPTIME", "30.0"),
		card("IMAGETYP", "'Light Frame'"),
		fmt.Sprintf("%-80s", "HISTORY created by the test"),
	)

	h, err := NewReader().ReadHeader(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	view := header.NewView(h)
	if view.Filename() != path {
		t.Fatalf("unexpected filename %q", view.Filename())
	}
	if d, ok := view.DateObs(); !ok || d != "2016-02-16T20:00:00" {
		t.Fatalf("unexpected DATE-OBS %q", d)
	}
	if e, ok := view.ExposureTime(); !ok || e != 30 {
		t.Fatalf("unexpected EXPTIME %v", e)
	}
	if _, ok := h["HISTORY"]; ok {
		t.Fatalf("HISTORY must be dropped")
	}
}

func TestReadHeaderKeepsCardsAfterCommentary(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "astrom_160216_Li_00000157.fits")
	writeFITS(t, path,
		card("SIMPLE", "T"),
		card("BITPIX", "8"),
		card("NAXIS", "0"),
		fmt.Sprintf("%-80s", "COMMENT scale: 0.5 arcsec/pix"),
		fmt.Sprintf("%-80s", "COMMENT odds: 12.5"),
		fmt.Sprintf("%-80s", "HISTORY solved by astrometry.net"),
		fmt.Sprintf("%-80s", ""),
		card("DATE-OBS", "'2016-02-16T20:00:00'"),
		card("CRVAL1", "10.68"),
		card("CRVAL2", "41.27"),
	)

	h, err := NewReader().ReadHeader(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	view := header.NewView(h)
	if ra, dec, ok := view.WCSReference(); !ok || ra != 10.68 || dec != 41.27 {
		t.Fatalf("WCS reference lost: CRVAL1=%v CRVAL2=%v", h["CRVAL1"], h["CRVAL2"])
	}
	if d, ok := view.DateObs(); !ok || d != "2016-02-16T20:00:00" {
		t.Fatalf("unexpected DATE-OBS %v", h["DATE-OBS"])
	}
	if scale, ok := view.PlateScale(); !ok || scale != 0.5 {
		t.Fatalf("unexpected plate scale %v", h[header.KeyPlateScale])
	}
	if odds, ok := view.Odds(); !ok || odds != 12.5 {
		t.Fatalf("unexpected odds %v", h[header.KeyOdds])
	}
	if _, ok := h["COMMENT"]; ok {
		t.Fatalf("COMMENT must be dropped")
	}
}

func TestPrimaryCommentsNeedsEnd(t *testing.T) {
	t.Parallel()

	if _, err := primaryComments(strings.NewReader(card("SIMPLE", "T"))); err == nil {
		t.Fatalf("expected error for a header without END")
	}
}

func TestReadHeaderRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.fits")
	if err := os.WriteFile(path, []byte("not a fits file"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := NewReader().ReadHeader(context.Background(), path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestReadHeaderCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewReader().ReadHeader(ctx, "/nonexistent.fits"); err == nil {
		t.Fatalf("expected context error")
	}
}

package astro

import (
	"math"
	"testing"
	"time"

	"ObservationsIndexer/internal/domain"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestParseSexagesimal(t *testing.T) {
	t.Parallel()

	ra, err := ParseRA("05 35 17.3")
	if err != nil {
		t.Fatalf("ParseRA: %v", err)
	}
	if !approx(ra, 83.82208, 1e-4) {
		t.Fatalf("unexpected ra %v", ra)
	}

	dec, err := ParseDec("-05:23:28")
	if err != nil {
		t.Fatalf("ParseDec: %v", err)
	}
	if !approx(dec, -5.39111, 1e-4) {
		t.Fatalf("unexpected dec %v", dec)
	}

	if _, err := ParseDec("+12 75 00"); err == nil {
		t.Fatalf("expected range error")
	}
	if _, err := ParseRA("abc"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseDateObs(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"2016-02-16T20:00:00", "2016-02-16T20:00:00.250", "2016-02-16 20:00:00"} {
		got, err := ParseDateObs(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got.Year() != 2016 || got.Month() != time.February || got.Day() != 16 || got.Hour() != 20 {
			t.Fatalf("%s: unexpected %v", in, got)
		}
	}
	if _, err := ParseDateObs("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMJD(t *testing.T) {
	t.Parallel()

	at := time.Date(2016, time.February, 16, 20, 0, 0, 0, time.UTC)
	if got := MJD(at); !approx(got, 57434.833333, 1e-5) {
		t.Fatalf("unexpected mjd %v", got)
	}
}

func TestToHorizontalPolaris(t *testing.T) {
	t.Parallel()

	gbt := domain.Location{Latitude: 53.24025, Longitude: 6.536444, Altitude: 40}
	at := time.Date(2016, time.February, 16, 20, 0, 0, 0, time.UTC)

	hz := NewTransformer().ToHorizontal(37.95, 89.264, gbt, at)

	if !approx(hz.Alt, gbt.Latitude, 1.0) {
		t.Fatalf("polaris altitude should be close to latitude, got %v", hz.Alt)
	}
	if hz.Az > 2 && hz.Az < 358 {
		t.Fatalf("polaris azimuth should be close to north, got %v", hz.Az)
	}
	if hz.Airmass == nil || *hz.Airmass < 1 || *hz.Airmass > 1.5 {
		t.Fatalf("unexpected airmass %v", hz.Airmass)
	}
}

func TestToHorizontalBelowHorizon(t *testing.T) {
	t.Parallel()

	gbt := domain.Location{Latitude: 53.24025, Longitude: 6.536444}
	at := time.Date(2016, time.February, 16, 20, 0, 0, 0, time.UTC)

	// Dec -80 never rises at this latitude.
	hz := NewTransformer().ToHorizontal(100, -80, gbt, at)
	if hz.Alt >= 0 {
		t.Fatalf("expected negative altitude, got %v", hz.Alt)
	}
	if hz.Airmass != nil {
		t.Fatalf("airmass should be unset below the horizon")
	}
}

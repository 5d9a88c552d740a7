// Package astro converts equatorial positions to the horizontal frame of a
// facility and parses the time and angle notations found in FITS headers.
package astro

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/unit"

	"ObservationsIndexer/internal/domain"
)

const mjdOffset = 2400000.5

// Transformer implements the coordinate-transform collaborator.
type Transformer struct{}

// NewTransformer returns a stateless transformer.
func NewTransformer() Transformer { return Transformer{} }

// ToHorizontal converts ra/dec (degrees) for an observer at loc at time at.
// Coordinates are taken as apparent; precession since J2000 is not applied.
// Airmass is left nil for objects at or below the horizon.
func (Transformer) ToHorizontal(ra, dec float64, loc domain.Location, at time.Time) domain.Horizontal {
	eq := &coord.Equatorial{
		RA:  unit.RAFromDeg(ra),
		Dec: unit.AngleFromDeg(dec),
	}
	// meeus counts longitude positive west.
	site := &globe.Coord{
		Lat: unit.AngleFromDeg(loc.Latitude),
		Lon: unit.AngleFromDeg(-loc.Longitude),
	}
	st := sidereal.Apparent(julian.TimeToJD(at.UTC()))

	var hz coord.Horizontal
	hz.EqToHz(eq, site, st)

	alt := hz.Alt.Deg()
	// meeus measures azimuth westward from south.
	az := math.Mod(hz.Az.Deg()+180, 360)
	if az < 0 {
		az += 360
	}

	out := domain.Horizontal{Alt: alt, Az: az}
	if alt > 0 {
		secz := 1 / math.Sin(hz.Alt.Rad())
		out.Airmass = &secz
	}
	return out
}

// MJD returns the modified Julian date of t.
func MJD(t time.Time) float64 {
	return julian.TimeToJD(t.UTC()) - mjdOffset
}

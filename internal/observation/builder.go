// Package observation turns a header and a resolved identity into a
// candidate record.
package observation

import (
	"fmt"
	"log/slog"
	"strings"

	"ObservationsIndexer/internal/astro"
	"ObservationsIndexer/internal/domain"
	"ObservationsIndexer/internal/identity"
	"ObservationsIndexer/internal/ports"
)

// Fields is the typed view of a header the builder reads.
type Fields interface {
	DateObs() (string, bool)
	ImageType() (string, bool)
	Filter() (string, bool)
	Object() (string, bool)
	Instrument() (string, bool)
	Binning() (x, y int, ok bool, err error)
	ExposureTime() (float64, bool)
	WCSReference() (ra, dec float64, ok bool)
	ObjectCoordinates() (ra, dec string, ok bool)
	TelescopeHorizontal() (alt, az float64, ok bool)
	Airmass() (float64, bool)
	PlateScale() (float64, bool)
	Odds() (float64, bool)
}

// Source is a path together with its classification and identity.
type Source struct {
	Path           string
	Classification identity.Classification
	Identity       domain.Identity
}

// Builder derives ObservationRecords.
type Builder struct {
	locations   map[domain.Facility]domain.Location
	transformer ports.CoordinateTransformer
	logger      *slog.Logger
}

// NewBuilder wires site locations and the coordinate transformer.
func NewBuilder(cfg identity.Config, transformer ports.CoordinateTransformer, logger *slog.Logger) *Builder {
	if transformer == nil {
		transformer = astro.NewTransformer()
	}
	return &Builder{
		locations:   cfg.Locations,
		transformer: transformer,
		logger:      logger,
	}
}

// Build assembles a candidate. It fails with a *domain.MissingFieldError when
// the capture time or exposure time is unavailable or binning is malformed.
func (b *Builder) Build(f Fields, src Source) (domain.Observation, error) {
	if !src.Identity.Valid() {
		return domain.Observation{}, &domain.PathError{Path: src.Path, Kind: domain.ErrIdentityResolution, Reason: "no identity"}
	}

	dateText, ok := f.DateObs()
	if !ok {
		return domain.Observation{}, &domain.MissingFieldError{Field: "DATE-OBS", Path: src.Path}
	}
	dateObs, err := astro.ParseDateObs(dateText)
	if err != nil {
		return domain.Observation{}, &domain.MissingFieldError{Field: "DATE-OBS", Path: src.Path, Detail: err.Error()}
	}

	exposure, ok := f.ExposureTime()
	if !ok {
		return domain.Observation{}, &domain.MissingFieldError{Field: "EXPTIME", Path: src.Path, Detail: "neither EXPTIME nor EXPOSURE is usable"}
	}

	binning, err := normalizeBinning(f)
	if err != nil {
		return domain.Observation{}, &domain.MissingFieldError{Field: "XBINNING/YBINNING", Path: src.Path, Detail: err.Error()}
	}

	imageType, hasImageType := f.ImageType()
	filter, hasFilter := f.Filter()
	object, hasObject := f.Object()

	obs := domain.Observation{
		Identity:     src.Identity,
		Filename:     src.Path,
		Stage:        src.Classification.Stage,
		DateObs:      dateObs,
		DateObsMJD:   astro.MJD(dateObs),
		ImageType:    InferImageType(optional(imageType, hasImageType), optional(filter, hasFilter), optional(object, hasObject)),
		Filter:       optional(filter, hasFilter),
		TargetObject: optional(object, hasObject),
		ExposureTime: exposure,
		Binning:      binning,
		Facility:     src.Classification.Facility,
	}
	if instrument, ok := f.Instrument(); ok {
		obs.Instrument = &instrument
	}
	if scale, ok := f.PlateScale(); ok {
		obs.PlateScale = &scale
	}
	if odds, ok := f.Odds(); ok {
		obs.Odds = &odds
	}

	obs.RA, obs.Dec = b.equatorial(f, src.Path)
	b.horizontal(f, &obs)
	applyProvenance(&obs, src)

	return obs, nil
}

// InferImageType classifies a frame from IMAGETYP, then FILTER, then OBJECT.
// An absent or empty OBJECT with nothing else to go on yields ImageTypeUnknown.
func InferImageType(imageType, filter, object *string) domain.ImageType {
	if imageType != nil {
		switch strings.ToLower(strings.TrimSpace(*imageType)) {
		case "bias", "bias frame", "zero":
			return domain.ImageTypeBias
		case "flat", "flat field", "flat frame":
			return domain.ImageTypeFlat
		case "dark", "dark frame":
			return domain.ImageTypeDark
		case "light", "light frame", "object", "science":
			return domain.ImageTypeLight
		}
	}

	if filter != nil && strings.EqualFold(strings.TrimSpace(*filter), "dark") {
		return domain.ImageTypeDark
	}

	if object == nil {
		return domain.ImageTypeUnknown
	}
	target := strings.ToLower(strings.TrimSpace(*object))
	switch {
	case target == "":
		return domain.ImageTypeUnknown
	case strings.HasPrefix(target, "flat"):
		return domain.ImageTypeFlat
	case strings.HasPrefix(target, "bias"):
		return domain.ImageTypeBias
	case strings.HasPrefix(target, "dark"):
		return domain.ImageTypeDark
	default:
		return domain.ImageTypeLight
	}
}

// equatorial prefers the WCS reference pixel, then the telescope pointing.
func (b *Builder) equatorial(f Fields, path string) (*float64, *float64) {
	if ra, dec, ok := f.WCSReference(); ok {
		return &ra, &dec
	}

	raText, decText, ok := f.ObjectCoordinates()
	if !ok {
		return nil, nil
	}
	ra, raErr := astro.ParseRA(raText)
	dec, decErr := astro.ParseDec(decText)
	if raErr != nil || decErr != nil {
		b.debug("ignore malformed pointing", "path", path, "ra", raText, "dec", decText)
		return nil, nil
	}
	return &ra, &dec
}

// horizontal computes alt/az/airmass from ra/dec at the facility site, and
// only without those falls back to the mount-reported values.
func (b *Builder) horizontal(f Fields, obs *domain.Observation) {
	loc, known := b.locations[obs.Facility]
	if obs.RA != nil && obs.Dec != nil && known {
		hz := b.transformer.ToHorizontal(*obs.RA, *obs.Dec, loc, obs.DateObs)
		obs.Alt = &hz.Alt
		obs.Az = &hz.Az
		obs.Airmass = hz.Airmass
		return
	}

	if alt, az, ok := f.TelescopeHorizontal(); ok {
		obs.Alt = &alt
		obs.Az = &az
	}
	if airmass, ok := f.Airmass(); ok {
		obs.Airmass = &airmass
	}
}

func applyProvenance(obs *domain.Observation, src Source) {
	switch src.Classification.Stage {
	case domain.StageAstrometricSolution:
		path := src.Path
		obs.HasSolution = true
		obs.SolutionFile = &path
		obs.RawFile = domain.PendingRawFile()
	case domain.StagePipelineDerived:
		obs.RawFile = domain.PendingRawFile()
	default:
		obs.RawFile = domain.KnownRawFile(src.Path)
	}
}

func normalizeBinning(f Fields) (*int, error) {
	x, y, ok, err := f.Binning()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if x < 1 || y < 1 {
		return nil, fmt.Errorf("non-positive binning %dx%d", x, y)
	}
	if x != y {
		return nil, nil
	}
	return &x, nil
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}

func (b *Builder) debug(msg string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

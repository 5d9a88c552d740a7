package domain

import (
	"fmt"
	"strings"
	"time"
)

// Facility enumerates the telescopes recognised by path convention.
type Facility int

const (
	FacilityUnknown Facility = iota
	FacilityGBT              // Gratama Bernoulli Telescope
	FacilityLDST             // Lauwersmeer Dark Sky Telescope
)

// String returns the facility name used in identities and storage.
func (f Facility) String() string {
	switch f {
	case FacilityGBT:
		return "GBT"
	case FacilityLDST:
		return "LDST"
	default:
		return "unknown"
	}
}

// ParseFacility maps a stored or configured name onto a Facility.
func ParseFacility(name string) (Facility, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "GBT":
		return FacilityGBT, nil
	case "LDST":
		return FacilityLDST, nil
	default:
		return FacilityUnknown, fmt.Errorf("unknown facility %q", name)
	}
}

// ProcessingStage tells which copy of an exposure a file is.
type ProcessingStage int

const (
	StageUnknown ProcessingStage = iota
	StageRaw
	StageAstrometricSolution
	StagePipelineDerived
)

func (s ProcessingStage) String() string {
	switch s {
	case StageRaw:
		return "raw"
	case StageAstrometricSolution:
		return "astrom"
	case StagePipelineDerived:
		return "pipeline"
	default:
		return "unknown"
	}
}

// ParseStage accepts the names produced by String.
func ParseStage(name string) (ProcessingStage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "raw":
		return StageRaw, nil
	case "astrom", "astrometry", "astrometric":
		return StageAstrometricSolution, nil
	case "pipeline", "pipe":
		return StagePipelineDerived, nil
	default:
		return StageUnknown, fmt.Errorf("unknown processing stage %q", name)
	}
}

// ImageType is the frame classification of an exposure.
type ImageType int

const (
	ImageTypeUnknown ImageType = iota
	ImageTypeBias
	ImageTypeDark
	ImageTypeFlat
	ImageTypeLight
)

func (t ImageType) String() string {
	switch t {
	case ImageTypeBias:
		return "Bias"
	case ImageTypeDark:
		return "Dark"
	case ImageTypeFlat:
		return "Flat"
	case ImageTypeLight:
		return "Light"
	default:
		return ""
	}
}

// ParseImageType reverses String; the empty string yields ImageTypeUnknown.
func ParseImageType(name string) (ImageType, error) {
	switch name {
	case "":
		return ImageTypeUnknown, nil
	case "Bias":
		return ImageTypeBias, nil
	case "Dark":
		return ImageTypeDark, nil
	case "Flat":
		return ImageTypeFlat, nil
	case "Light":
		return ImageTypeLight, nil
	default:
		return ImageTypeUnknown, fmt.Errorf("unknown image type %q", name)
	}
}

// Identity is the canonical key of one physical exposure:
// {facility}/{date-segment}/{stem}. The zero value means "no identity".
type Identity string

// NewIdentity composes an identity from its parts.
func NewIdentity(f Facility, dateSegment, stem string) Identity {
	return Identity(f.String() + "/" + dateSegment + "/" + stem)
}

func (id Identity) String() string { return string(id) }

// Valid reports whether the identity was resolved.
func (id Identity) Valid() bool { return id != "" }

type rawRefKind int

const (
	rawRefNone rawRefKind = iota
	rawRefKnown
	rawRefPending
)

// RawFileRef points at the raw-stage file of an exposure. An astrometric or
// pipeline copy cannot know it, so it carries PendingRawFile until the
// reconciler copies the value from the stored record.
type RawFileRef struct {
	kind rawRefKind
	path string
}

// KnownRawFile references a concrete raw file.
func KnownRawFile(path string) RawFileRef {
	return RawFileRef{kind: rawRefKnown, path: path}
}

// PendingRawFile marks the reference as needing a lookup.
func PendingRawFile() RawFileRef {
	return RawFileRef{kind: rawRefPending}
}

// Pending reports whether the reference still needs resolving.
func (r RawFileRef) Pending() bool { return r.kind == rawRefPending }

// Path returns the raw filename when it is known.
func (r RawFileRef) Path() (string, bool) {
	return r.path, r.kind == rawRefKnown
}

func (r RawFileRef) String() string {
	switch r.kind {
	case rawRefKnown:
		return r.path
	case rawRefPending:
		return "<pending>"
	default:
		return "<none>"
	}
}

// Location is a ground position used for horizontal coordinates.
// Longitude is east-positive degrees, altitude in metres.
type Location struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
}

// Observation is one exposure's metadata snapshot keyed by Identity.
type Observation struct {
	ID           int64
	Identity     Identity
	Filename     string
	RawFile      RawFileRef
	SolutionFile *string
	Stage        ProcessingStage
	HasSolution  bool

	DateObs    time.Time
	DateObsMJD float64

	RA      *float64
	Dec     *float64
	Alt     *float64
	Az      *float64
	Airmass *float64

	ImageType    ImageType
	Filter       *string
	TargetObject *string
	ExposureTime float64
	Binning      *int

	Facility   Facility
	Instrument *string
	PlateScale *float64
	Odds       *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Action is the outcome of reconciling one candidate.
type Action int

const (
	ActionSkip Action = iota
	ActionInsert
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	default:
		return "skip"
	}
}

// CatalogSummary describes what is stored.
type CatalogSummary struct {
	Count int64
	First *time.Time
	Last  *time.Time
}

// Horizontal is a position in the observer's frame, azimuth from north
// through east. Airmass is nil when it could not be determined.
type Horizontal struct {
	Alt     float64
	Az      float64
	Airmass *float64
}

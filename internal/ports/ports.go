package ports

import (
	"context"
	"time"

	"ObservationsIndexer/internal/domain"
	"ObservationsIndexer/internal/header"
)

// HeaderReader extracts the primary header of one FITS file.
type HeaderReader interface {
	ReadHeader(ctx context.Context, path string) (header.Header, error)
}

// CoordinateTransformer converts equatorial coordinates to the horizontal
// frame of a site. Implementations are pure.
type CoordinateTransformer interface {
	ToHorizontal(ra, dec float64, loc domain.Location, at time.Time) domain.Horizontal
}

// ObservationRepository stores one record per identity. Insert must return
// domain.ErrAlreadyExists when the identity is already taken.
type ObservationRepository interface {
	FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Observation, error)
	Insert(ctx context.Context, obs domain.Observation) (domain.Observation, error)
	Update(ctx context.Context, id domain.Identity, obs domain.Observation) error
	Summary(ctx context.Context) (domain.CatalogSummary, error)
}

// OutcomeRecorder counts per-record results of a batch.
type OutcomeRecorder interface {
	Record(action domain.Action)
	Failed(kind string)
}

// Notifier streams batch reports to Telegram or other channels.
type Notifier interface {
	PublishReport(ctx context.Context, report string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

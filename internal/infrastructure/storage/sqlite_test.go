package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"ObservationsIndexer/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLRepository {
	t.Helper()

	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewSQLiteRepository(db, "observations")
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	if err := repo.EnsureSchema(ctx, false); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return repo
}

func sampleObservation() domain.Observation {
	ra, dec, airmass := 10.68, 41.27, 1.2
	binning := 2
	filter := "V"
	return domain.Observation{
		Identity:     "GBT/160216/160216_Li_00000157",
		Filename:     "/net/vega/data/users/observatory/images/160216/cam/V/160216_Li_00000157.fits",
		RawFile:      domain.KnownRawFile("/net/vega/data/users/observatory/images/160216/cam/V/160216_Li_00000157.fits"),
		Stage:        domain.StageRaw,
		DateObs:      time.Date(2016, time.February, 16, 20, 0, 0, 0, time.UTC),
		DateObsMJD:   57434.8333,
		RA:           &ra,
		Dec:          &dec,
		Airmass:      &airmass,
		ImageType:    domain.ImageTypeLight,
		Filter:       &filter,
		ExposureTime: 30,
		Binning:      &binning,
		Facility:     domain.FacilityGBT,
	}
}

func TestSQLiteInsertFind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestSQLite(t)

	missing, err := repo.FindByIdentity(ctx, "GBT/000000/none")
	if err != nil || missing != nil {
		t.Fatalf("expected no record, got %v %v", missing, err)
	}

	inserted, err := repo.Insert(ctx, sampleObservation())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	got, err := repo.FindByIdentity(ctx, inserted.Identity)
	if err != nil || got == nil {
		t.Fatalf("FindByIdentity: %v %v", got, err)
	}
	if got.Filename != inserted.Filename || got.ImageType != domain.ImageTypeLight || got.Facility != domain.FacilityGBT {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.Binning == nil || *got.Binning != 2 || got.Alt != nil || got.RA == nil || *got.RA != 10.68 {
		t.Fatalf("unexpected optional fields %+v", got)
	}
	if p, ok := got.RawFile.Path(); !ok || p != inserted.Filename {
		t.Fatalf("unexpected raw file %v", got.RawFile)
	}
	if !got.DateObs.Equal(inserted.DateObs) {
		t.Fatalf("unexpected date %v", got.DateObs)
	}
}

func TestSQLiteUniqueBackstop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestSQLite(t)

	if _, err := repo.Insert(ctx, sampleObservation()); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_, err := repo.Insert(ctx, sampleObservation())
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestSQLiteUpdateKeepsSystemFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestSQLite(t)

	inserted, err := repo.Insert(ctx, sampleObservation())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	later := inserted.CreatedAt.Add(time.Hour)
	repo.now = func() time.Time { return later }

	update := sampleObservation()
	update.HasSolution = true
	update.Stage = domain.StageAstrometricSolution
	update.ID = 999
	update.CreatedAt = time.Unix(0, 0)
	if err := repo.Update(ctx, update.Identity, update); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.FindByIdentity(ctx, update.Identity)
	if err != nil || got == nil {
		t.Fatalf("FindByIdentity: %v", err)
	}
	if got.ID != inserted.ID {
		t.Fatalf("primary key changed: %d -> %d", inserted.ID, got.ID)
	}
	if !got.CreatedAt.Equal(inserted.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", inserted.CreatedAt, got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at not refreshed: %v", got.UpdatedAt)
	}
	if !got.HasSolution || got.Stage != domain.StageAstrometricSolution {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := repo.Update(ctx, "GBT/1/none", update); err == nil {
		t.Fatalf("expected error updating a missing identity")
	}
}

func TestSQLiteSummary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestSQLite(t)

	summary, err := repo.Summary(ctx)
	if err != nil || summary.Count != 0 {
		t.Fatalf("empty summary: %+v %v", summary, err)
	}

	first := sampleObservation()
	second := sampleObservation()
	second.Identity = "GBT/160217/frame"
	second.DateObs = first.DateObs.Add(24 * time.Hour)
	for _, obs := range []domain.Observation{second, first} {
		if _, err := repo.Insert(ctx, obs); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	summary, err = repo.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Count != 2 || !summary.First.Equal(first.DateObs) || !summary.Last.Equal(second.DateObs) {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestRepositoryRejectsBadTableName(t *testing.T) {
	t.Parallel()

	db, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	if _, err := NewSQLiteRepository(db, "obs; DROP TABLE x"); err == nil {
		t.Fatalf("expected invalid table name error")
	}
}

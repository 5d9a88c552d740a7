package reconcile

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"ObservationsIndexer/internal/domain"
	"ObservationsIndexer/internal/infrastructure/storage"
)

const rawPath = "/net/vega/data/users/observatory/images/160216/STL-6303E/i/160216_Li_00000157.fits"
const astromPath = "/net/dataserver3/data/users/noelstorr/blaauwastrom/160216/astrom_160216_Li_00000157.fits"

func rawCandidate() domain.Observation {
	binning := 2
	return domain.Observation{
		Identity:     "GBT/160216/160216_Li_00000157",
		Filename:     rawPath,
		RawFile:      domain.KnownRawFile(rawPath),
		Stage:        domain.StageRaw,
		DateObs:      time.Date(2016, time.February, 16, 20, 0, 0, 0, time.UTC),
		ImageType:    domain.ImageTypeLight,
		ExposureTime: 30,
		Binning:      &binning,
		Facility:     domain.FacilityGBT,
	}
}

func astromCandidate() domain.Observation {
	obs := rawCandidate()
	ra, dec := 10.68, 41.27
	path := astromPath
	obs.Filename = astromPath
	obs.Stage = domain.StageAstrometricSolution
	obs.HasSolution = true
	obs.SolutionFile = &path
	obs.RawFile = domain.PendingRawFile()
	obs.RA, obs.Dec = &ra, &dec
	return obs
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func withoutUpdatedAt(obs domain.Observation) domain.Observation {
	obs.UpdatedAt = time.Time{}
	return obs
}

func TestReconcileIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	engine := NewEngine(repo, nil)

	action, err := engine.Reconcile(ctx, rawCandidate())
	if err != nil || action != domain.ActionInsert {
		t.Fatalf("first reconcile: %v %v", action, err)
	}
	first, _ := repo.FindByIdentity(ctx, rawCandidate().Identity)

	action, err = engine.Reconcile(ctx, rawCandidate())
	if err != nil || action != domain.ActionUpdate {
		t.Fatalf("second reconcile: %v %v", action, err)
	}
	second, _ := repo.FindByIdentity(ctx, rawCandidate().Identity)

	if repo.Len() != 1 {
		t.Fatalf("expected one record, got %d", repo.Len())
	}
	a, b := withoutUpdatedAt(*first), withoutUpdatedAt(*second)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("stored state changed:\n%+v\n%+v", a, b)
	}
}

func TestReconcileSolutionAfterRawPreservesProvenance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	logger, logs := bufferLogger()
	engine := NewEngine(repo, logger)

	if _, err := engine.Reconcile(ctx, rawCandidate()); err != nil {
		t.Fatalf("raw: %v", err)
	}
	action, err := engine.Reconcile(ctx, astromCandidate())
	if err != nil || action != domain.ActionUpdate {
		t.Fatalf("astrom: %v %v", action, err)
	}

	got, _ := repo.FindByIdentity(ctx, rawCandidate().Identity)
	if !got.HasSolution {
		t.Fatalf("has_solution should be set")
	}
	if p, ok := got.RawFile.Path(); !ok || p != rawPath {
		t.Fatalf("raw file reference lost: %v", got.RawFile)
	}
	if got.Filename != astromPath {
		t.Fatalf("unexpected filename %s", got.Filename)
	}
	if strings.Contains(logs.String(), "level=WARN") {
		t.Fatalf("no warning expected, got %s", logs.String())
	}
}

func TestReconcileRawAfterSolutionWarnsButUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	logger, logs := bufferLogger()
	engine := NewEngine(repo, logger)

	action, err := engine.Reconcile(ctx, astromCandidate())
	if err != nil || action != domain.ActionInsert {
		t.Fatalf("astrom: %v %v", action, err)
	}
	stored, _ := repo.FindByIdentity(ctx, astromCandidate().Identity)
	if _, ok := stored.RawFile.Path(); ok || stored.RawFile.Pending() {
		t.Fatalf("inserted astrometric record should carry no raw reference, got %v", stored.RawFile)
	}

	action, err = engine.Reconcile(ctx, rawCandidate())
	if err != nil || action != domain.ActionUpdate {
		t.Fatalf("raw: %v %v", action, err)
	}
	if !strings.Contains(logs.String(), "astrometric solution") {
		t.Fatalf("expected degradation warning, got %s", logs.String())
	}

	got, _ := repo.FindByIdentity(ctx, rawCandidate().Identity)
	if got.HasSolution {
		t.Fatalf("last write wins: has_solution should be cleared")
	}
	if p, _ := got.RawFile.Path(); p != rawPath {
		t.Fatalf("raw file should now be known, got %v", got.RawFile)
	}
}

func TestReconcileDuplicateWarning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger, logs := bufferLogger()
	engine := NewEngine(storage.NewMemoryRepository(), logger)

	_, _ = engine.Reconcile(ctx, rawCandidate())
	other := rawCandidate()
	other.Filename = "/net/vega/data/users/observatory/images/160216/copy/160216_Li_00000157.fits"
	if _, err := engine.Reconcile(ctx, other); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !strings.Contains(logs.String(), "potential duplicate") {
		t.Fatalf("expected duplicate warning, got %s", logs.String())
	}
}

func TestReconcileConcurrentSameIdentity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	engine := NewEngine(repo, nil)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inserts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cand := rawCandidate()
			cand.ExposureTime = float64(i + 1)
			action, err := engine.Reconcile(ctx, cand)
			if err != nil {
				t.Errorf("reconcile %d: %v", i, err)
				return
			}
			if action == domain.ActionInsert {
				mu.Lock()
				inserts++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if repo.Len() != 1 || inserts != 1 {
		t.Fatalf("expected one record and one insert, got %d records, %d inserts", repo.Len(), inserts)
	}
}

// racingRepository hides the first stored record from lookups, the way a
// second process inserting between lookup and insert would.
type racingRepository struct {
	*storage.MemoryRepository
	hidden int
}

func (r *racingRepository) FindByIdentity(ctx context.Context, id domain.Identity) (*domain.Observation, error) {
	if r.hidden > 0 {
		r.hidden--
		return nil, nil
	}
	return r.MemoryRepository.FindByIdentity(ctx, id)
}

func TestReconcileBackstopTurnsIntoUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := storage.NewMemoryRepository()
	if _, err := mem.Insert(ctx, rawCandidate()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	repo := &racingRepository{MemoryRepository: mem, hidden: 1}
	engine := NewEngine(repo, nil)

	cand := rawCandidate()
	cand.ExposureTime = 60
	action, err := engine.Reconcile(ctx, cand)
	if err != nil || action != domain.ActionUpdate {
		t.Fatalf("expected update after conflict, got %v %v", action, err)
	}
	got, _ := mem.FindByIdentity(ctx, cand.Identity)
	if got.ExposureTime != 60 || mem.Len() != 1 {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestReconcilePersistentConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := storage.NewMemoryRepository()
	if _, err := mem.Insert(ctx, rawCandidate()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	engine := NewEngine(&racingRepository{MemoryRepository: mem, hidden: 2}, nil)
	_, err := engine.Reconcile(ctx, rawCandidate())
	if !errors.Is(err, domain.ErrStorageConflict) {
		t.Fatalf("expected storage conflict, got %v", err)
	}
}

func TestMergeResolvesPendingRawFile(t *testing.T) {
	t.Parallel()

	existing := rawCandidate()
	existing.ID = 7
	existing.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	merged := Merge(existing, astromCandidate())
	if p, ok := merged.RawFile.Path(); !ok || p != rawPath {
		t.Fatalf("unexpected raw file %v", merged.RawFile)
	}
	if merged.ID != 7 || !merged.CreatedAt.Equal(existing.CreatedAt) {
		t.Fatalf("system fields must come from the stored record")
	}
	if merged.Filename != astromPath {
		t.Fatalf("candidate fields must win")
	}
}

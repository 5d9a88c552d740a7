// Package reconcile applies candidate observations to storage with
// insert-or-update semantics, one record per identity.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ObservationsIndexer/internal/domain"
	"ObservationsIndexer/internal/ports"
)

// Engine decides between insert and update for each candidate. Reconcile is
// safe for concurrent use: calls for the same identity are serialized, and a
// uniqueness violation from storage is retried once as an update.
type Engine struct {
	repo   ports.ObservationRepository
	logger *slog.Logger
	locks  *keyedMutex
}

// NewEngine wires the repository.
func NewEngine(repo ports.ObservationRepository, logger *slog.Logger) *Engine {
	return &Engine{
		repo:   repo,
		logger: logger,
		locks:  newKeyedMutex(),
	}
}

// Reconcile stores candidate and reports the action taken.
func (e *Engine) Reconcile(ctx context.Context, candidate domain.Observation) (domain.Action, error) {
	if e.repo == nil {
		return domain.ActionSkip, fmt.Errorf("observation repository is not configured")
	}
	if !candidate.Identity.Valid() {
		return domain.ActionSkip, &domain.PathError{Path: candidate.Filename, Kind: domain.ErrIdentityResolution, Reason: "candidate has no identity"}
	}

	unlock := e.locks.Lock(candidate.Identity.String())
	defer unlock()

	action, err := e.apply(ctx, candidate, true)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return action, err
	}

	e.warn("identity appeared concurrently, retrying as update", "identity", candidate.Identity, "file", candidate.Filename)
	action, err = e.apply(ctx, candidate, false)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return domain.ActionSkip, fmt.Errorf("%w: %s: %v", domain.ErrStorageConflict, candidate.Identity, err)
	}
	return action, err
}

func (e *Engine) apply(ctx context.Context, candidate domain.Observation, allowInsert bool) (domain.Action, error) {
	existing, err := e.repo.FindByIdentity(ctx, candidate.Identity)
	if err != nil {
		return domain.ActionSkip, fmt.Errorf("lookup %s: %w", candidate.Identity, err)
	}

	if existing == nil {
		if !allowInsert {
			return domain.ActionSkip, fmt.Errorf("%w: %s vanished after a uniqueness violation", domain.ErrStorageConflict, candidate.Identity)
		}
		if _, err := e.repo.Insert(ctx, candidate); err != nil {
			return domain.ActionSkip, fmt.Errorf("insert %s: %w", candidate.Identity, err)
		}
		return domain.ActionInsert, nil
	}

	update := Merge(*existing, candidate)
	e.checkConflicts(*existing, update)

	if err := e.repo.Update(ctx, candidate.Identity, update); err != nil {
		return domain.ActionSkip, fmt.Errorf("update %s: %w", candidate.Identity, err)
	}
	return domain.ActionUpdate, nil
}

// Merge prepares candidate for writing over existing: a pending raw-file
// reference takes the stored value, and system-managed fields come from the
// stored record.
func Merge(existing, candidate domain.Observation) domain.Observation {
	out := candidate
	if out.RawFile.Pending() {
		out.RawFile = existing.RawFile
	}
	out.ID = existing.ID
	out.CreatedAt = existing.CreatedAt
	out.UpdatedAt = existing.UpdatedAt
	return out
}

// checkConflicts only logs; last write wins.
func (e *Engine) checkConflicts(existing, candidate domain.Observation) {
	switch {
	case existing.HasSolution && !candidate.HasSolution:
		e.warn("updating record that has an astrometric solution with one that does not",
			"identity", candidate.Identity, "existing", existing.Filename, "candidate", candidate.Filename)
	case !existing.HasSolution && !candidate.HasSolution:
		e.warn("potential duplicate: updating record without solution from another file without solution",
			"identity", candidate.Identity, "existing", existing.Filename, "candidate", candidate.Filename)
	}
}

func (e *Engine) warn(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ObservationsIndexer/internal/domain"
	"ObservationsIndexer/internal/ports"
)

// MemoryRepository keeps observations in a map. It enforces the same
// uniqueness rule as the SQL tables and backs dry runs and tests.
type MemoryRepository struct {
	mu     sync.Mutex
	byID   map[domain.Identity]domain.Observation
	nextID int64
	now    func() time.Time
}

var _ ports.ObservationRepository = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: map[domain.Identity]domain.Observation{},
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// FindByIdentity returns a copy of the stored record or nil.
func (r *MemoryRepository) FindByIdentity(_ context.Context, id domain.Identity) (*domain.Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obs, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &obs, nil
}

// Insert stores obs or fails with domain.ErrAlreadyExists.
func (r *MemoryRepository) Insert(_ context.Context, obs domain.Observation) (domain.Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[obs.Identity]; ok {
		return domain.Observation{}, fmt.Errorf("insert %s: %w", obs.Identity, domain.ErrAlreadyExists)
	}

	r.nextID++
	now := r.now()
	obs = storable(obs)
	obs.ID = r.nextID
	obs.CreatedAt = now
	obs.UpdatedAt = now
	r.byID[obs.Identity] = obs
	return obs, nil
}

// Update overwrites the updatable fields of the record stored under id.
func (r *MemoryRepository) Update(_ context.Context, id domain.Identity, obs domain.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("update %s: no such observation", id)
	}

	obs = storable(obs)
	obs.Identity = id
	obs.ID = existing.ID
	obs.CreatedAt = existing.CreatedAt
	obs.UpdatedAt = r.now()
	r.byID[id] = obs
	return nil
}

// Summary reports the record count and the capture-date range.
func (r *MemoryRepository) Summary(_ context.Context) (domain.CatalogSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var summary domain.CatalogSummary
	for _, obs := range r.byID {
		summary.Count++
		d := obs.DateObs
		if summary.First == nil || d.Before(*summary.First) {
			summary.First = &d
		}
		if summary.Last == nil || d.After(*summary.Last) {
			summary.Last = &d
		}
	}
	return summary, nil
}

// Len returns the number of stored records.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// storable mirrors what a SQL column can hold: an unresolved raw-file
// reference is stored as no reference.
func storable(obs domain.Observation) domain.Observation {
	if _, known := obs.RawFile.Path(); !known {
		obs.RawFile = domain.RawFileRef{}
	}
	return obs
}

package repository

import (
	"context"
	"fmt"
	"sync"

	"wisefido-census/internal/domain"
)

// MemoryShiftRecordsRepo in-process store used when Postgres is not configured and in tests.
// Records are cloned on the way in and out so callers never share state with the store.
type MemoryShiftRecordsRepo struct {
	mu      sync.RWMutex
	records map[domain.ShiftKey]*domain.ShiftRecord
}

func NewMemoryShiftRecordsRepo() *MemoryShiftRecordsRepo {
	return &MemoryShiftRecordsRepo{records: map[domain.ShiftKey]*domain.ShiftRecord{}}
}

var _ ShiftRecordsRepository = (*MemoryShiftRecordsRepo)(nil)

func (r *MemoryShiftRecordsRepo) GetShiftRecord(ctx context.Context, key domain.ShiftKey) (*domain.ShiftRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, fmt.Errorf("shift record %s: %w", key, domain.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (r *MemoryShiftRecordsRepo) PutShiftRecordIfVersion(ctx context.Context, rec *domain.ShiftRecord, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rec.Key()
	current, exists := r.records[key]
	switch {
	case expectedVersion == 0 && exists:
		return fmt.Errorf("shift record %s already exists: %w", key, domain.ErrVersionConflict)
	case expectedVersion != 0 && !exists:
		return fmt.Errorf("shift record %s missing, expected version %d: %w", key, expectedVersion, domain.ErrVersionConflict)
	case exists && current.Version != expectedVersion:
		return fmt.Errorf("shift record %s at version %d, expected %d: %w",
			key, current.Version, expectedVersion, domain.ErrVersionConflict)
	}

	rec.Version = expectedVersion + 1
	r.records[key] = rec.Clone()
	return nil
}

func (r *MemoryShiftRecordsRepo) ListShiftRecordsByWardDate(ctx context.Context, wardID, date string) ([]*domain.ShiftRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.ShiftRecord, 0, 2)
	for _, shift := range []domain.ShiftKind{domain.ShiftMorning, domain.ShiftNight} {
		if rec, ok := r.records[domain.ShiftKey{WardID: wardID, Date: date, Shift: shift}]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wisefido-census/internal/domain"
)

type summaryKey struct {
	wardID string
	date   string
}

// MemoryDailySummariesRepo in-process summary store.
type MemoryDailySummariesRepo struct {
	mu        sync.RWMutex
	summaries map[summaryKey]*domain.DailySummary
}

func NewMemoryDailySummariesRepo() *MemoryDailySummariesRepo {
	return &MemoryDailySummariesRepo{summaries: map[summaryKey]*domain.DailySummary{}}
}

var _ DailySummariesRepository = (*MemoryDailySummariesRepo)(nil)

func (r *MemoryDailySummariesRepo) GetDailySummary(ctx context.Context, wardID, date string) (*domain.DailySummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.summaries[summaryKey{wardID, date}]
	if !ok {
		return nil, fmt.Errorf("daily summary %s/%s: %w", wardID, date, domain.ErrNotFound)
	}
	return s.Clone(), nil
}

func (r *MemoryDailySummariesRepo) PutDailySummaryIfVersion(ctx context.Context, s *domain.DailySummary, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := summaryKey{s.WardID, s.Date}
	current, exists := r.summaries[key]
	switch {
	case expectedVersion == 0 && exists:
		return fmt.Errorf("daily summary %s/%s already exists: %w", s.WardID, s.Date, domain.ErrVersionConflict)
	case expectedVersion != 0 && !exists:
		return fmt.Errorf("daily summary %s/%s missing, expected version %d: %w",
			s.WardID, s.Date, expectedVersion, domain.ErrVersionConflict)
	case exists && current.Version != expectedVersion:
		return fmt.Errorf("daily summary %s/%s at version %d, expected %d: %w",
			s.WardID, s.Date, current.Version, expectedVersion, domain.ErrVersionConflict)
	}

	s.Version = expectedVersion + 1
	r.summaries[key] = s.Clone()
	return nil
}

func (r *MemoryDailySummariesRepo) ListDailySummariesByDate(ctx context.Context, date string) ([]*domain.DailySummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.DailySummary{}
	for k, s := range r.summaries {
		if k.date == date {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WardID < out[j].WardID })
	return out, nil
}

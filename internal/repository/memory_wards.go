package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wisefido-census/internal/domain"
)

// MemoryWardsRepo ward directory seeded at startup (CENSUS_WARDS) or by tests.
type MemoryWardsRepo struct {
	mu    sync.RWMutex
	wards map[string]domain.Ward
}

func NewMemoryWardsRepo(wards ...domain.Ward) *MemoryWardsRepo {
	r := &MemoryWardsRepo{wards: map[string]domain.Ward{}}
	for _, w := range wards {
		r.wards[w.WardID] = w
	}
	return r
}

var _ WardsRepository = (*MemoryWardsRepo)(nil)

// UpsertWard adds or replaces a ward.
func (r *MemoryWardsRepo) UpsertWard(w domain.Ward) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wards[w.WardID] = w
}

func (r *MemoryWardsRepo) GetWard(_ context.Context, wardID string) (*domain.Ward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.wards[wardID]
	if !ok {
		return nil, fmt.Errorf("ward %s: %w", wardID, domain.ErrNotFound)
	}
	return &w, nil
}

func (r *MemoryWardsRepo) ListWards(_ context.Context, activeOnly bool) ([]*domain.Ward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Ward, 0, len(r.wards))
	for _, w := range r.wards {
		if activeOnly && !w.Active {
			continue
		}
		w := w
		out = append(out, &w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WardID < out[j].WardID })
	return out, nil
}

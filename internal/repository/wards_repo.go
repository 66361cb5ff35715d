package repository

import (
	"context"

	"wisefido-census/internal/domain"
)

// WardsRepository read-only ward reference data.
type WardsRepository interface {
	// GetWard returns domain.ErrNotFound for unknown wards.
	GetWard(ctx context.Context, wardID string) (*domain.Ward, error)

	// ListWards ordered by ward_id; activeOnly filters out inactive wards.
	ListWards(ctx context.Context, activeOnly bool) ([]*domain.Ward, error)
}

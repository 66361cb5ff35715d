package repository

import (
	"context"

	"wisefido-census/internal/domain"
)

// DailySummariesRepository storage for per-ward daily summaries. Summaries are never deleted.
type DailySummariesRepository interface {
	// GetDailySummary returns domain.ErrNotFound when the ward/date has no summary yet.
	GetDailySummary(ctx context.Context, wardID, date string) (*domain.DailySummary, error)

	// PutDailySummaryIfVersion same contract as PutShiftRecordIfVersion.
	PutDailySummaryIfVersion(ctx context.Context, s *domain.DailySummary, expectedVersion int64) error

	// ListDailySummariesByDate every stored summary for date, ordered by ward_id.
	ListDailySummariesByDate(ctx context.Context, date string) ([]*domain.DailySummary, error)
}

package repository

import (
	"context"

	"wisefido-census/internal/domain"
)

// ShiftRecordsRepository durable keyed storage for shift records.
// Every write is version-checked; the store never offers multi-record transactions.
type ShiftRecordsRepository interface {
	// GetShiftRecord returns domain.ErrNotFound when no record exists under key.
	GetShiftRecord(ctx context.Context, key domain.ShiftKey) (*domain.ShiftRecord, error)

	// PutShiftRecordIfVersion writes rec only if the stored version equals expectedVersion.
	// expectedVersion 0 means "insert, the key must not exist yet".
	// On success rec.Version is set to expectedVersion+1.
	// A missing record counts as version 0.
	// A lost race returns domain.ErrVersionConflict.
	PutShiftRecordIfVersion(ctx context.Context, rec *domain.ShiftRecord, expectedVersion int64) error

	// ListShiftRecordsByWardDate returns the (at most two) records of a ward/date, MORNING first.
	ListShiftRecordsByWardDate(ctx context.Context, wardID, date string) ([]*domain.ShiftRecord, error)
}

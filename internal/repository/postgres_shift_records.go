package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wisefido-census/internal/domain"
)

// PostgresShiftRecordsRepository shift_records table (see sql/census_schema.sql).
type PostgresShiftRecordsRepository struct {
	db *sql.DB
}

func NewPostgresShiftRecordsRepository(db *sql.DB) *PostgresShiftRecordsRepository {
	return &PostgresShiftRecordsRepository{db: db}
}

var _ ShiftRecordsRepository = (*PostgresShiftRecordsRepository)(nil)

const shiftRecordColumns = `
	record_id::text,
	ward_id,
	shift_date::text,
	shift,
	patient_census,
	previous_census,
	census_source,
	movements,
	staffing,
	notes,
	status,
	recorded_by,
	approved_by,
	rejected_by,
	rejection_reason,
	edit_history,
	version,
	created_at,
	updated_at,
	finalized_at,
	approved_at,
	rejected_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShiftRecord(row rowScanner) (*domain.ShiftRecord, error) {
	var (
		rec                                  domain.ShiftRecord
		censusSource, notes                  sql.NullString
		approvedBy, rejectedBy, rejectReason sql.NullString
		movements, staffing, editHistory     []byte
		finalizedAt, approvedAt, rejectedAt  sql.NullTime
	)
	err := row.Scan(
		&rec.RecordID,
		&rec.WardID,
		&rec.Date,
		&rec.Shift,
		&rec.PatientCensus,
		&rec.PreviousCensus,
		&censusSource,
		&movements,
		&staffing,
		&notes,
		&rec.Status,
		&rec.RecordedBy,
		&approvedBy,
		&rejectedBy,
		&rejectReason,
		&editHistory,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&finalizedAt,
		&approvedAt,
		&rejectedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.CensusSource = domain.CensusSource(censusSource.String)
	rec.Notes = notes.String
	rec.ApprovedBy = approvedBy.String
	rec.RejectedBy = rejectedBy.String
	rec.RejectionReason = rejectReason.String
	rec.FinalizedAt = nullTimePtr(finalizedAt)
	rec.ApprovedAt = nullTimePtr(approvedAt)
	rec.RejectedAt = nullTimePtr(rejectedAt)

	if err := unmarshalJSONB(movements, &rec.Movements); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(staffing, &rec.Staffing); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(editHistory, &rec.EditHistory); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PostgresShiftRecordsRepository) GetShiftRecord(ctx context.Context, key domain.ShiftKey) (*domain.ShiftRecord, error) {
	query := `SELECT` + shiftRecordColumns + `
		FROM shift_records
		WHERE ward_id = $1 AND shift_date = $2 AND shift = $3`

	rec, err := scanShiftRecord(r.db.QueryRowContext(ctx, query, key.WardID, key.Date, string(key.Shift)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("shift record %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get shift record: %w", err)
	}
	return rec, nil
}

func (r *PostgresShiftRecordsRepository) PutShiftRecordIfVersion(ctx context.Context, rec *domain.ShiftRecord, expectedVersion int64) error {
	movements, err := marshalJSONB(rec.Movements)
	if err != nil {
		return err
	}
	staffing, err := marshalJSONB(rec.Staffing)
	if err != nil {
		return err
	}
	editHistory, err := marshalJSONB(rec.EditHistory)
	if err != nil {
		return err
	}

	var res sql.Result
	if expectedVersion == 0 {
		res, err = r.db.ExecContext(ctx, `
			INSERT INTO shift_records (
				record_id, ward_id, shift_date, shift,
				patient_census, previous_census, census_source,
				movements, staffing, notes, status,
				recorded_by, approved_by, rejected_by, rejection_reason,
				edit_history, version, created_at, updated_at,
				finalized_at, approved_at, rejected_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
				$12, $13, $14, $15, $16, 1, $17, $18, $19, $20, $21
			)
			ON CONFLICT (ward_id, shift_date, shift) DO NOTHING`,
			rec.RecordID, rec.WardID, rec.Date, string(rec.Shift),
			rec.PatientCensus, rec.PreviousCensus, nullString(string(rec.CensusSource)),
			movements, staffing, nullString(rec.Notes), string(rec.Status),
			rec.RecordedBy, nullString(rec.ApprovedBy), nullString(rec.RejectedBy), nullString(rec.RejectionReason),
			editHistory, rec.CreatedAt, rec.UpdatedAt,
			timePtrArg(rec.FinalizedAt), timePtrArg(rec.ApprovedAt), timePtrArg(rec.RejectedAt),
		)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE shift_records SET
				patient_census = $4,
				previous_census = $5,
				census_source = $6,
				movements = $7,
				staffing = $8,
				notes = $9,
				status = $10,
				recorded_by = $11,
				approved_by = $12,
				rejected_by = $13,
				rejection_reason = $14,
				edit_history = $15,
				version = version + 1,
				updated_at = $16,
				finalized_at = $17,
				approved_at = $18,
				rejected_at = $19
			WHERE ward_id = $1 AND shift_date = $2 AND shift = $3 AND version = $20`,
			rec.WardID, rec.Date, string(rec.Shift),
			rec.PatientCensus, rec.PreviousCensus, nullString(string(rec.CensusSource)),
			movements, staffing, nullString(rec.Notes), string(rec.Status),
			rec.RecordedBy, nullString(rec.ApprovedBy), nullString(rec.RejectedBy), nullString(rec.RejectionReason),
			editHistory, rec.UpdatedAt,
			timePtrArg(rec.FinalizedAt), timePtrArg(rec.ApprovedAt), timePtrArg(rec.RejectedAt),
			expectedVersion,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to put shift record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to put shift record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("shift record %s not at version %d: %w", rec.Key(), expectedVersion, domain.ErrVersionConflict)
	}
	rec.Version = expectedVersion + 1
	return nil
}

func (r *PostgresShiftRecordsRepository) ListShiftRecordsByWardDate(ctx context.Context, wardID, date string) ([]*domain.ShiftRecord, error) {
	query := `SELECT` + shiftRecordColumns + `
		FROM shift_records
		WHERE ward_id = $1 AND shift_date = $2
		ORDER BY CASE shift WHEN 'MORNING' THEN 0 ELSE 1 END`

	rows, err := r.db.QueryContext(ctx, query, wardID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list shift records: %w", err)
	}
	defer rows.Close()

	out := []*domain.ShiftRecord{}
	for rows.Next() {
		rec, err := scanShiftRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list shift records: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func timePtrArg(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

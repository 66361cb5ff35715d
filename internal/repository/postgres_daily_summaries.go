package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-census/internal/domain"
)

// PostgresDailySummariesRepository daily_summaries table.
type PostgresDailySummariesRepository struct {
	db *sql.DB
}

func NewPostgresDailySummariesRepository(db *sql.DB) *PostgresDailySummariesRepository {
	return &PostgresDailySummariesRepository{db: db}
}

var _ DailySummariesRepository = (*PostgresDailySummariesRepository)(nil)

const dailySummaryColumns = `
	summary_id::text,
	ward_id,
	summary_date::text,
	morning_record_id::text,
	morning_version,
	night_record_id::text,
	night_version,
	opening_census,
	morning_census,
	closing_census,
	movements,
	total_admissions,
	total_departures,
	total_discharges,
	morning_staffing,
	night_staffing,
	status,
	attestation,
	version,
	created_at,
	updated_at`

func scanDailySummary(row rowScanner) (*domain.DailySummary, error) {
	var (
		s                                   domain.DailySummary
		movements, morningStaff, nightStaff []byte
		attestation                         []byte
	)
	err := row.Scan(
		&s.SummaryID,
		&s.WardID,
		&s.Date,
		&s.MorningRecordID,
		&s.MorningVersion,
		&s.NightRecordID,
		&s.NightVersion,
		&s.OpeningCensus,
		&s.MorningCensus,
		&s.ClosingCensus,
		&movements,
		&s.TotalAdmissions,
		&s.TotalDepartures,
		&s.TotalDischarges,
		&morningStaff,
		&nightStaff,
		&s.Status,
		&attestation,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(movements, &s.Movements); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(morningStaff, &s.MorningStaffing); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(nightStaff, &s.NightStaffing); err != nil {
		return nil, err
	}
	if len(attestation) > 0 && string(attestation) != "null" {
		s.Attestation = &domain.Attestation{}
		if err := unmarshalJSONB(attestation, s.Attestation); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func (r *PostgresDailySummariesRepository) GetDailySummary(ctx context.Context, wardID, date string) (*domain.DailySummary, error) {
	query := `SELECT` + dailySummaryColumns + `
		FROM daily_summaries
		WHERE ward_id = $1 AND summary_date = $2`

	s, err := scanDailySummary(r.db.QueryRowContext(ctx, query, wardID, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("daily summary %s/%s: %w", wardID, date, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get daily summary: %w", err)
	}
	return s, nil
}

func (r *PostgresDailySummariesRepository) PutDailySummaryIfVersion(ctx context.Context, s *domain.DailySummary, expectedVersion int64) error {
	movements, err := marshalJSONB(s.Movements)
	if err != nil {
		return err
	}
	morningStaff, err := marshalJSONB(s.MorningStaffing)
	if err != nil {
		return err
	}
	nightStaff, err := marshalJSONB(s.NightStaffing)
	if err != nil {
		return err
	}
	var attestation any
	if s.Attestation != nil {
		b, err := marshalJSONB(s.Attestation)
		if err != nil {
			return err
		}
		attestation = b
	}

	var res sql.Result
	if expectedVersion == 0 {
		res, err = r.db.ExecContext(ctx, `
			INSERT INTO daily_summaries (
				summary_id, ward_id, summary_date,
				morning_record_id, morning_version, night_record_id, night_version,
				opening_census, morning_census, closing_census, movements,
				total_admissions, total_departures, total_discharges,
				morning_staffing, night_staffing, status, attestation,
				version, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
				$12, $13, $14, $15, $16, $17, $18, 1, $19, $20
			)
			ON CONFLICT (ward_id, summary_date) DO NOTHING`,
			s.SummaryID, s.WardID, s.Date,
			s.MorningRecordID, s.MorningVersion, s.NightRecordID, s.NightVersion,
			s.OpeningCensus, s.MorningCensus, s.ClosingCensus, movements,
			s.TotalAdmissions, s.TotalDepartures, s.TotalDischarges,
			morningStaff, nightStaff, string(s.Status), attestation,
			s.CreatedAt, s.UpdatedAt,
		)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE daily_summaries SET
				morning_record_id = $3,
				morning_version = $4,
				night_record_id = $5,
				night_version = $6,
				opening_census = $7,
				morning_census = $8,
				closing_census = $9,
				movements = $10,
				total_admissions = $11,
				total_departures = $12,
				total_discharges = $13,
				morning_staffing = $14,
				night_staffing = $15,
				status = $16,
				attestation = $17,
				version = version + 1,
				updated_at = $18
			WHERE ward_id = $1 AND summary_date = $2 AND version = $19`,
			s.WardID, s.Date,
			s.MorningRecordID, s.MorningVersion, s.NightRecordID, s.NightVersion,
			s.OpeningCensus, s.MorningCensus, s.ClosingCensus, movements,
			s.TotalAdmissions, s.TotalDepartures, s.TotalDischarges,
			morningStaff, nightStaff, string(s.Status), attestation,
			s.UpdatedAt, expectedVersion,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to put daily summary: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to put daily summary: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("daily summary %s/%s not at version %d: %w", s.WardID, s.Date, expectedVersion, domain.ErrVersionConflict)
	}
	s.Version = expectedVersion + 1
	return nil
}

func (r *PostgresDailySummariesRepository) ListDailySummariesByDate(ctx context.Context, date string) ([]*domain.DailySummary, error) {
	query := `SELECT` + dailySummaryColumns + `
		FROM daily_summaries
		WHERE summary_date = $1
		ORDER BY ward_id`

	rows, err := r.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily summaries: %w", err)
	}
	defer rows.Close()

	out := []*domain.DailySummary{}
	for rows.Next() {
		s, err := scanDailySummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list daily summaries: %w", err)
	}
	return out, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-census/internal/domain"
)

// PostgresWardsRepository wards table.
type PostgresWardsRepository struct {
	db *sql.DB
}

func NewPostgresWardsRepository(db *sql.DB) *PostgresWardsRepository {
	return &PostgresWardsRepository{db: db}
}

var _ WardsRepository = (*PostgresWardsRepository)(nil)

func (r *PostgresWardsRepository) GetWard(ctx context.Context, wardID string) (*domain.Ward, error) {
	query := `
		SELECT ward_id, ward_name, active
		FROM wards
		WHERE ward_id = $1
	`

	var w domain.Ward
	err := r.db.QueryRowContext(ctx, query, wardID).Scan(&w.WardID, &w.WardName, &w.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ward %s: %w", wardID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ward: %w", err)
	}
	return &w, nil
}

func (r *PostgresWardsRepository) ListWards(ctx context.Context, activeOnly bool) ([]*domain.Ward, error) {
	query := `
		SELECT ward_id, ward_name, active
		FROM wards
		WHERE ($1 = false OR active)
		ORDER BY ward_id
	`

	rows, err := r.db.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list wards: %w", err)
	}
	defer rows.Close()

	out := []*domain.Ward{}
	for rows.Next() {
		var w domain.Ward
		if err := rows.Scan(&w.WardID, &w.WardName, &w.Active); err != nil {
			return nil, fmt.Errorf("failed to scan ward: %w", err)
		}
		out = append(out, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list wards: %w", err)
	}
	return out, nil
}

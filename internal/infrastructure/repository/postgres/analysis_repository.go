package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, analysis *domain.Analysis) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO analyses (id, year, quarter, unit, filename, mime_type, storage_path, status, approved_by, decided_at, reject_reason, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`, analysis.ID, analysis.Year, analysis.Quarter, analysis.Unit, analysis.Filename, analysis.MimeType,
		analysis.StoragePath, string(analysis.Status), analysis.ApprovedBy, analysis.DecidedAt,
		analysis.RejectReason, analysis.Error, analysis.CreatedAt, analysis.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, year, quarter, unit, filename, mime_type, storage_path, status, approved_by, decided_at, reject_reason, error_message, created_at, updated_at
FROM analyses
WHERE id = $1
`, id)

	analysis, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get analysis", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get analysis by id: %w", err)
	}
	return &analysis, nil
}

func (r *AnalysisRepository) UpdateStatus(ctx context.Context, id string, status domain.AnalysisStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE analyses
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update analysis status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update analysis status rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "update analysis status", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *AnalysisRepository) ListByPeriod(ctx context.Context, year, quarter int) ([]domain.Analysis, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, year, quarter, unit, filename, mime_type, storage_path, status, approved_by, decided_at, reject_reason, error_message, created_at, updated_at
FROM analyses
WHERE year = $1 AND quarter = $2
ORDER BY created_at DESC
`, year, quarter)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Analysis, 0)
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row rowScanner) (domain.Analysis, error) {
	var a domain.Analysis
	var status string
	err := row.Scan(
		&a.ID,
		&a.Year,
		&a.Quarter,
		&a.Unit,
		&a.Filename,
		&a.MimeType,
		&a.StoragePath,
		&status,
		&a.ApprovedBy,
		&a.DecidedAt,
		&a.RejectReason,
		&a.Error,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Analysis{}, err
	}
	a.Status = domain.AnalysisStatus(status)
	return a, nil
}

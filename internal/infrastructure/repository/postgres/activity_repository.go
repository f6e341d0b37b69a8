package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// ReplaceStaged swaps the full staged row set of one analysis. Extraction
// re-runs replace rather than append so a retry never duplicates rows.
func (r *ActivityRepository) ReplaceStaged(ctx context.Context, analysisID string, activities []domain.ReportedActivity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace-staged tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reported_activities WHERE analysis_id = $1`, analysisID); err != nil {
		return fmt.Errorf("clear staged activities: %w", err)
	}
	for _, a := range activities {
		if err := insertActivity(ctx, tx, &a); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace-staged tx: %w", err)
	}
	return nil
}

func insertActivity(ctx context.Context, tx *sql.Tx, a *domain.ReportedActivity) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO reported_activities (id, analysis_id, name, kra_id, initiative_id, raw_value, value, denominator, target, achievement, status, confidence, committed, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`, a.ID, a.AnalysisID, a.Name, string(a.KRA), string(a.Initiative), a.RawValue, a.Value, a.Denominator,
		a.Target, a.Achievement, string(a.Status), a.Confidence, a.Committed, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert staged activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) ListByAnalysis(ctx context.Context, analysisID string) ([]domain.ReportedActivity, error) {
	return listActivities(ctx, r.db, analysisID)
}

func (r *ActivityRepository) UpdateStaged(ctx context.Context, activity *domain.ReportedActivity) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE reported_activities
SET name = $3, kra_id = $4, initiative_id = $5, raw_value = $6, value = $7, denominator = $8, target = $9, achievement = $10, status = $11, updated_at = $12
WHERE analysis_id = $1 AND id = $2 AND committed = FALSE
`, activity.AnalysisID, activity.ID, activity.Name, string(activity.KRA), string(activity.Initiative),
		activity.RawValue, activity.Value, activity.Denominator, activity.Target,
		activity.Achievement, string(activity.Status), activity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update staged activity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update staged activity rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "update staged activity", fmt.Errorf("id=%s", activity.ID))
	}
	return nil
}

func (r *ActivityRepository) DeleteStaged(ctx context.Context, analysisID, activityID string) error {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM reported_activities
WHERE analysis_id = $1 AND id = $2 AND committed = FALSE
`, analysisID, activityID)
	if err != nil {
		return fmt.Errorf("delete staged activity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete staged activity rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete staged activity", fmt.Errorf("id=%s", activityID))
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func listActivities(ctx context.Context, q querier, analysisID string) ([]domain.ReportedActivity, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, analysis_id, name, kra_id, initiative_id, raw_value, value, denominator, target, achievement, status, confidence, committed, created_at, updated_at
FROM reported_activities
WHERE analysis_id = $1
ORDER BY created_at, id
`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("list staged activities: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ReportedActivity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staged activities: %w", err)
	}
	return out, nil
}

func scanActivity(row rowScanner) (domain.ReportedActivity, error) {
	var a domain.ReportedActivity
	var kra, initiative, status string
	err := row.Scan(
		&a.ID,
		&a.AnalysisID,
		&a.Name,
		&kra,
		&initiative,
		&a.RawValue,
		&a.Value,
		&a.Denominator,
		&a.Target,
		&a.Achievement,
		&status,
		&a.Confidence,
		&a.Committed,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.ReportedActivity{}, err
	}
	a.KRA = domain.KRAID(kra)
	a.Initiative = domain.InitiativeID(initiative)
	a.Status = domain.ActivityStatus(status)
	return a, nil
}

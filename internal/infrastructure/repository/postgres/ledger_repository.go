package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

// LedgerRepository persists contributions and their derived aggregates.
// Approval-path mutations run through WithinTx so one analysis's updates
// across many indicators commit or roll back together.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}

	if err := fn(ctx, &ledgerTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w; rollback ledger tx: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Aggregate(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT kra_id, initiative_id, year, quarter, kind, total_reported, target_value, achievement_percent, status, submission_count, units, updated_at
FROM aggregates
WHERE kra_id = $1 AND initiative_id = $2 AND year = $3 AND quarter = $4
`, string(key.KRA), string(key.Initiative), key.Year, key.Quarter)

	agg, err := scanAggregate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get aggregate: %w", err)
	}
	return &agg, nil
}

func (r *LedgerRepository) ContributionsForIndicatorYear(ctx context.Context, kra domain.KRAID, initiative domain.InitiativeID, year int) ([]domain.Contribution, error) {
	return listContributions(ctx, r.db, `
SELECT analysis_id, kra_id, initiative_id, year, quarter, unit, value, kind, recorded_at
FROM contributions
WHERE kra_id = $1 AND initiative_id = $2 AND year = $3
ORDER BY recorded_at, analysis_id
`, string(kra), string(initiative), year)
}

func (r *LedgerRepository) ContributionsForAnalysis(ctx context.Context, analysisID string) ([]domain.Contribution, error) {
	return listContributions(ctx, r.db, `
SELECT analysis_id, kra_id, initiative_id, year, quarter, unit, value, kind, recorded_at
FROM contributions
WHERE analysis_id = $1
ORDER BY kra_id, initiative_id
`, analysisID)
}

// ledgerTx is the approval-path surface over one sql.Tx.
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) StagedActivities(ctx context.Context, analysisID string) ([]domain.ReportedActivity, error) {
	return listActivities(ctx, t.tx, analysisID)
}

func (t *ledgerTx) UpsertContribution(ctx context.Context, c domain.Contribution) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO contributions (analysis_id, kra_id, initiative_id, year, quarter, unit, value, kind, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (analysis_id, kra_id, initiative_id)
DO UPDATE SET year = EXCLUDED.year, quarter = EXCLUDED.quarter, unit = EXCLUDED.unit, value = EXCLUDED.value, kind = EXCLUDED.kind, recorded_at = EXCLUDED.recorded_at
`, c.AnalysisID, string(c.KRA), string(c.Initiative), c.Year, c.Quarter, c.Unit, c.Value, string(c.Kind), c.RecordedAt)
	if err != nil {
		return fmt.Errorf("upsert contribution: %w", err)
	}
	return nil
}

func (t *ledgerTx) RemoveContributions(ctx context.Context, analysisID string) ([]domain.Contribution, error) {
	return listContributions(ctx, t.tx, `
DELETE FROM contributions
WHERE analysis_id = $1
RETURNING analysis_id, kra_id, initiative_id, year, quarter, unit, value, kind, recorded_at
`, analysisID)
}

func (t *ledgerTx) ContributionsForIndicator(ctx context.Context, key domain.AggregateKey) ([]domain.Contribution, error) {
	return listContributions(ctx, t.tx, `
SELECT analysis_id, kra_id, initiative_id, year, quarter, unit, value, kind, recorded_at
FROM contributions
WHERE kra_id = $1 AND initiative_id = $2 AND year = $3 AND quarter = $4
ORDER BY recorded_at, analysis_id
`, string(key.KRA), string(key.Initiative), key.Year, key.Quarter)
}

// LockAggregate serializes concurrent approvals touching the same
// indicator-period. A FOR UPDATE row lock alone is not enough: when no
// aggregate row exists yet, two first-ever approvals would both lock
// nothing and each fold only its own contributions. The advisory lock is
// keyed on the aggregate identity and held until the transaction ends, so
// the second approval waits and then reads the first one's committed rows.
func (t *ledgerTx) LockAggregate(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error) {
	lockKey := fmt.Sprintf("aggregate|%s|%s|%d|%d", key.KRA, key.Initiative, key.Year, key.Quarter)
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return nil, fmt.Errorf("acquire aggregate lock: %w", err)
	}

	row := t.tx.QueryRowContext(ctx, `
SELECT kra_id, initiative_id, year, quarter, kind, total_reported, target_value, achievement_percent, status, submission_count, units, updated_at
FROM aggregates
WHERE kra_id = $1 AND initiative_id = $2 AND year = $3 AND quarter = $4
FOR UPDATE
`, string(key.KRA), string(key.Initiative), key.Year, key.Quarter)

	agg, err := scanAggregate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock aggregate: %w", err)
	}
	return &agg, nil
}

func (t *ledgerTx) SaveAggregate(ctx context.Context, agg *domain.Aggregate) error {
	unitsJSON, err := json.Marshal(agg.Units)
	if err != nil {
		return fmt.Errorf("marshal aggregate units: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
INSERT INTO aggregates (kra_id, initiative_id, year, quarter, kind, total_reported, target_value, achievement_percent, status, submission_count, units, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (kra_id, initiative_id, year, quarter)
DO UPDATE SET kind = EXCLUDED.kind, total_reported = EXCLUDED.total_reported, target_value = EXCLUDED.target_value, achievement_percent = EXCLUDED.achievement_percent, status = EXCLUDED.status, submission_count = EXCLUDED.submission_count, units = EXCLUDED.units, updated_at = EXCLUDED.updated_at
`, string(agg.KRA), string(agg.Initiative), agg.Year, agg.Quarter, string(agg.Kind), agg.TotalReported,
		agg.TargetValue, agg.AchievementPercent, string(agg.Status), agg.SubmissionCount, unitsJSON, agg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save aggregate: %w", err)
	}
	return nil
}

// MarkAnalysisDecided moves a draft to its decided status. The status
// predicate makes the move a compare-and-set: of two concurrent decisions
// on the same draft, only one matches a row and the loser gets
// ErrAlreadyDecided, rolling its transaction back.
func (t *ledgerTx) MarkAnalysisDecided(ctx context.Context, analysisID string, status domain.AnalysisStatus, decidedBy, reason string, decidedAt time.Time) error {
	result, err := t.tx.ExecContext(ctx, `
UPDATE analyses
SET status = $2, approved_by = $3, reject_reason = $4, decided_at = $5, updated_at = $5
WHERE id = $1 AND status = $6
`, analysisID, string(status), decidedBy, reason, decidedAt, string(domain.AnalysisDraft))
	if err != nil {
		return fmt.Errorf("mark analysis decided: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark analysis decided rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrAlreadyDecided, "mark analysis decided", fmt.Errorf("id=%s is no longer a draft", analysisID))
	}
	return nil
}

func (t *ledgerTx) MarkActivitiesCommitted(ctx context.Context, analysisID string) error {
	if _, err := t.tx.ExecContext(ctx, `
UPDATE reported_activities
SET committed = TRUE
WHERE analysis_id = $1
`, analysisID); err != nil {
		return fmt.Errorf("mark activities committed: %w", err)
	}
	return nil
}

func (t *ledgerTx) DiscardStagedActivities(ctx context.Context, analysisID string) error {
	if _, err := t.tx.ExecContext(ctx, `
DELETE FROM reported_activities
WHERE analysis_id = $1
`, analysisID); err != nil {
		return fmt.Errorf("discard staged activities: %w", err)
	}
	return nil
}

func (t *ledgerTx) DeleteAnalysis(ctx context.Context, analysisID string) error {
	if _, err := t.tx.ExecContext(ctx, `
DELETE FROM analyses
WHERE id = $1
`, analysisID); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return nil
}

func listContributions(ctx context.Context, q querier, query string, args ...interface{}) ([]domain.Contribution, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Contribution, 0)
	for rows.Next() {
		var c domain.Contribution
		var kra, initiative, kind string
		if err := rows.Scan(&c.AnalysisID, &kra, &initiative, &c.Year, &c.Quarter, &c.Unit, &c.Value, &kind, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.KRA = domain.KRAID(kra)
		c.Initiative = domain.InitiativeID(initiative)
		c.Kind = domain.MeasurementKind(kind)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contributions: %w", err)
	}
	return out, nil
}

func scanAggregate(row rowScanner) (domain.Aggregate, error) {
	var a domain.Aggregate
	var kra, initiative, kind, status string
	var unitsJSON []byte
	err := row.Scan(
		&kra,
		&initiative,
		&a.Year,
		&a.Quarter,
		&kind,
		&a.TotalReported,
		&a.TargetValue,
		&a.AchievementPercent,
		&status,
		&a.SubmissionCount,
		&unitsJSON,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Aggregate{}, err
	}
	a.KRA = domain.KRAID(kra)
	a.Initiative = domain.InitiativeID(initiative)
	a.Kind = domain.MeasurementKind(kind)
	a.Status = domain.AggregateStatus(status)
	if len(unitsJSON) > 0 {
		if err := json.Unmarshal(unitsJSON, &a.Units); err != nil {
			return domain.Aggregate{}, fmt.Errorf("unmarshal aggregate units: %w", err)
		}
	}
	return a, nil
}

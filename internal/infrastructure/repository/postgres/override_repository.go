package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

type OverrideRepository struct {
	db *sql.DB
}

func NewOverrideRepository(db *sql.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

func (r *OverrideRepository) Lookup(ctx context.Context, kra domain.KRAID, initiative domain.InitiativeID, year, quarter int) (*domain.TargetOverride, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT kra_id, initiative_id, year, quarter, kind, target_value
FROM target_overrides
WHERE kra_id = $1 AND initiative_id = $2 AND year = $3 AND quarter = $4
`, string(kra), string(initiative), year, quarter)

	var o domain.TargetOverride
	var kraID, initiativeID, kind string
	err := row.Scan(&kraID, &initiativeID, &o.Year, &o.Quarter, &kind, &o.TargetValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup target override: %w", err)
	}
	o.KRA = domain.KRAID(kraID)
	o.Initiative = domain.InitiativeID(initiativeID)
	o.Kind = domain.MeasurementKind(kind)
	return &o, nil
}

func (r *OverrideRepository) Put(ctx context.Context, override domain.TargetOverride) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO target_overrides (kra_id, initiative_id, year, quarter, kind, target_value, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (kra_id, initiative_id, year, quarter)
DO UPDATE SET kind = EXCLUDED.kind, target_value = EXCLUDED.target_value
`, string(override.KRA), string(override.Initiative), override.Year, override.Quarter,
		string(override.Kind), override.TargetValue, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put target override: %w", err)
	}
	return nil
}

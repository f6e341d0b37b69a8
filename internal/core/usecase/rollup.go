package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/aggregate"
	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

// RollupUseCase serves aggregate reads and full recomputation. Reads fall
// back to a pending placeholder built from the plan target when no
// contributions exist yet.
type RollupUseCase struct {
	ledger   ports.LedgerStore
	resolver ports.TargetResolver
}

func NewRollupUseCase(ledger ports.LedgerStore, resolver ports.TargetResolver) *RollupUseCase {
	return &RollupUseCase{ledger: ledger, resolver: resolver}
}

func (uc *RollupUseCase) Aggregate(ctx context.Context, kraRaw, initiativeRaw string, year int, quarter *int) (*domain.Aggregate, error) {
	kra := domain.NormalizeKRA(kraRaw)
	initiative := domain.NormalizeInitiative(initiativeRaw)

	if quarter != nil {
		return uc.quarterAggregate(ctx, kra, initiative, year, *quarter)
	}
	return uc.yearAggregate(ctx, kra, initiative, year)
}

func (uc *RollupUseCase) quarterAggregate(ctx context.Context, kra domain.KRAID, initiative domain.InitiativeID, year, quarter int) (*domain.Aggregate, error) {
	key := domain.AggregateKey{KRA: kra, Initiative: initiative, Year: year, Quarter: quarter}

	agg, err := uc.ledger.Aggregate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read aggregate: %w", err)
	}
	if agg != nil {
		return agg, nil
	}

	resolution, err := uc.resolver.Resolve(ctx, kra, initiative, year, quarter)
	if err != nil {
		return nil, err
	}
	placeholder := aggregate.Placeholder(key, resolution, time.Now().UTC())
	return &placeholder, nil
}

// yearAggregate folds the whole year's ledger rows under the same kind
// rules the quarters use, so a year view of a rate metric is the mean of
// per-document means and a snapshot metric shows the latest level.
// Targets resolve with quarter 0: overrides are scoped to a single
// quarter, and none of them may govern the whole-year view.
func (uc *RollupUseCase) yearAggregate(ctx context.Context, kra domain.KRAID, initiative domain.InitiativeID, year int) (*domain.Aggregate, error) {
	resolution, err := uc.resolver.Resolve(ctx, kra, initiative, year, 0)
	if err != nil {
		return nil, err
	}

	rows, err := uc.ledger.ContributionsForIndicatorYear(ctx, resolution.KRA, resolution.Initiative, year)
	if err != nil {
		return nil, fmt.Errorf("list year ledger rows: %w", err)
	}

	key := domain.AggregateKey{KRA: resolution.KRA, Initiative: resolution.Initiative, Year: year}
	if len(rows) == 0 {
		placeholder := aggregate.Placeholder(key, resolution, time.Now().UTC())
		return &placeholder, nil
	}
	agg := aggregate.Fold(key, resolution.Kind, resolution.TargetValue, rows, time.Now().UTC())
	return &agg, nil
}

// RecomputeIndicator rebuilds every quarter aggregate of an indicator-year
// from the ledger under the currently-resolved measurement kind. This is
// the correction path when an indicator was tagged with the wrong kind:
// aggregates are never patched piecemeal under the old kind.
func (uc *RollupUseCase) RecomputeIndicator(ctx context.Context, kraRaw, initiativeRaw string, year int) (int, error) {
	kra := domain.NormalizeKRA(kraRaw)
	initiative := domain.NormalizeInitiative(initiativeRaw)

	rebuilt := 0
	now := time.Now().UTC()
	err := uc.ledger.WithinTx(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		for quarter := 1; quarter <= 4; quarter++ {
			resolution, err := uc.resolver.Resolve(ctx, kra, initiative, year, quarter)
			if err != nil {
				return err
			}
			key := domain.AggregateKey{KRA: resolution.KRA, Initiative: resolution.Initiative, Year: year, Quarter: quarter}

			if _, err := tx.LockAggregate(ctx, key); err != nil {
				return fmt.Errorf("lock aggregate q%d: %w", quarter, err)
			}
			rows, err := tx.ContributionsForIndicator(ctx, key)
			if err != nil {
				return fmt.Errorf("list ledger rows q%d: %w", quarter, err)
			}
			if len(rows) == 0 {
				continue
			}
			agg := aggregate.Fold(key, resolution.Kind, resolution.TargetValue, rows, now)
			if err := tx.SaveAggregate(ctx, &agg); err != nil {
				return fmt.Errorf("save aggregate q%d: %w", quarter, err)
			}
			rebuilt++
		}
		return nil
	})
	if err != nil {
		return 0, txError("recompute indicator", err)
	}
	return rebuilt, nil
}

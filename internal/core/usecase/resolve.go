package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

// ResolveTargetUseCase answers "what does this indicator measure and what
// is its target for this period". Resolution order: period-specific
// override, plan entry for the exact year, nearest prior plan year, first
// numeric plan entry. Historical reports number indicators inconsistently,
// so indicator lookup recovers by trailing sequence number before giving up.
type ResolveTargetUseCase struct {
	catalog   ports.PlanCatalog
	overrides ports.OverrideStore
}

func NewResolveTargetUseCase(catalog ports.PlanCatalog, overrides ports.OverrideStore) *ResolveTargetUseCase {
	return &ResolveTargetUseCase{catalog: catalog, overrides: overrides}
}

func (uc *ResolveTargetUseCase) Resolve(ctx context.Context, kra domain.KRAID, initiative domain.InitiativeID, year, quarter int) (domain.TargetResolution, error) {
	// Both ids re-normalize here so callers cannot bypass canonical form.
	kra = domain.NormalizeKRA(string(kra))
	initiative = domain.NormalizeInitiative(string(initiative))

	resolution := domain.TargetResolution{
		KRA:        kra,
		Initiative: initiative,
		Kind:       domain.KindUnknown,
		Scope:      domain.ScopeNone,
	}

	if _, ok := uc.catalog.KRA(kra); !ok {
		return resolution, domain.WrapError(domain.ErrNotFound, "resolve target",
			fmt.Errorf("kra %q not in plan catalog", kra))
	}

	indicator, ok := uc.lookupIndicator(kra, initiative)
	if !ok {
		// The KRA exists, so this is recoverable data inconsistency, not
		// NotFound: report unknown kind and let the caller skip the group.
		return resolution, nil
	}
	resolution.Initiative = indicator.ID
	resolution.Kind = indicator.Kind

	if uc.overrides != nil {
		override, err := uc.overrides.Lookup(ctx, kra, indicator.ID, year, quarter)
		if err != nil {
			return resolution, fmt.Errorf("lookup target override: %w", err)
		}
		if override != nil {
			if override.Kind != "" {
				resolution.Kind = override.Kind
			}
			value := override.TargetValue
			resolution.TargetValue = &value
			resolution.Scope = domain.ScopeOverride
			return resolution, nil
		}
	}

	value, scope, ok := targetFromTimeline(indicator.TargetsByYear, year)
	if ok {
		resolution.TargetValue = &value
		resolution.Scope = scope
	}
	return resolution, nil
}

// lookupIndicator tries exact canonical match, then matches any indicator
// in the KRA sharing the same trailing sequence number.
func (uc *ResolveTargetUseCase) lookupIndicator(kra domain.KRAID, initiative domain.InitiativeID) (*domain.Indicator, bool) {
	if indicator, ok := uc.catalog.Indicator(kra, initiative); ok {
		return indicator, true
	}

	seq, ok := initiative.SequenceNumber()
	if !ok {
		return nil, false
	}
	for _, candidate := range uc.catalog.IndicatorsByKRA(kra) {
		if n, ok := candidate.ID.SequenceNumber(); ok && n == seq {
			ind := candidate
			return &ind, true
		}
	}
	return nil, false
}

func targetFromTimeline(targets map[int]float64, year int) (float64, domain.TargetScope, bool) {
	if len(targets) == 0 {
		return 0, domain.ScopeNone, false
	}
	if v, ok := targets[year]; ok {
		return v, domain.ScopePlanYear, true
	}

	years := make([]int, 0, len(targets))
	for y := range targets {
		years = append(years, y)
	}
	sort.Ints(years)

	prior := 0
	found := false
	for _, y := range years {
		if y < year {
			prior = y
			found = true
		}
	}
	if found {
		return targets[prior], domain.ScopePlanPriorYear, true
	}
	return targets[years[0]], domain.ScopePlanFirst, true
}

package aggregate

import (
	"sort"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

// Fold rebuilds one indicator-period aggregate from its ledger rows. The
// aggregate is always a projection of the contribution ledger; folding the
// full row set (rather than patching the previous rollup) is what makes
// replacement and deletion of a document's contribution exact.
func Fold(key domain.AggregateKey, kind domain.MeasurementKind, target *float64, rows []domain.Contribution, now time.Time) domain.Aggregate {
	reports := make([]Reported, 0, len(rows))
	for _, c := range rows {
		reports = append(reports, Reported{
			Value:       c.Value,
			SubmittedAt: c.RecordedAt,
			Unit:        c.Unit,
		})
	}

	res := Compute(kind, target, reports)

	return domain.Aggregate{
		KRA:                key.KRA,
		Initiative:         key.Initiative,
		Year:               key.Year,
		Quarter:            key.Quarter,
		Kind:               kind,
		TotalReported:      res.TotalReported,
		TargetValue:        res.TotalTarget,
		AchievementPercent: res.AchievementPercent,
		Status:             DeriveStatus(res),
		SubmissionCount:    len(rows),
		Units:              distinctUnits(rows),
		UpdatedAt:          now,
	}
}

// Placeholder is the aggregate returned when no contributions exist yet:
// the plan target with zero reported and pending status.
func Placeholder(key domain.AggregateKey, res domain.TargetResolution, now time.Time) domain.Aggregate {
	return domain.Aggregate{
		KRA:         key.KRA,
		Initiative:  key.Initiative,
		Year:        key.Year,
		Quarter:     key.Quarter,
		Kind:        res.Kind,
		TargetValue: targetOrZero(res.TargetValue),
		Status:      domain.AggregatePending,
		Units:       []string{},
		UpdatedAt:   now,
	}
}

func distinctUnits(rows []domain.Contribution) []string {
	seen := make(map[string]struct{}, len(rows))
	units := make([]string, 0, len(rows))
	for _, c := range rows {
		if c.Unit == "" {
			continue
		}
		if _, ok := seen[c.Unit]; ok {
			continue
		}
		seen[c.Unit] = struct{}{}
		units = append(units, c.Unit)
	}
	sort.Strings(units)
	return units
}

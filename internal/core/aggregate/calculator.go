// Package aggregate implements the kind-aware accumulation math that turns
// per-document activity reports into achievement figures. Everything here is
// pure and deterministic; callers may share it across goroutines freely.
package aggregate

import (
	"math"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

// Reported is one numeric observation entering an aggregation: either a
// staged activity's value or an approved contribution's value. Denominator
// is the optional companion count for rate conversion. SubmittedAt orders
// snapshot-kind observations.
type Reported struct {
	Value       float64
	Denominator *float64
	SubmittedAt time.Time
	Unit        string
}

// Result is the outcome of aggregating one indicator-period.
type Result struct {
	TotalReported      float64
	TotalTarget        float64
	AchievementPercent float64
	Counted            int
	Excluded           int
	ConversionRejected int
	Qualitative        bool
}

// Compute aggregates reports under the given measurement kind.
//
// Accumulation rules: count and financial sum, percentage averages,
// snapshot keeps only the most recent value, milestone is completed-or-not,
// text_condition is never aggregated numerically. The target is applied
// once per indicator, never once per activity. Non-finite values are
// excluded rather than treated as zero, and a zero or missing target yields
// zero achievement instead of a division error.
func Compute(kind domain.MeasurementKind, target *float64, reports []Reported) Result {
	switch kind {
	case domain.KindCount, domain.KindFinancial:
		return computeSum(target, reports)
	case domain.KindPercentage:
		return computeMean(target, reports)
	case domain.KindSnapshot:
		return computeLatest(target, reports)
	case domain.KindMilestone:
		return computeMilestone(reports)
	case domain.KindTextCondition:
		return Result{Qualitative: true, Excluded: len(reports)}
	default:
		return Result{Excluded: len(reports)}
	}
}

// DeriveStatus classifies an aggregation result for dashboards. An
// indicator with no counted submissions is pending, not missed.
func DeriveStatus(res Result) domain.AggregateStatus {
	if res.Counted == 0 {
		return domain.AggregatePending
	}
	switch {
	case res.AchievementPercent >= 100:
		return domain.AggregateMet
	case res.AchievementPercent >= 75:
		return domain.AggregateOnTrack
	default:
		return domain.AggregateMissed
	}
}

func computeSum(target *float64, reports []Reported) Result {
	var res Result
	for _, r := range reports {
		if !finite(r.Value) {
			res.Excluded++
			continue
		}
		res.TotalReported += r.Value
		res.Counted++
	}
	res.TotalTarget = targetOrZero(target)
	res.AchievementPercent = ratioPercent(res.TotalReported, res.TotalTarget)
	return res
}

func computeMean(target *float64, reports []Reported) Result {
	var res Result
	var sum float64
	for _, r := range reports {
		pct, ok, converted := normalizePercent(r)
		if !ok {
			res.Excluded++
			if converted {
				res.ConversionRejected++
			}
			continue
		}
		sum += pct
		res.Counted++
	}
	if res.Counted > 0 {
		res.TotalReported = clamp(sum/float64(res.Counted), 0, 100)
	}
	res.TotalTarget = targetOrZero(target)
	res.AchievementPercent = ratioPercent(res.TotalReported, res.TotalTarget)
	return res
}

func computeLatest(target *float64, reports []Reported) Result {
	var res Result
	var latest Reported
	for _, r := range reports {
		if !finite(r.Value) {
			res.Excluded++
			continue
		}
		if res.Counted == 0 || r.SubmittedAt.After(latest.SubmittedAt) {
			latest = r
		}
		res.Counted++
	}
	if res.Counted > 0 {
		res.TotalReported = latest.Value
	}
	res.TotalTarget = targetOrZero(target)
	res.AchievementPercent = ratioPercent(res.TotalReported, res.TotalTarget)
	return res
}

func computeMilestone(reports []Reported) Result {
	var res Result
	for _, r := range reports {
		if !finite(r.Value) {
			res.Excluded++
			continue
		}
		if r.Value != 0 {
			res.TotalReported = 1
		}
		res.Counted++
	}
	res.TotalTarget = 1
	if res.TotalReported >= 1 {
		res.AchievementPercent = 100
	}
	return res
}

// normalizePercent decides whether a reported number is already a percent
// or a raw count needing division by its companion denominator. A converted
// value falling outside 0..100 is rejected entirely; a bare value is
// trusted as already-percent. The near-100 ambiguity of this decision table
// is a known product-level gap; rejected conversions are surfaced on the
// result for review rather than silently dropped.
func normalizePercent(r Reported) (pct float64, ok bool, converted bool) {
	if !finite(r.Value) {
		return 0, false, false
	}
	if r.Denominator != nil && *r.Denominator > 0 {
		pct = r.Value / *r.Denominator * 100
		if pct < 0 || pct > 100 {
			return 0, false, true
		}
		return pct, true, true
	}
	return r.Value, true, false
}

func ratioPercent(reported, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Round(clamp(reported/target*100, 0, 100))
}

func targetOrZero(target *float64) float64 {
	if target == nil || !finite(*target) {
		return 0
	}
	return *target
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

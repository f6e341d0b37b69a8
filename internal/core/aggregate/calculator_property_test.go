package aggregate

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

func TestPropertyAchievementAlwaysBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	kinds := []domain.MeasurementKind{
		domain.KindCount, domain.KindPercentage, domain.KindSnapshot,
		domain.KindMilestone, domain.KindFinancial, domain.KindTextCondition,
	}

	properties.Property("achievement percent stays in [0,100] for any input", prop.ForAll(
		func(kindIdx int, target float64, values []float64) bool {
			kind := kinds[kindIdx%len(kinds)]
			reports := make([]Reported, 0, len(values))
			for _, v := range values {
				reports = append(reports, Reported{Value: v})
			}
			res := Compute(kind, &target, reports)
			return res.AchievementPercent >= 0 && res.AchievementPercent <= 100
		},
		gen.IntRange(0, 5),
		gen.Float64Range(-1e6, 1e6),
		gen.SliceOf(gen.Float64Range(-1e6, 1e6)),
	))

	properties.Property("count aggregation is order independent", prop.ForAll(
		func(target float64, values []float64) bool {
			forward := make([]Reported, 0, len(values))
			backward := make([]Reported, 0, len(values))
			for _, v := range values {
				forward = append(forward, Reported{Value: v})
			}
			for i := len(values) - 1; i >= 0; i-- {
				backward = append(backward, Reported{Value: values[i]})
			}
			a := Compute(domain.KindCount, &target, forward)
			b := Compute(domain.KindCount, &target, backward)
			return a.Counted == b.Counted && math.Abs(a.TotalReported-b.TotalReported) < 1e-6
		},
		gen.Float64Range(1, 1e6),
		gen.SliceOf(gen.Float64Range(0, 1e3)),
	))

	properties.TestingRun(t)
}

package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

func iptr(v int) *int { return &v }

func contribution(analysisID string, quarter int, value float64, kind domain.MeasurementKind) domain.Contribution {
	return domain.Contribution{
		AnalysisID: analysisID,
		KRA:        "KRA 1",
		Initiative: "KPI 1",
		Year:       2026,
		Quarter:    quarter,
		Unit:       "Registrar",
		Value:      value,
		Kind:       kind,
		RecordedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func rollupHarness(indicators ...domain.Indicator) (*RollupUseCase, *ledgerFake) {
	ledger := newLedgerFake(newAnalysisStoreFake(), newActivityStoreFake())
	resolver := resolveHarness(nil, indicators...)
	return NewRollupUseCase(ledger, resolver), ledger
}

func TestAggregateReturnsStoredQuarterRollup(t *testing.T) {
	uc, ledger := rollupHarness(countIndicator())
	stored := domain.Aggregate{
		KRA: "KRA 1", Initiative: "KPI 1", Year: 2026, Quarter: 2,
		Kind: domain.KindCount, TotalReported: 25, TargetValue: 50,
		AchievementPercent: 50, Status: domain.AggregateMissed, SubmissionCount: 2,
	}
	ledger.aggregates[stored.Key()] = stored

	agg, err := uc.Aggregate(context.Background(), "kra1", "kpi 01", 2026, iptr(2))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if agg.TotalReported != 25 || agg.AchievementPercent != 50 {
		t.Fatalf("aggregate = %+v, want stored rollup", agg)
	}
}

func TestAggregateWithoutContributionsIsPendingPlaceholder(t *testing.T) {
	uc, _ := rollupHarness(countIndicator())

	agg, err := uc.Aggregate(context.Background(), "KRA 1", "KPI 1", 2026, iptr(3))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if agg.Status != domain.AggregatePending {
		t.Fatalf("status = %s, want PENDING", agg.Status)
	}
	if agg.TargetValue != 50 {
		t.Fatalf("target = %v, want plan target 50 on placeholder", agg.TargetValue)
	}
	if agg.SubmissionCount != 0 || agg.TotalReported != 0 {
		t.Fatalf("placeholder carries data: %+v", agg)
	}
}

func TestAggregateYearViewFoldsAllQuarters(t *testing.T) {
	uc, ledger := rollupHarness(countIndicator())
	for _, c := range []domain.Contribution{
		contribution("a1", 1, 10, domain.KindCount),
		contribution("a2", 2, 15, domain.KindCount),
		contribution("a3", 4, 5, domain.KindCount),
	} {
		ledger.contributions[contributionKey(c)] = c
	}

	agg, err := uc.Aggregate(context.Background(), "KRA 1", "KPI 1", 2026, nil)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if agg.TotalReported != 30 {
		t.Fatalf("year total = %v, want 30", agg.TotalReported)
	}
	if agg.AchievementPercent != 60 {
		t.Fatalf("year achievement = %v, want 60", agg.AchievementPercent)
	}
	if agg.Quarter != 0 {
		t.Fatalf("year rollup quarter = %d, want 0", agg.Quarter)
	}
	if agg.SubmissionCount != 3 {
		t.Fatalf("submission count = %d, want 3", agg.SubmissionCount)
	}
}

// Overrides are scoped to one quarter. A Q4 override must govern the Q4
// view only; the year view keeps the plan target.
func TestAggregateYearViewIgnoresQuarterOverrides(t *testing.T) {
	overrides := &overrideStoreFake{overrides: []domain.TargetOverride{
		{KRA: "KRA 1", Initiative: "KPI 1", Year: 2026, Quarter: 4, TargetValue: 200},
	}}
	ledger := newLedgerFake(newAnalysisStoreFake(), newActivityStoreFake())
	uc := NewRollupUseCase(ledger, resolveHarness(overrides, countIndicator()))

	c := contribution("a1", 4, 30, domain.KindCount)
	ledger.contributions[contributionKey(c)] = c

	yearView, err := uc.Aggregate(context.Background(), "KRA 1", "KPI 1", 2026, nil)
	if err != nil {
		t.Fatalf("Aggregate(year) error = %v", err)
	}
	if yearView.TargetValue != 50 {
		t.Fatalf("year target = %v, want plan target 50", yearView.TargetValue)
	}
	if yearView.AchievementPercent != 60 {
		t.Fatalf("year achievement = %v, want 60", yearView.AchievementPercent)
	}

	q4View, err := uc.Aggregate(context.Background(), "KRA 1", "KPI 1", 2026, iptr(4))
	if err != nil {
		t.Fatalf("Aggregate(q4) error = %v", err)
	}
	if q4View.TargetValue != 200 {
		t.Fatalf("q4 target = %v, want override 200", q4View.TargetValue)
	}
}

func TestAggregateYearViewWithEmptyLedgerIsPending(t *testing.T) {
	uc, _ := rollupHarness(countIndicator())
	agg, err := uc.Aggregate(context.Background(), "KRA 1", "KPI 1", 2026, nil)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if agg.Status != domain.AggregatePending {
		t.Fatalf("status = %s, want PENDING", agg.Status)
	}
}

func TestAggregateUnknownKRAIsNotFound(t *testing.T) {
	uc, _ := rollupHarness(countIndicator())
	if _, err := uc.Aggregate(context.Background(), "KRA 9", "KPI 1", 2026, iptr(1)); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// A correction to the measurement kind rebuilds every quarter from the
// recorded ledger rows; the stale aggregates computed under the wrong kind
// are overwritten, never patched.
func TestRecomputeIndicatorRebuildsUnderCorrectedKind(t *testing.T) {
	// Plan now says snapshot, but contributions were folded as count and
	// the stored aggregate still shows the summed value.
	indicator := domain.Indicator{
		ID: "KPI 1", KRA: "KRA 1", Kind: domain.KindSnapshot,
		TargetsByYear: map[int]float64{2026: 100},
	}
	uc, ledger := rollupHarness(indicator)

	early := contribution("a1", 2, 80, domain.KindCount)
	early.RecordedAt = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	late := contribution("a2", 2, 95, domain.KindCount)
	late.RecordedAt = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ledger.contributions[contributionKey(early)] = early
	ledger.contributions[contributionKey(late)] = late
	ledger.aggregates[domain.AggregateKey{KRA: "KRA 1", Initiative: "KPI 1", Year: 2026, Quarter: 2}] = domain.Aggregate{
		KRA: "KRA 1", Initiative: "KPI 1", Year: 2026, Quarter: 2,
		Kind: domain.KindCount, TotalReported: 175, TargetValue: 100,
		AchievementPercent: 100, Status: domain.AggregateMet,
	}

	rebuilt, err := uc.RecomputeIndicator(context.Background(), "KRA 1", "KPI 1", 2026)
	if err != nil {
		t.Fatalf("RecomputeIndicator() error = %v", err)
	}
	if rebuilt != 1 {
		t.Fatalf("rebuilt = %d, want 1 (only q2 has rows)", rebuilt)
	}

	agg := ledger.aggregates[domain.AggregateKey{KRA: "KRA 1", Initiative: "KPI 1", Year: 2026, Quarter: 2}]
	if agg.Kind != domain.KindSnapshot {
		t.Fatalf("kind = %s, want snapshot after correction", agg.Kind)
	}
	if agg.TotalReported != 95 {
		t.Fatalf("total = %v, want latest snapshot 95, not sum 175", agg.TotalReported)
	}
	if agg.AchievementPercent != 95 {
		t.Fatalf("achievement = %v, want 95", agg.AchievementPercent)
	}
}

func TestRecomputeIndicatorLocksEveryQuarter(t *testing.T) {
	uc, ledger := rollupHarness(countIndicator())
	if _, err := uc.RecomputeIndicator(context.Background(), "KRA 1", "KPI 1", 2026); err != nil {
		t.Fatalf("RecomputeIndicator() error = %v", err)
	}
	if ledger.lockCalls != 4 {
		t.Fatalf("lock calls = %d, want 4", ledger.lockCalls)
	}
}

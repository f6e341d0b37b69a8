package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

func fptr(v float64) *float64 { return &v }

type analysisStoreFake struct {
	byID   map[string]*domain.Analysis
	getErr error
}

func newAnalysisStoreFake(analyses ...*domain.Analysis) *analysisStoreFake {
	f := &analysisStoreFake{byID: make(map[string]*domain.Analysis)}
	for _, a := range analyses {
		copied := *a
		f.byID[a.ID] = &copied
	}
	return f
}

func (f *analysisStoreFake) Create(_ context.Context, analysis *domain.Analysis) error {
	copied := *analysis
	f.byID[analysis.ID] = &copied
	return nil
}

func (f *analysisStoreFake) GetByID(_ context.Context, id string) (*domain.Analysis, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("analysis not found: %s", id)
	}
	copied := *a
	return &copied, nil
}

func (f *analysisStoreFake) UpdateStatus(_ context.Context, id string, status domain.AnalysisStatus, errMessage string) error {
	a, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("analysis not found: %s", id)
	}
	a.Status = status
	a.Error = errMessage
	return nil
}

func (f *analysisStoreFake) ListByPeriod(_ context.Context, year, quarter int) ([]domain.Analysis, error) {
	out := make([]domain.Analysis, 0)
	for _, a := range f.byID {
		if a.Year == year && a.Quarter == quarter {
			out = append(out, *a)
		}
	}
	return out, nil
}

type activityStoreFake struct {
	staged map[string][]domain.ReportedActivity
}

func newActivityStoreFake() *activityStoreFake {
	return &activityStoreFake{staged: make(map[string][]domain.ReportedActivity)}
}

func (f *activityStoreFake) ReplaceStaged(_ context.Context, analysisID string, activities []domain.ReportedActivity) error {
	f.staged[analysisID] = append([]domain.ReportedActivity(nil), activities...)
	return nil
}

func (f *activityStoreFake) ListByAnalysis(_ context.Context, analysisID string) ([]domain.ReportedActivity, error) {
	return append([]domain.ReportedActivity(nil), f.staged[analysisID]...), nil
}

func (f *activityStoreFake) UpdateStaged(_ context.Context, activity *domain.ReportedActivity) error {
	rows := f.staged[activity.AnalysisID]
	for i := range rows {
		if rows[i].ID == activity.ID {
			rows[i] = *activity
			return nil
		}
	}
	return fmt.Errorf("activity not found: %s", activity.ID)
}

func (f *activityStoreFake) DeleteStaged(_ context.Context, analysisID, activityID string) error {
	rows := f.staged[analysisID]
	for i := range rows {
		if rows[i].ID == activityID {
			f.staged[analysisID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("activity not found: %s", activityID)
}

// ledgerFake is an in-memory LedgerStore with copy-on-begin transaction
// semantics: a failed WithinTx leaves prior state untouched.
type ledgerFake struct {
	analyses      *analysisStoreFake
	activities    *activityStoreFake
	contributions map[string]domain.Contribution
	aggregates    map[domain.AggregateKey]domain.Aggregate

	saveAggregateErr error
	lockCalls        int
}

func newLedgerFake(analyses *analysisStoreFake, activities *activityStoreFake) *ledgerFake {
	return &ledgerFake{
		analyses:      analyses,
		activities:    activities,
		contributions: make(map[string]domain.Contribution),
		aggregates:    make(map[domain.AggregateKey]domain.Aggregate),
	}
}

func contributionKey(c domain.Contribution) string {
	return c.AnalysisID + "\x00" + string(c.KRA) + "\x00" + string(c.Initiative)
}

func (f *ledgerFake) WithinTx(ctx context.Context, fn func(context.Context, ports.LedgerTx) error) error {
	contribBackup := make(map[string]domain.Contribution, len(f.contributions))
	for k, v := range f.contributions {
		contribBackup[k] = v
	}
	aggBackup := make(map[domain.AggregateKey]domain.Aggregate, len(f.aggregates))
	for k, v := range f.aggregates {
		aggBackup[k] = v
	}
	statusBackup := make(map[string]domain.AnalysisStatus, len(f.analyses.byID))
	for id, a := range f.analyses.byID {
		statusBackup[id] = a.Status
	}

	if err := fn(ctx, f); err != nil {
		f.contributions = contribBackup
		f.aggregates = aggBackup
		for id, status := range statusBackup {
			if a, ok := f.analyses.byID[id]; ok {
				a.Status = status
			}
		}
		return err
	}
	return nil
}

func (f *ledgerFake) Aggregate(_ context.Context, key domain.AggregateKey) (*domain.Aggregate, error) {
	if agg, ok := f.aggregates[key]; ok {
		copied := agg
		return &copied, nil
	}
	return nil, nil
}

func (f *ledgerFake) ContributionsForIndicatorYear(_ context.Context, kra domain.KRAID, initiative domain.InitiativeID, year int) ([]domain.Contribution, error) {
	out := make([]domain.Contribution, 0)
	for _, c := range f.contributions {
		if c.KRA == kra && c.Initiative == initiative && c.Year == year {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *ledgerFake) ContributionsForAnalysis(_ context.Context, analysisID string) ([]domain.Contribution, error) {
	out := make([]domain.Contribution, 0)
	for _, c := range f.contributions {
		if c.AnalysisID == analysisID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *ledgerFake) StagedActivities(_ context.Context, analysisID string) ([]domain.ReportedActivity, error) {
	return append([]domain.ReportedActivity(nil), f.activities.staged[analysisID]...), nil
}

func (f *ledgerFake) UpsertContribution(_ context.Context, c domain.Contribution) error {
	f.contributions[contributionKey(c)] = c
	return nil
}

func (f *ledgerFake) RemoveContributions(_ context.Context, analysisID string) ([]domain.Contribution, error) {
	removed := make([]domain.Contribution, 0)
	for k, c := range f.contributions {
		if c.AnalysisID == analysisID {
			removed = append(removed, c)
			delete(f.contributions, k)
		}
	}
	return removed, nil
}

func (f *ledgerFake) ContributionsForIndicator(_ context.Context, key domain.AggregateKey) ([]domain.Contribution, error) {
	out := make([]domain.Contribution, 0)
	for _, c := range f.contributions {
		if c.KRA == key.KRA && c.Initiative == key.Initiative && c.Year == key.Year && c.Quarter == key.Quarter {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *ledgerFake) LockAggregate(_ context.Context, key domain.AggregateKey) (*domain.Aggregate, error) {
	f.lockCalls++
	if agg, ok := f.aggregates[key]; ok {
		copied := agg
		return &copied, nil
	}
	return nil, nil
}

func (f *ledgerFake) SaveAggregate(_ context.Context, agg *domain.Aggregate) error {
	if f.saveAggregateErr != nil {
		return f.saveAggregateErr
	}
	f.aggregates[agg.Key()] = *agg
	return nil
}

func (f *ledgerFake) MarkAnalysisDecided(_ context.Context, analysisID string, status domain.AnalysisStatus, decidedBy, reason string, decidedAt time.Time) error {
	a, ok := f.analyses.byID[analysisID]
	if !ok {
		return fmt.Errorf("analysis not found: %s", analysisID)
	}
	a.Status = status
	a.ApprovedBy = decidedBy
	a.RejectReason = reason
	a.DecidedAt = &decidedAt
	return nil
}

func (f *ledgerFake) MarkActivitiesCommitted(_ context.Context, analysisID string) error {
	rows := f.activities.staged[analysisID]
	for i := range rows {
		rows[i].Committed = true
	}
	return nil
}

func (f *ledgerFake) DiscardStagedActivities(_ context.Context, analysisID string) error {
	delete(f.activities.staged, analysisID)
	return nil
}

func (f *ledgerFake) DeleteAnalysis(_ context.Context, analysisID string) error {
	delete(f.analyses.byID, analysisID)
	return nil
}

type catalogFake struct {
	kras       map[domain.KRAID]domain.KRA
	indicators map[domain.KRAID][]domain.Indicator
}

func newCatalogFake(indicators ...domain.Indicator) *catalogFake {
	f := &catalogFake{
		kras:       make(map[domain.KRAID]domain.KRA),
		indicators: make(map[domain.KRAID][]domain.Indicator),
	}
	for _, ind := range indicators {
		f.kras[ind.KRA] = domain.KRA{ID: ind.KRA, Title: string(ind.KRA)}
		f.indicators[ind.KRA] = append(f.indicators[ind.KRA], ind)
	}
	return f
}

func (f *catalogFake) KRA(id domain.KRAID) (*domain.KRA, bool) {
	kra, ok := f.kras[id]
	if !ok {
		return nil, false
	}
	return &kra, true
}

func (f *catalogFake) Indicator(kra domain.KRAID, id domain.InitiativeID) (*domain.Indicator, bool) {
	for _, ind := range f.indicators[kra] {
		if ind.ID == id {
			copied := ind
			return &copied, true
		}
	}
	return nil, false
}

func (f *catalogFake) IndicatorsByKRA(kra domain.KRAID) []domain.Indicator {
	return append([]domain.Indicator(nil), f.indicators[kra]...)
}

type overrideStoreFake struct {
	overrides []domain.TargetOverride
	lookupErr error
}

func (f *overrideStoreFake) Lookup(_ context.Context, kra domain.KRAID, initiative domain.InitiativeID, year, quarter int) (*domain.TargetOverride, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, o := range f.overrides {
		if o.KRA == kra && o.Initiative == initiative && o.Year == year && o.Quarter == quarter {
			copied := o
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *overrideStoreFake) Put(_ context.Context, override domain.TargetOverride) error {
	f.overrides = append(f.overrides, override)
	return nil
}

type authorizerFake struct {
	allow bool
	err   error
}

func (f *authorizerFake) CanDecide(context.Context, domain.Principal, string) (bool, error) {
	return f.allow, f.err
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Analysis) (string, error) {
	return f.text, f.err
}

type classifierFake struct {
	candidates []domain.ActivityCandidate
	err        error
}

func (f *classifierFake) ClassifyActivities(context.Context, string, int, int) ([]domain.ActivityCandidate, error) {
	return f.candidates, f.err
}

type storageFake struct {
	saved map[string][]byte
	err   error
}

func newStorageFake() *storageFake { return &storageFake{saved: make(map[string][]byte)} }

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented in fake: %s", key)
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishAnalysisStaged(_ context.Context, analysisID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, analysisID)
	return nil
}

func (f *queueFake) SubscribeAnalysisStaged(context.Context, func(context.Context, string) error) error {
	return nil
}

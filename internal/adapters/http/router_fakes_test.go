package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/qprlabs/kpi-engine/internal/config"
	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
	"github.com/qprlabs/kpi-engine/internal/core/usecase"
)

type ingestFake struct {
	err error
}

func (f ingestFake) Upload(_ context.Context, filename, mimeType string, year, quarter int, unit string, body io.Reader) (*domain.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload report", io.EOF)
	}

	now := time.Now().UTC()
	return &domain.Analysis{
		ID:          "analysis-1",
		Year:        year,
		Quarter:     quarter,
		Unit:        unit,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "analysis-1_" + filename,
		Status:      domain.AnalysisDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type approvalsFake struct {
	receipt ports.ApprovalReceipt
	err     error

	approved []string
	rejected []string
	deleted  []string
}

func (f *approvalsFake) Approve(_ context.Context, analysisID string, _ domain.Principal) (ports.ApprovalReceipt, error) {
	if f.err != nil {
		return ports.ApprovalReceipt{}, f.err
	}
	f.approved = append(f.approved, analysisID)
	return f.receipt, nil
}

func (f *approvalsFake) Reject(_ context.Context, analysisID string, _ domain.Principal, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.rejected = append(f.rejected, analysisID)
	return nil
}

func (f *approvalsFake) Delete(_ context.Context, analysisID string, _ domain.Principal) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, analysisID)
	return nil
}

type aggregatesFake struct {
	aggregate *domain.Aggregate
	rebuilt   int
	err       error
}

func (f aggregatesFake) Aggregate(context.Context, string, string, int, *int) (*domain.Aggregate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.aggregate, nil
}

func (f aggregatesFake) RecomputeIndicator(context.Context, string, string, int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.rebuilt, nil
}

type analysisStoreFake struct {
	analysis *domain.Analysis
	listed   []domain.Analysis
	err      error
}

func (f *analysisStoreFake) Create(context.Context, *domain.Analysis) error { return f.err }

func (f *analysisStoreFake) GetByID(context.Context, string) (*domain.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func (f *analysisStoreFake) UpdateStatus(context.Context, string, domain.AnalysisStatus, string) error {
	return f.err
}

func (f *analysisStoreFake) ListByPeriod(context.Context, int, int) ([]domain.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listed, nil
}

type activityStoreFake struct {
	staged []domain.ReportedActivity
	err    error
}

func (f *activityStoreFake) ReplaceStaged(_ context.Context, _ string, activities []domain.ReportedActivity) error {
	if f.err != nil {
		return f.err
	}
	f.staged = activities
	return nil
}

func (f *activityStoreFake) ListByAnalysis(context.Context, string) ([]domain.ReportedActivity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.staged, nil
}

func (f *activityStoreFake) UpdateStaged(_ context.Context, activity *domain.ReportedActivity) error {
	if f.err != nil {
		return f.err
	}
	for i := range f.staged {
		if f.staged[i].ID == activity.ID {
			f.staged[i] = *activity
		}
	}
	return nil
}

func (f *activityStoreFake) DeleteStaged(_ context.Context, _ string, activityID string) error {
	if f.err != nil {
		return f.err
	}
	kept := f.staged[:0]
	for _, a := range f.staged {
		if a.ID != activityID {
			kept = append(kept, a)
		}
	}
	f.staged = kept
	return nil
}

type routerFixture struct {
	cfg        config.Config
	ingest     ports.ReportIngestor
	approvals  ports.ApprovalService
	aggregates ports.AggregateReader
	analyses   *analysisStoreFake
	activities *activityStoreFake
}

func (fx routerFixture) handler() *Router {
	if fx.ingest == nil {
		fx.ingest = ingestFake{}
	}
	if fx.approvals == nil {
		fx.approvals = &approvalsFake{}
	}
	if fx.aggregates == nil {
		fx.aggregates = aggregatesFake{aggregate: &domain.Aggregate{Status: domain.AggregatePending}}
	}
	if fx.analyses == nil {
		fx.analyses = &analysisStoreFake{}
	}
	if fx.activities == nil {
		fx.activities = &activityStoreFake{}
	}
	drafts := usecase.NewEditDraftUseCase(fx.analyses, fx.activities)
	return NewRouter(fx.cfg, fx.ingest, fx.approvals, fx.aggregates, fx.analyses, fx.activities, drafts, nil)
}

// newTestHandler builds a fully-wired handler with fakes, applying the
// config's traffic-control middleware the way production wiring does.
func newTestHandler(cfg config.Config) http.Handler {
	return routerFixture{cfg: cfg}.handler().Handler()
}

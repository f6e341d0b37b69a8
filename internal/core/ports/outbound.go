package ports

import (
	"context"
	"io"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

// AnalysisStore persists analysis staging records.
type AnalysisStore interface {
	Create(ctx context.Context, analysis *domain.Analysis) error
	GetByID(ctx context.Context, id string) (*domain.Analysis, error)
	UpdateStatus(ctx context.Context, id string, status domain.AnalysisStatus, errMessage string) error
	ListByPeriod(ctx context.Context, year, quarter int) ([]domain.Analysis, error)
}

// ActivityStore persists staged activity rows while an analysis is a draft.
type ActivityStore interface {
	ReplaceStaged(ctx context.Context, analysisID string, activities []domain.ReportedActivity) error
	ListByAnalysis(ctx context.Context, analysisID string) ([]domain.ReportedActivity, error)
	UpdateStaged(ctx context.Context, activity *domain.ReportedActivity) error
	DeleteStaged(ctx context.Context, analysisID, activityID string) error
}

// LedgerStore is the contribution ledger plus its derived aggregates.
// Everything that folds contributions into aggregates runs inside WithinTx
// so a failure partway rolls back every indicator's update for the analysis.
type LedgerStore interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	Aggregate(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error)
	ContributionsForIndicatorYear(ctx context.Context, kra domain.KRAID, initiative domain.InitiativeID, year int) ([]domain.Contribution, error)
	ContributionsForAnalysis(ctx context.Context, analysisID string) ([]domain.Contribution, error)
}

// LedgerTx is the transactional surface of one approval (or reversal).
// LockAggregate takes a row-level lock so concurrent approvals touching the
// same indicator-period serialize instead of losing an update.
type LedgerTx interface {
	StagedActivities(ctx context.Context, analysisID string) ([]domain.ReportedActivity, error)
	UpsertContribution(ctx context.Context, c domain.Contribution) error
	RemoveContributions(ctx context.Context, analysisID string) ([]domain.Contribution, error)
	ContributionsForIndicator(ctx context.Context, key domain.AggregateKey) ([]domain.Contribution, error)
	LockAggregate(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error)
	SaveAggregate(ctx context.Context, agg *domain.Aggregate) error
	MarkAnalysisDecided(ctx context.Context, analysisID string, status domain.AnalysisStatus, decidedBy, reason string, decidedAt time.Time) error
	MarkActivitiesCommitted(ctx context.Context, analysisID string) error
	DiscardStagedActivities(ctx context.Context, analysisID string) error
	DeleteAnalysis(ctx context.Context, analysisID string) error
}

// PlanCatalog is the read-mostly KRA/indicator catalog from the strategic
// plan document. Loaded once at startup; lookups take canonical ids.
type PlanCatalog interface {
	KRA(id domain.KRAID) (*domain.KRA, bool)
	Indicator(kra domain.KRAID, id domain.InitiativeID) (*domain.Indicator, bool)
	IndicatorsByKRA(kra domain.KRAID) []domain.Indicator
}

// OverrideStore persists period-specific target overrides; overrides take
// precedence over the plan document.
type OverrideStore interface {
	Lookup(ctx context.Context, kra domain.KRAID, initiative domain.InitiativeID, year, quarter int) (*domain.TargetOverride, error)
	Put(ctx context.Context, override domain.TargetOverride) error
}

// Authorizer answers whether a principal may decide (approve/reject/delete)
// an analysis. The capability model itself is an external collaborator.
type Authorizer interface {
	CanDecide(ctx context.Context, principal domain.Principal, analysisID string) (bool, error)
}

// ObjectStorage stores uploaded report documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes staged-analysis events between the API
// and the extraction worker.
type MessageQueue interface {
	PublishAnalysisStaged(ctx context.Context, analysisID string) error
	SubscribeAnalysisStaged(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored report document.
type TextExtractor interface {
	Extract(ctx context.Context, analysis *domain.Analysis) (string, error)
}

// ActivityClassifier proposes activity line items with KRA/indicator
// assignments and confidence scores from extracted report text.
type ActivityClassifier interface {
	ClassifyActivities(ctx context.Context, text string, year, quarter int) ([]domain.ActivityCandidate, error)
}

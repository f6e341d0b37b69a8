package ports

import (
	"context"
	"io"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

// ReportIngestor is the inbound contract for quarterly report uploads.
type ReportIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, year, quarter int, unit string, body io.Reader) (*domain.Analysis, error)
}

// AnalysisProcessor is the inbound contract for asynchronous activity
// extraction and staging.
type AnalysisProcessor interface {
	ProcessByID(ctx context.Context, analysisID string) error
}

// ApprovalReceipt is the caller-visible outcome of an approval.
type ApprovalReceipt struct {
	Status            domain.AnalysisStatus `json:"status"`
	UpdatedIndicators int                   `json:"updated_indicator_count"`
	SkippedIndicators []string              `json:"skipped_indicators,omitempty"`
}

// ApprovalService governs the analysis state machine.
type ApprovalService interface {
	Approve(ctx context.Context, analysisID string, principal domain.Principal) (ApprovalReceipt, error)
	Reject(ctx context.Context, analysisID string, principal domain.Principal, reason string) error
	Delete(ctx context.Context, analysisID string, principal domain.Principal) error
}

// AggregateReader serves rollups and recomputation.
type AggregateReader interface {
	Aggregate(ctx context.Context, kraRaw, initiativeRaw string, year int, quarter *int) (*domain.Aggregate, error)
	RecomputeIndicator(ctx context.Context, kraRaw, initiativeRaw string, year int) (int, error)
}

// TargetResolver resolves an indicator's measurement kind and target for a
// period, honoring overrides and plan-year fallbacks.
type TargetResolver interface {
	Resolve(ctx context.Context, kra domain.KRAID, initiative domain.InitiativeID, year, quarter int) (domain.TargetResolution, error)
}

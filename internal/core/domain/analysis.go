package domain

import "time"

type AnalysisStatus string

const (
	AnalysisDraft            AnalysisStatus = "draft"
	AnalysisApproved         AnalysisStatus = "approved"
	AnalysisRejected         AnalysisStatus = "rejected"
	AnalysisExtractionFailed AnalysisStatus = "extraction_failed"
)

// Analysis is the staging record for one uploaded quarterly report's
// extracted activities. It starts in draft and transitions exactly once,
// to approved or rejected; both are terminal.
type Analysis struct {
	ID           string         `json:"id"`
	Year         int            `json:"year"`
	Quarter      int            `json:"quarter"`
	Unit         string         `json:"unit"`
	Filename     string         `json:"filename"`
	MimeType     string         `json:"mime_type"`
	StoragePath  string         `json:"storage_path"`
	Status       AnalysisStatus `json:"status"`
	ApprovedBy   string         `json:"approved_by,omitempty"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty"`
	RejectReason string         `json:"reject_reason,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CanDecide reports whether the analysis may still be approved or rejected.
func (a *Analysis) CanDecide() error {
	switch a.Status {
	case AnalysisDraft:
		return nil
	case AnalysisExtractionFailed:
		return WrapError(ErrNoStagedActivities, "decide analysis", errInStatus(a.Status))
	default:
		return WrapError(ErrAlreadyDecided, "decide analysis", errInStatus(a.Status))
	}
}

type ActivityStatus string

const (
	ActivityMet      ActivityStatus = "MET"
	ActivityMissed   ActivityStatus = "MISSED"
	ActivityExceeded ActivityStatus = "EXCEEDED"
	ActivityUntagged ActivityStatus = ""
)

// ReportedActivity is one extracted line item of an analysis. Value is nil
// when the reported figure could not be parsed; such rows are kept for
// review but excluded from aggregation. Once the analysis is approved the
// row becomes immutable evidence (Committed).
type ReportedActivity struct {
	ID          string         `json:"id"`
	AnalysisID  string         `json:"analysis_id"`
	Name        string         `json:"name"`
	KRA         KRAID          `json:"kra_id"`
	Initiative  InitiativeID   `json:"initiative_id"`
	RawValue    string         `json:"raw_value"`
	Value       *float64       `json:"value,omitempty"`
	Denominator *float64       `json:"denominator,omitempty"`
	Target      *float64       `json:"target,omitempty"`
	Achievement float64        `json:"achievement"`
	Status      ActivityStatus `json:"status"`
	Confidence  float64        `json:"confidence"`
	Committed   bool           `json:"committed"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ActivityCandidate is what the extraction collaborator proposes before
// normalization and staging.
type ActivityCandidate struct {
	Name          string   `json:"name"`
	KRARaw        string   `json:"kra"`
	InitiativeRaw string   `json:"indicator"`
	RawValue      string   `json:"value"`
	Denominator   *float64 `json:"denominator,omitempty"`
	Target        *float64 `json:"target,omitempty"`
	Confidence    float64  `json:"confidence"`
}

// Principal identifies the caller of an approval-path operation.
type Principal struct {
	ID    string
	Token string
}

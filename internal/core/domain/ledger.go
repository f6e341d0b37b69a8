package domain

import "time"

// Contribution records exactly what one approved analysis contributed to
// one indicator-period. At most one row exists per (analysis, KRA,
// indicator); re-approval replaces the row in place, which is what keeps
// repeated approvals from double counting. The set of contributions is the
// source of truth from which every aggregate can be rebuilt.
type Contribution struct {
	AnalysisID string          `json:"analysis_id"`
	KRA        KRAID           `json:"kra_id"`
	Initiative InitiativeID    `json:"initiative_id"`
	Year       int             `json:"year"`
	Quarter    int             `json:"quarter"`
	Unit       string          `json:"unit"`
	Value      float64         `json:"value"`
	Kind       MeasurementKind `json:"kind"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// AggregateKey addresses one indicator-period rollup.
type AggregateKey struct {
	KRA        KRAID
	Initiative InitiativeID
	Year       int
	Quarter    int
}

type AggregateStatus string

const (
	AggregateMet     AggregateStatus = "MET"
	AggregateOnTrack AggregateStatus = "ON_TRACK"
	AggregateMissed  AggregateStatus = "MISSED"
	AggregatePending AggregateStatus = "PENDING"
)

// Aggregate is the externally-visible rollup for one indicator-period.
// It is a derived projection of the contribution ledger and is never
// hand-edited outside the approval and recompute paths.
type Aggregate struct {
	KRA                KRAID           `json:"kra_id"`
	Initiative         InitiativeID    `json:"initiative_id"`
	Year               int             `json:"year"`
	Quarter            int             `json:"quarter"`
	Kind               MeasurementKind `json:"kind"`
	TotalReported      float64         `json:"total_reported"`
	TargetValue        float64         `json:"target_value"`
	AchievementPercent float64         `json:"achievement_percent"`
	Status             AggregateStatus `json:"status"`
	SubmissionCount    int             `json:"submission_count"`
	Units              []string        `json:"units"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (a *Aggregate) Key() AggregateKey {
	return AggregateKey{KRA: a.KRA, Initiative: a.Initiative, Year: a.Year, Quarter: a.Quarter}
}

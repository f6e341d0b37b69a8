package domain

import "strings"

// MeasurementKind is the semantic type of an indicator's value. It dictates
// the accumulation math used when activity reports are rolled up.
type MeasurementKind string

const (
	KindCount         MeasurementKind = "count"
	KindPercentage    MeasurementKind = "percentage"
	KindSnapshot      MeasurementKind = "snapshot"
	KindMilestone     MeasurementKind = "milestone"
	KindFinancial     MeasurementKind = "financial"
	KindTextCondition MeasurementKind = "text_condition"
	KindUnknown       MeasurementKind = "unknown"
)

// ParseMeasurementKind maps plan-document spellings onto a kind. Unknown
// spellings come back as KindUnknown rather than an error; the caller
// excludes such indicators from numeric aggregation.
func ParseMeasurementKind(raw string) MeasurementKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "count", "number", "numeric":
		return KindCount
	case "percentage", "percent", "rate", "ratio":
		return KindPercentage
	case "snapshot", "level", "stock":
		return KindSnapshot
	case "milestone", "boolean", "bool", "yes/no", "completed":
		return KindMilestone
	case "financial", "budget", "amount", "currency":
		return KindFinancial
	case "text_condition", "text", "narrative", "qualitative":
		return KindTextCondition
	default:
		return KindUnknown
	}
}

// KRA is a top-level strategic category from the plan document.
// Immutable reference data.
type KRA struct {
	ID    KRAID  `json:"id"`
	Title string `json:"title"`
}

// Indicator is one measurable target within a KRA. TargetsByYear is the
// plan timeline; a missing year falls back to the nearest prior year.
type Indicator struct {
	ID            InitiativeID    `json:"id"`
	KRA           KRAID           `json:"kra_id"`
	Name          string          `json:"name"`
	Kind          MeasurementKind `json:"kind"`
	TargetsByYear map[int]float64 `json:"targets_by_year"`
}

// TargetScope records where a resolved target value came from.
type TargetScope string

const (
	ScopeOverride      TargetScope = "override"
	ScopePlanYear      TargetScope = "plan_year"
	ScopePlanPriorYear TargetScope = "plan_prior_year"
	ScopePlanFirst     TargetScope = "plan_first"
	ScopeNone          TargetScope = "none"
)

// TargetResolution is the resolver's answer for one (KRA, indicator, period).
type TargetResolution struct {
	KRA         KRAID           `json:"kra_id"`
	Initiative  InitiativeID    `json:"initiative_id"`
	Kind        MeasurementKind `json:"kind"`
	TargetValue *float64        `json:"target_value"`
	Scope       TargetScope     `json:"target_scope"`
}

// TargetOverride is a period-specific target record taking precedence over
// the plan document. Kind is optional; empty keeps the plan's kind.
type TargetOverride struct {
	KRA         KRAID           `json:"kra_id"`
	Initiative  InitiativeID    `json:"initiative_id"`
	Year        int             `json:"year"`
	Quarter     int             `json:"quarter"`
	Kind        MeasurementKind `json:"kind,omitempty"`
	TargetValue float64         `json:"target_value"`
}

// Package gap classifies measurement kinds into interpretation categories
// and gates which remedial narrative is allowed for each. It is a lookup
// table, not a computation: the point is to stop a volume-style remedy
// ("collect more data") from being attached to a quality metric.
package gap

import (
	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

// Category is the interpretation bucket driving diagnostic framing.
type Category string

const (
	CategoryVolume      Category = "VOLUME"
	CategoryEfficiency  Category = "EFFICIENCY"
	CategoryMilestone   Category = "MILESTONE"
	CategoryPerformance Category = "PERFORMANCE"
	CategoryText        Category = "TEXT"
	CategoryUnknown     Category = "UNKNOWN"
)

// Interpretation is the diagnostic framing permitted for a category.
type Interpretation struct {
	Category        Category `json:"category"`
	GapType         string   `json:"gap_type"`
	RootCauseFocus  []string `json:"root_cause_focus"`
	ActionArchetype string   `json:"action_archetype"`
	AntiPattern     string   `json:"anti_pattern,omitempty"`
}

// Classify maps a measurement kind to its interpretation category.
func Classify(kind domain.MeasurementKind) Category {
	switch kind {
	case domain.KindCount, domain.KindFinancial:
		return CategoryVolume
	case domain.KindPercentage:
		return CategoryEfficiency
	case domain.KindMilestone:
		return CategoryMilestone
	case domain.KindSnapshot:
		return CategoryPerformance
	case domain.KindTextCondition:
		return CategoryText
	default:
		return CategoryUnknown
	}
}

var interpretations = map[Category]Interpretation{
	CategoryVolume: {
		Category:        CategoryVolume,
		GapType:         "output shortfall",
		RootCauseFocus:  []string{"delivery capacity", "reporting coverage", "unit participation"},
		ActionArchetype: "scale activity and reporting volume",
	},
	CategoryEfficiency: {
		Category:        CategoryEfficiency,
		GapType:         "quality/rate shortfall",
		RootCauseFocus:  []string{"process quality", "conversion rate", "service standards"},
		ActionArchetype: "improve the underlying process, not the reporting volume",
		AntiPattern:     "collect more data / scale reporting",
	},
	CategoryMilestone: {
		Category:        CategoryMilestone,
		GapType:         "deliverable not completed",
		RootCauseFocus:  []string{"blocking dependency", "resourcing", "schedule"},
		ActionArchetype: "unblock and complete the deliverable",
		AntiPattern:     "incremental improvement",
	},
	CategoryPerformance: {
		Category:        CategoryPerformance,
		GapType:         "level below target",
		RootCauseFocus:  []string{"current operating level", "trend direction"},
		ActionArchetype: "raise the operating level before the next snapshot",
	},
	CategoryText: {
		Category:        CategoryText,
		GapType:         "qualitative condition unmet",
		RootCauseFocus:  []string{"narrative evidence"},
		ActionArchetype: "route to qualitative review",
	},
	CategoryUnknown: {
		Category:        CategoryUnknown,
		GapType:         "unclassified",
		RootCauseFocus:  []string{"measurement kind needs correction"},
		ActionArchetype: "fix the indicator's measurement kind, then recompute",
	},
}

// Interpret returns the diagnostic framing for a category.
func Interpret(category Category) Interpretation {
	if it, ok := interpretations[category]; ok {
		return it
	}
	return interpretations[CategoryUnknown]
}

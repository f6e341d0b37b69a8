package gap

import (
	"fmt"
	"strings"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

// ValidationResult reports whether generated remedial text is permissible
// for an indicator's measurement kind.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Category Category `json:"category"`
	Warnings []string `json:"warnings,omitempty"`
}

// Upstream narrative generation is not guaranteed to respect the category,
// so this phrase check is the last line of defense before text reaches a
// user. Matching is case-insensitive substring matching on purpose: the
// generators paraphrase, and a stricter grammar would miss most violations.
var forbiddenPhrases = map[Category][]string{
	CategoryEfficiency: {
		"collect more data",
		"gather more data",
		"scale reporting",
		"increase reporting",
		"more submissions",
		"report more activities",
	},
	CategoryMilestone: {
		"incremental improvement",
		"gradual improvement",
		"improve incrementally",
		"small steps",
	},
}

// Validate pattern-matches remedial text against the forbidden phrases of
// the kind's category.
func Validate(text string, kind domain.MeasurementKind) ValidationResult {
	category := Classify(kind)
	result := ValidationResult{IsValid: true, Category: category}

	lowered := strings.ToLower(text)
	for _, phrase := range forbiddenPhrases[category] {
		if strings.Contains(lowered, phrase) {
			result.IsValid = false
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"%s indicators must not be paired with %q advice (matched %q)",
				category, Interpret(category).AntiPattern, phrase,
			))
		}
	}
	return result
}

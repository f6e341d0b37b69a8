package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

// ExtractActivitiesUseCase is the worker pipeline: pull the stored report,
// extract its text, ask the classifier for activity candidates, normalize
// identifiers and stage the resulting rows on the draft analysis.
type ExtractActivitiesUseCase struct {
	analyses   ports.AnalysisStore
	activities ports.ActivityStore
	extractor  ports.TextExtractor
	classifier ports.ActivityClassifier
	resolver   ports.TargetResolver
}

func NewExtractActivitiesUseCase(
	analyses ports.AnalysisStore,
	activities ports.ActivityStore,
	extractor ports.TextExtractor,
	classifier ports.ActivityClassifier,
	resolver ports.TargetResolver,
) *ExtractActivitiesUseCase {
	return &ExtractActivitiesUseCase{
		analyses:   analyses,
		activities: activities,
		extractor:  extractor,
		classifier: classifier,
		resolver:   resolver,
	}
}

func (uc *ExtractActivitiesUseCase) ProcessByID(ctx context.Context, analysisID string) error {
	analysis, err := uc.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("fetch analysis by id: %w", err)
	}
	if analysis.Status != domain.AnalysisDraft && analysis.Status != domain.AnalysisExtractionFailed {
		return domain.WrapError(domain.ErrAlreadyDecided, "process analysis",
			fmt.Errorf("analysis %s is %s", analysisID, analysis.Status))
	}

	staged, err := uc.extractPipeline(ctx, analysis)
	if err != nil {
		if failErr := uc.analyses.UpdateStatus(ctx, analysisID, domain.AnalysisExtractionFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark extraction failed: %v", err, failErr)
		}
		return err
	}

	if err := uc.activities.ReplaceStaged(ctx, analysisID, staged); err != nil {
		return fmt.Errorf("stage extracted activities: %w", err)
	}
	if err := uc.analyses.UpdateStatus(ctx, analysisID, domain.AnalysisDraft, ""); err != nil {
		return fmt.Errorf("reset analysis status: %w", err)
	}
	return nil
}

func (uc *ExtractActivitiesUseCase) extractPipeline(ctx context.Context, analysis *domain.Analysis) ([]domain.ReportedActivity, error) {
	text, err := uc.extractor.Extract(ctx, analysis)
	if err != nil {
		return nil, fmt.Errorf("extract report text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract report text", errors.New("empty extracted text"))
	}

	candidates, err := uc.classifier.ClassifyActivities(ctx, text, analysis.Year, analysis.Quarter)
	if err != nil {
		return nil, fmt.Errorf("classify activities: %w", err)
	}
	if len(candidates) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "classify activities", errors.New("no activity candidates found"))
	}

	now := time.Now().UTC()
	staged := make([]domain.ReportedActivity, 0, len(candidates))
	for _, candidate := range candidates {
		staged = append(staged, uc.stageCandidate(ctx, analysis, candidate, now))
	}
	return staged, nil
}

func (uc *ExtractActivitiesUseCase) stageCandidate(ctx context.Context, analysis *domain.Analysis, candidate domain.ActivityCandidate, now time.Time) domain.ReportedActivity {
	activity := domain.ReportedActivity{
		ID:          uuid.NewString(),
		AnalysisID:  analysis.ID,
		Name:        strings.TrimSpace(candidate.Name),
		KRA:         domain.NormalizeKRA(candidate.KRARaw),
		Initiative:  domain.NormalizeInitiative(candidate.InitiativeRaw),
		RawValue:    candidate.RawValue,
		Denominator: candidate.Denominator,
		Target:      candidate.Target,
		Confidence:  candidate.Confidence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if v, ok := parseReportedValue(candidate.RawValue); ok {
		activity.Value = &v
	}

	target := activity.Target
	if target == nil {
		if res, err := uc.resolver.Resolve(ctx, activity.KRA, activity.Initiative, analysis.Year, analysis.Quarter); err == nil && res.TargetValue != nil {
			target = res.TargetValue
		}
	}
	activity.Achievement, activity.Status = scoreActivity(activity.Value, target)
	return activity
}

// parseReportedValue accepts the numeric spellings seen in real reports:
// thousands separators, a trailing percent sign, yes/no for milestones.
// Unparseable input returns ok=false and the row is staged without a value.
func parseReportedValue(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	switch strings.ToLower(s) {
	case "yes", "y", "true", "completed", "done":
		return 1, true
	case "no", "n", "false", "not completed":
		return 0, true
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func scoreActivity(value, target *float64) (float64, domain.ActivityStatus) {
	if value == nil || target == nil || *target <= 0 {
		return 0, domain.ActivityUntagged
	}
	ratio := *value / *target * 100
	achievement := math.Round(math.Min(100, math.Max(0, ratio)))
	switch {
	case ratio > 100:
		return achievement, domain.ActivityExceeded
	case ratio >= 100:
		return achievement, domain.ActivityMet
	default:
		return achievement, domain.ActivityMissed
	}
}

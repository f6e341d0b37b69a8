package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

// EditDraftUseCase supports correcting staged activities while the
// analysis is still a draft. Once decided, rows are immutable evidence.
type EditDraftUseCase struct {
	analyses   ports.AnalysisStore
	activities ports.ActivityStore
}

func NewEditDraftUseCase(analyses ports.AnalysisStore, activities ports.ActivityStore) *EditDraftUseCase {
	return &EditDraftUseCase{analyses: analyses, activities: activities}
}

// ActivityPatch carries the fields a reviewer may correct on a staged row.
type ActivityPatch struct {
	Name        *string  `json:"name,omitempty"`
	KRARaw      *string  `json:"kra,omitempty"`
	Initiative  *string  `json:"indicator,omitempty"`
	RawValue    *string  `json:"value,omitempty"`
	Denominator *float64 `json:"denominator,omitempty"`
	Target      *float64 `json:"target,omitempty"`
}

func (uc *EditDraftUseCase) UpdateActivity(ctx context.Context, analysisID, activityID string, patch ActivityPatch) (*domain.ReportedActivity, error) {
	if err := uc.guardDraft(ctx, analysisID); err != nil {
		return nil, err
	}

	activity, err := uc.findActivity(ctx, analysisID, activityID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		activity.Name = *patch.Name
	}
	if patch.KRARaw != nil {
		activity.KRA = domain.NormalizeKRA(*patch.KRARaw)
	}
	if patch.Initiative != nil {
		activity.Initiative = domain.NormalizeInitiative(*patch.Initiative)
	}
	if patch.RawValue != nil {
		activity.RawValue = *patch.RawValue
		activity.Value = nil
		if v, ok := parseReportedValue(*patch.RawValue); ok {
			activity.Value = &v
		}
	}
	if patch.Denominator != nil {
		activity.Denominator = patch.Denominator
	}
	if patch.Target != nil {
		activity.Target = patch.Target
	}
	activity.Achievement, activity.Status = scoreActivity(activity.Value, activity.Target)
	activity.UpdatedAt = time.Now().UTC()

	if err := uc.activities.UpdateStaged(ctx, activity); err != nil {
		return nil, fmt.Errorf("update staged activity: %w", err)
	}
	return activity, nil
}

func (uc *EditDraftUseCase) DeleteActivity(ctx context.Context, analysisID, activityID string) error {
	if err := uc.guardDraft(ctx, analysisID); err != nil {
		return err
	}
	if err := uc.activities.DeleteStaged(ctx, analysisID, activityID); err != nil {
		return fmt.Errorf("delete staged activity: %w", err)
	}
	return nil
}

func (uc *EditDraftUseCase) guardDraft(ctx context.Context, analysisID string) error {
	analysis, err := uc.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return domain.WrapError(domain.ErrNotFound, "load analysis", err)
	}
	if analysis.Status != domain.AnalysisDraft {
		return domain.WrapError(domain.ErrAlreadyDecided, "edit draft",
			fmt.Errorf("analysis %s is %s", analysisID, analysis.Status))
	}
	return nil
}

func (uc *EditDraftUseCase) findActivity(ctx context.Context, analysisID, activityID string) (*domain.ReportedActivity, error) {
	staged, err := uc.activities.ListByAnalysis(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("list staged activities: %w", err)
	}
	for i := range staged {
		if staged[i].ID == activityID {
			return &staged[i], nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "find staged activity",
		fmt.Errorf("activity %s not on analysis %s", activityID, analysisID))
}

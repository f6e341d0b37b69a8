package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/aggregate"
	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

// ApproveAnalysisUseCase governs the DRAFT -> APPROVED | REJECTED state
// machine. Approval folds the document's staged activities into the
// contribution ledger and rebuilds the touched aggregates, all inside one
// transaction: either every indicator's rollup reflects this document or
// none does, and the analysis stays a draft on failure.
type ApproveAnalysisUseCase struct {
	analyses ports.AnalysisStore
	ledger   ports.LedgerStore
	resolver ports.TargetResolver
	authz    ports.Authorizer
}

func NewApproveAnalysisUseCase(
	analyses ports.AnalysisStore,
	ledger ports.LedgerStore,
	resolver ports.TargetResolver,
	authz ports.Authorizer,
) *ApproveAnalysisUseCase {
	return &ApproveAnalysisUseCase{
		analyses: analyses,
		ledger:   ledger,
		resolver: resolver,
		authz:    authz,
	}
}

// indicatorGroup is one (KRA, indicator) bundle of staged activities.
// Grouping happens once per pair: comparing each activity against the
// target individually would multiply a count-kind target per activity.
type indicatorGroup struct {
	kra        domain.KRAID
	initiative domain.InitiativeID
	activities []domain.ReportedActivity
}

func (uc *ApproveAnalysisUseCase) Approve(ctx context.Context, analysisID string, principal domain.Principal) (ports.ApprovalReceipt, error) {
	receipt := ports.ApprovalReceipt{}

	analysis, err := uc.guardDecision(ctx, analysisID, principal)
	if err != nil {
		return receipt, err
	}

	now := time.Now().UTC()
	err = uc.ledger.WithinTx(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		staged, err := tx.StagedActivities(ctx, analysisID)
		if err != nil {
			return fmt.Errorf("load staged activities: %w", err)
		}
		if len(staged) == 0 {
			return domain.WrapError(domain.ErrNoStagedActivities, "approve analysis",
				fmt.Errorf("analysis %s has nothing staged", analysisID))
		}

		for _, group := range groupByIndicator(staged) {
			updated, err := uc.foldGroup(ctx, tx, analysis, group, now)
			if err != nil {
				return fmt.Errorf("indicator %s/%s: %w", group.kra, group.initiative, err)
			}
			if updated {
				receipt.UpdatedIndicators++
			} else {
				receipt.SkippedIndicators = append(receipt.SkippedIndicators,
					fmt.Sprintf("%s/%s", group.kra, group.initiative))
			}
		}
		if receipt.UpdatedIndicators == 0 {
			return domain.WrapError(domain.ErrNoStagedActivities, "approve analysis",
				fmt.Errorf("no staged activity resolved to a known indicator"))
		}

		if err := tx.MarkAnalysisDecided(ctx, analysisID, domain.AnalysisApproved, principal.ID, "", now); err != nil {
			return fmt.Errorf("mark analysis approved: %w", err)
		}
		if err := tx.MarkActivitiesCommitted(ctx, analysisID); err != nil {
			return fmt.Errorf("mark activities committed: %w", err)
		}
		return nil
	})
	if err != nil {
		return ports.ApprovalReceipt{}, txError("approve analysis", err)
	}

	receipt.Status = domain.AnalysisApproved
	slog.Info("analysis_approved",
		"analysis_id", analysisID,
		"approved_by", principal.ID,
		"updated_indicators", receipt.UpdatedIndicators,
		"skipped_indicators", len(receipt.SkippedIndicators),
	)
	return receipt, nil
}

// foldGroup resolves the indicator's metadata, computes this document's
// delta, replaces its ledger row and rebuilds the aggregate from the full
// ledger. Returns false when the indicator could not be resolved; the rest
// of the batch proceeds.
func (uc *ApproveAnalysisUseCase) foldGroup(ctx context.Context, tx ports.LedgerTx, analysis *domain.Analysis, group indicatorGroup, now time.Time) (bool, error) {
	resolution, err := uc.resolver.Resolve(ctx, group.kra, group.initiative, analysis.Year, analysis.Quarter)
	if err != nil || resolution.Kind == domain.KindUnknown {
		slog.Warn("indicator_unresolved",
			"analysis_id", analysis.ID,
			"kra", group.kra,
			"initiative", group.initiative,
			"error", err,
		)
		return false, nil
	}

	delta := aggregate.Compute(resolution.Kind, resolution.TargetValue, groupReports(group.activities, now))

	contribution := domain.Contribution{
		AnalysisID: analysis.ID,
		KRA:        resolution.KRA,
		Initiative: resolution.Initiative,
		Year:       analysis.Year,
		Quarter:    analysis.Quarter,
		Unit:       analysis.Unit,
		Value:      delta.TotalReported,
		Kind:       resolution.Kind,
		RecordedAt: now,
	}
	if err := tx.UpsertContribution(ctx, contribution); err != nil {
		return false, fmt.Errorf("upsert contribution: %w", err)
	}

	key := domain.AggregateKey{
		KRA:        resolution.KRA,
		Initiative: resolution.Initiative,
		Year:       analysis.Year,
		Quarter:    analysis.Quarter,
	}
	if err := uc.rebuildAggregate(ctx, tx, key, resolution, now); err != nil {
		return false, err
	}
	return true, nil
}

func (uc *ApproveAnalysisUseCase) rebuildAggregate(ctx context.Context, tx ports.LedgerTx, key domain.AggregateKey, resolution domain.TargetResolution, now time.Time) error {
	// The lock serializes concurrent approvals on the same indicator-period.
	if _, err := tx.LockAggregate(ctx, key); err != nil {
		return fmt.Errorf("lock aggregate: %w", err)
	}
	rows, err := tx.ContributionsForIndicator(ctx, key)
	if err != nil {
		return fmt.Errorf("list ledger rows: %w", err)
	}
	agg := aggregate.Fold(key, resolution.Kind, resolution.TargetValue, rows, now)
	if err := tx.SaveAggregate(ctx, &agg); err != nil {
		return fmt.Errorf("save aggregate: %w", err)
	}
	return nil
}

func (uc *ApproveAnalysisUseCase) Reject(ctx context.Context, analysisID string, principal domain.Principal, reason string) error {
	if _, err := uc.guardDecision(ctx, analysisID, principal); err != nil {
		return err
	}

	now := time.Now().UTC()
	err := uc.ledger.WithinTx(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		if err := tx.DiscardStagedActivities(ctx, analysisID); err != nil {
			return fmt.Errorf("discard staged activities: %w", err)
		}
		if err := tx.MarkAnalysisDecided(ctx, analysisID, domain.AnalysisRejected, principal.ID, reason, now); err != nil {
			return fmt.Errorf("mark analysis rejected: %w", err)
		}
		return nil
	})
	if err != nil {
		return txError("reject analysis", err)
	}

	slog.Info("analysis_rejected", "analysis_id", analysisID, "rejected_by", principal.ID, "reason", reason)
	return nil
}

// Delete reverses an analysis entirely: its ledger rows are removed and
// every touched aggregate is rebuilt from the remaining contributions, so
// the rollups end up exactly as if the document had never been approved.
func (uc *ApproveAnalysisUseCase) Delete(ctx context.Context, analysisID string, principal domain.Principal) error {
	analysis, err := uc.loadAnalysis(ctx, analysisID)
	if err != nil {
		return err
	}
	if err := uc.authorize(ctx, principal, analysisID); err != nil {
		return err
	}

	now := time.Now().UTC()
	err = uc.ledger.WithinTx(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		removed, err := tx.RemoveContributions(ctx, analysisID)
		if err != nil {
			return fmt.Errorf("remove contributions: %w", err)
		}
		for _, c := range removed {
			key := domain.AggregateKey{KRA: c.KRA, Initiative: c.Initiative, Year: c.Year, Quarter: c.Quarter}
			resolution, err := uc.resolver.Resolve(ctx, c.KRA, c.Initiative, c.Year, c.Quarter)
			if err != nil {
				// KRA vanished from the plan since approval; rebuild
				// under the kind recorded at approval time.
				resolution = domain.TargetResolution{KRA: c.KRA, Initiative: c.Initiative, Kind: c.Kind}
			}
			if err := uc.rebuildAggregate(ctx, tx, key, resolution, now); err != nil {
				return err
			}
		}
		if err := tx.DiscardStagedActivities(ctx, analysisID); err != nil {
			return fmt.Errorf("discard staged activities: %w", err)
		}
		if err := tx.DeleteAnalysis(ctx, analysisID); err != nil {
			return fmt.Errorf("delete analysis: %w", err)
		}
		return nil
	})
	if err != nil {
		return txError("delete analysis", err)
	}

	slog.Info("analysis_deleted", "analysis_id", analysisID, "deleted_by", principal.ID, "was_status", analysis.Status)
	return nil
}

func (uc *ApproveAnalysisUseCase) guardDecision(ctx context.Context, analysisID string, principal domain.Principal) (*domain.Analysis, error) {
	analysis, err := uc.loadAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if err := analysis.CanDecide(); err != nil {
		return nil, err
	}
	if err := uc.authorize(ctx, principal, analysisID); err != nil {
		return nil, err
	}
	return analysis, nil
}

func (uc *ApproveAnalysisUseCase) loadAnalysis(ctx context.Context, analysisID string) (*domain.Analysis, error) {
	analysis, err := uc.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNotFound, "load analysis", err)
	}
	return analysis, nil
}

func (uc *ApproveAnalysisUseCase) authorize(ctx context.Context, principal domain.Principal, analysisID string) error {
	allowed, err := uc.authz.CanDecide(ctx, principal, analysisID)
	if err != nil {
		return fmt.Errorf("authorization check: %w", err)
	}
	if !allowed {
		return domain.WrapError(domain.ErrForbidden, "decide analysis",
			fmt.Errorf("principal %q lacks approve capability", principal.ID))
	}
	return nil
}

func groupByIndicator(staged []domain.ReportedActivity) []indicatorGroup {
	byKey := make(map[string]*indicatorGroup)
	for _, activity := range staged {
		kra := domain.NormalizeKRA(string(activity.KRA))
		initiative := domain.NormalizeInitiative(string(activity.Initiative))
		key := string(kra) + "\x00" + string(initiative)
		group, ok := byKey[key]
		if !ok {
			group = &indicatorGroup{kra: kra, initiative: initiative}
			byKey[key] = group
		}
		group.activities = append(group.activities, activity)
	}

	groups := make([]indicatorGroup, 0, len(byKey))
	for _, group := range byKey {
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].kra != groups[j].kra {
			return groups[i].kra < groups[j].kra
		}
		return groups[i].initiative < groups[j].initiative
	})
	return groups
}

// groupReports turns staged activities into calculator inputs. Rows with
// no parsed value are excluded here, not zeroed.
func groupReports(activities []domain.ReportedActivity, now time.Time) []aggregate.Reported {
	reports := make([]aggregate.Reported, 0, len(activities))
	for _, activity := range activities {
		if activity.Value == nil {
			continue
		}
		submittedAt := activity.UpdatedAt
		if submittedAt.IsZero() {
			submittedAt = now
		}
		reports = append(reports, aggregate.Reported{
			Value:       *activity.Value,
			Denominator: activity.Denominator,
			SubmittedAt: submittedAt,
		})
	}
	return reports
}

// txError maps infrastructure failures onto the transaction-failed kind
// while letting typed state-machine errors pass through untouched.
func txError(operation string, err error) error {
	switch {
	case domain.IsKind(err, domain.ErrNoStagedActivities),
		domain.IsKind(err, domain.ErrAlreadyDecided),
		domain.IsKind(err, domain.ErrForbidden),
		domain.IsKind(err, domain.ErrNotFound),
		domain.IsKind(err, domain.ErrInvalidInput):
		return err
	default:
		return domain.WrapError(domain.ErrTransactionFailed, operation, err)
	}
}

package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

// IngestReportUseCase stores an uploaded quarterly report, creates its
// draft analysis and hands extraction off to the worker.
type IngestReportUseCase struct {
	analyses ports.AnalysisStore
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
}

func NewIngestReportUseCase(
	analyses ports.AnalysisStore,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestReportUseCase {
	return &IngestReportUseCase{
		analyses: analyses,
		storage:  storage,
		queue:    queue,
	}
}

func (uc *IngestReportUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	year, quarter int,
	unit string,
	body io.Reader,
) (*domain.Analysis, error) {
	if year < 2000 || year > 2100 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload report", fmt.Errorf("year %d out of range", year))
	}
	if quarter < 1 || quarter > 4 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload report", fmt.Errorf("quarter %d out of range", quarter))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save report to object storage: %w", err)
	}

	analysis := &domain.Analysis{
		ID:          id,
		Year:        year,
		Quarter:     quarter,
		Unit:        strings.TrimSpace(unit),
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.AnalysisDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.analyses.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("create analysis record: %w", err)
	}

	if err := uc.queue.PublishAnalysisStaged(ctx, analysis.ID); err != nil {
		return nil, fmt.Errorf("publish staged-analysis event: %w", err)
	}

	return analysis, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "report.bin"
	}
	return base
}

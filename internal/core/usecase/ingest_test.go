package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

type ingestHarness struct {
	uc       *IngestReportUseCase
	analyses *analysisStoreFake
	storage  *storageFake
	queue    *queueFake
}

func newIngestHarness() *ingestHarness {
	h := &ingestHarness{
		analyses: newAnalysisStoreFake(),
		storage:  newStorageFake(),
		queue:    &queueFake{},
	}
	h.uc = NewIngestReportUseCase(h.analyses, h.storage, h.queue)
	return h
}

func TestUploadCreatesDraftAndQueuesExtraction(t *testing.T) {
	h := newIngestHarness()
	body := strings.NewReader("report bytes")

	analysis, err := h.uc.Upload(context.Background(), "Q2 Report (final).pdf", "application/pdf", 2026, 2, "Registrar", body)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if analysis.Status != domain.AnalysisDraft {
		t.Fatalf("status = %s, want draft", analysis.Status)
	}
	if analysis.Year != 2026 || analysis.Quarter != 2 || analysis.Unit != "Registrar" {
		t.Fatalf("period = %+v", analysis)
	}

	stored, err := h.analyses.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("analysis not persisted: %v", err)
	}
	if stored.StoragePath == "" {
		t.Fatal("no storage path recorded")
	}
	if _, ok := h.storage.saved[stored.StoragePath]; !ok {
		t.Fatalf("report bytes not saved under %q", stored.StoragePath)
	}
	if len(h.queue.published) != 1 || h.queue.published[0] != analysis.ID {
		t.Fatalf("published = %v, want one event for %s", h.queue.published, analysis.ID)
	}
}

func TestUploadRejectsOutOfRangePeriod(t *testing.T) {
	h := newIngestHarness()
	cases := []struct {
		name    string
		year    int
		quarter int
	}{
		{"quarter zero", 2026, 0},
		{"quarter five", 2026, 5},
		{"ancient year", 1990, 1},
		{"far future year", 2200, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.uc.Upload(context.Background(), "r.pdf", "application/pdf", tc.year, tc.quarter, "HR", strings.NewReader("x"))
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUploadPropagatesStorageFailure(t *testing.T) {
	h := newIngestHarness()
	h.storage.err = errors.New("disk full")

	if _, err := h.uc.Upload(context.Background(), "r.pdf", "application/pdf", 2026, 1, "HR", strings.NewReader("x")); err == nil {
		t.Fatal("expected error")
	}
	if len(h.analyses.byID) != 0 {
		t.Fatal("analysis created despite storage failure")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Q2 Report (final).pdf", "Q2_Report__final_.pdf"},
		{"../../etc/passwd", "passwd"},
		{"отчёт.docx", "_____.docx"},
		{"", "report.bin"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

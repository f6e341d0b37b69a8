package extractor

import (
	"context"
	"testing"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

type extractorStub struct {
	text string
}

func (s *extractorStub) Extract(context.Context, *domain.Analysis) (string, error) {
	return s.text, nil
}

func TestRouterPicksPDFByMimeOrExtension(t *testing.T) {
	router := NewRouter(&extractorStub{text: "pdf"}, &extractorStub{text: "plain"})

	cases := []struct {
		name     string
		analysis domain.Analysis
		want     string
	}{
		{"pdf mime", domain.Analysis{MimeType: "application/pdf", Filename: "report.bin"}, "pdf"},
		{"pdf extension with generic mime", domain.Analysis{MimeType: "application/octet-stream", Filename: "Q2.PDF"}, "pdf"},
		{"text report", domain.Analysis{MimeType: "text/plain", Filename: "report.txt"}, "plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := router.Extract(context.Background(), &tc.analysis)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Extract() = %q, want %q", got, tc.want)
			}
		})
	}
}

// Package extractor routes a stored report to the extractor matching its
// upload format.
package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

// Router picks a TextExtractor by MIME type, falling back on the filename
// extension because browsers and older office tooling misreport MIME.
type Router struct {
	pdf      ports.TextExtractor
	fallback ports.TextExtractor
}

func NewRouter(pdf, fallback ports.TextExtractor) *Router {
	return &Router{pdf: pdf, fallback: fallback}
}

func (r *Router) Extract(ctx context.Context, analysis *domain.Analysis) (string, error) {
	if isPDF(analysis) {
		return r.pdf.Extract(ctx, analysis)
	}
	return r.fallback.Extract(ctx, analysis)
}

func isPDF(analysis *domain.Analysis) bool {
	if strings.EqualFold(strings.TrimSpace(analysis.MimeType), "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(analysis.Filename), ".pdf")
}

package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

// Extractor handles reports uploaded as plain text or CSV exports.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, analysis *domain.Analysis) (string, error) {
	reader, err := e.storage.Open(ctx, analysis.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open report document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read report document: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("report %s is not valid text", analysis.Filename)
	}

	return strings.TrimSpace(string(raw)), nil
}

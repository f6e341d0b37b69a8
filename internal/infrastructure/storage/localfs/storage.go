package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

// Storage keeps uploaded report blobs on the local filesystem, one file per
// analysis, keyed by the analysis id plus its sanitized original filename.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/reports"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create report storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// validateKey keeps every blob a direct child of basePath. Keys embed
// caller-supplied filenames, so separators and dot segments are rejected
// rather than joined.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return domain.WrapError(domain.ErrInvalidInput, "report storage key", fmt.Errorf("empty or dot key"))
	}
	if strings.ContainsAny(key, `/\`) {
		return domain.WrapError(domain.ErrInvalidInput, "report storage key", fmt.Errorf("key %q contains a path separator", key))
	}
	return nil
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(s.basePath, key))
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "open report file", err)
		}
		return nil, fmt.Errorf("open report file: %w", err)
	}
	return f, nil
}

package localfs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

func TestStorageSaveOpenRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	key := "a-1_q2_report.pdf"
	if err := store.Save(ctx, key, strings.NewReader("quarterly report body")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reader, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(body) != "quarterly report body" {
		t.Fatalf("body = %q", body)
	}
}

func TestStorageRejectsEscapingKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	for _, key := range []string{"", ".", "..", "../outside.pdf", "nested/report.pdf", `nested\report.pdf`} {
		if err := store.Save(ctx, key, strings.NewReader("x")); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidInput", key, err)
		}
		if _, err := store.Open(ctx, key); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Open(%q) error = %v, want ErrInvalidInput", key, err)
		}
	}
}

func TestStorageOpenMissingKeyIsNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := store.Open(context.Background(), "a-404_report.pdf"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Open() error = %v, want ErrNotFound", err)
	}
}

// Package seed applies target-override records from a YAML file at
// startup. The file is how planning staff correct a target or a misread
// measurement kind for a specific period without touching the workbook.
package seed

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
)

type overrideRecord struct {
	KRA       string  `yaml:"kra"`
	Indicator string  `yaml:"indicator"`
	Year      int     `yaml:"year"`
	Quarter   int     `yaml:"quarter"`
	Kind      string  `yaml:"kind,omitempty"`
	Target    float64 `yaml:"target"`
}

type overrideFile struct {
	Overrides []overrideRecord `yaml:"overrides"`
}

// ApplyFile reads path and upserts each override. A missing file is not an
// error; most deployments carry no overrides.
func ApplyFile(ctx context.Context, path string, store ports.OverrideStore) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read override seed: %w", err)
	}
	return Apply(ctx, content, store)
}

func Apply(ctx context.Context, content []byte, store ports.OverrideStore) (int, error) {
	var file overrideFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return 0, fmt.Errorf("parse override seed: %w", err)
	}

	applied := 0
	for i, rec := range file.Overrides {
		override, err := toOverride(rec)
		if err != nil {
			return applied, fmt.Errorf("override %d: %w", i+1, err)
		}
		if err := store.Put(ctx, override); err != nil {
			return applied, fmt.Errorf("store override %d: %w", i+1, err)
		}
		applied++
	}
	return applied, nil
}

func toOverride(rec overrideRecord) (domain.TargetOverride, error) {
	if rec.KRA == "" || rec.Indicator == "" {
		return domain.TargetOverride{}, fmt.Errorf("kra and indicator are required")
	}
	if rec.Quarter < 1 || rec.Quarter > 4 {
		return domain.TargetOverride{}, fmt.Errorf("quarter %d out of range", rec.Quarter)
	}
	kind := domain.MeasurementKind("")
	if rec.Kind != "" {
		kind = domain.ParseMeasurementKind(rec.Kind)
		if kind == domain.KindUnknown {
			return domain.TargetOverride{}, fmt.Errorf("unknown kind %q", rec.Kind)
		}
	}
	return domain.TargetOverride{
		KRA:         domain.NormalizeKRA(rec.KRA),
		Initiative:  domain.NormalizeInitiative(rec.Indicator),
		Year:        rec.Year,
		Quarter:     rec.Quarter,
		Kind:        kind,
		TargetValue: rec.Target,
	}, nil
}

// Package excel loads the strategic-plan workbook into an in-memory
// KRA/indicator catalog. The workbook is reference data maintained by the
// planning office; it is read once at startup.
package excel

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

const indicatorSheet = "Indicators"

// Catalog is an immutable in-memory plan catalog.
type Catalog struct {
	kras       map[domain.KRAID]domain.KRA
	indicators map[domain.KRAID][]domain.Indicator
}

// Load reads the plan workbook from path.
func Load(path string) (*Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open plan workbook: %w", err)
	}
	defer f.Close()
	return parse(f)
}

// Read parses a plan workbook from a stream.
func Read(r io.Reader) (*Catalog, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read plan workbook: %w", err)
	}
	defer f.Close()
	return parse(f)
}

// parse expects an Indicators sheet with the header row
// KRA | KRA Title | Indicator | Name | Kind | <year> | <year> | ...
// Year columns hold the plan target for that year; blank cells mean the
// plan sets no target for the year.
func parse(f *excelize.File) (*Catalog, error) {
	rows, err := f.GetRows(indicatorSheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", indicatorSheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %s has no indicator rows", indicatorSheet)
	}

	years, err := parseYearColumns(rows[0])
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		kras:       make(map[domain.KRAID]domain.KRA),
		indicators: make(map[domain.KRAID][]domain.Indicator),
	}
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		if err := c.addRow(row, years); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	return c, nil
}

func (c *Catalog) addRow(row []string, years map[int]int) error {
	if len(row) < 5 {
		return fmt.Errorf("expected at least 5 columns, got %d", len(row))
	}
	kraID := domain.NormalizeKRA(row[0])
	if kraID == "" {
		return fmt.Errorf("empty kra id")
	}
	indicatorID := domain.NormalizeInitiative(row[2])
	if indicatorID == "" {
		return fmt.Errorf("empty indicator id")
	}

	if _, ok := c.kras[kraID]; !ok {
		c.kras[kraID] = domain.KRA{ID: kraID, Title: strings.TrimSpace(row[1])}
	}

	indicator := domain.Indicator{
		ID:            indicatorID,
		KRA:           kraID,
		Name:          strings.TrimSpace(row[3]),
		Kind:          domain.ParseMeasurementKind(row[4]),
		TargetsByYear: make(map[int]float64),
	}
	for year, col := range years {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
		if err != nil {
			return fmt.Errorf("target for year %d: %w", year, err)
		}
		indicator.TargetsByYear[year] = v
	}

	c.indicators[kraID] = append(c.indicators[kraID], indicator)
	return nil
}

func parseYearColumns(header []string) (map[int]int, error) {
	years := make(map[int]int)
	for col, cell := range header {
		cell = strings.TrimSpace(cell)
		if len(cell) != 4 {
			continue
		}
		year, err := strconv.Atoi(cell)
		if err != nil || year < 2000 || year > 2100 {
			continue
		}
		years[year] = col
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("header row has no year columns")
	}
	return years, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func (c *Catalog) KRA(id domain.KRAID) (*domain.KRA, bool) {
	kra, ok := c.kras[id]
	if !ok {
		return nil, false
	}
	return &kra, true
}

func (c *Catalog) Indicator(kra domain.KRAID, id domain.InitiativeID) (*domain.Indicator, bool) {
	for _, ind := range c.indicators[kra] {
		if ind.ID == id {
			copied := ind
			return &copied, true
		}
	}
	return nil, false
}

func (c *Catalog) IndicatorsByKRA(kra domain.KRAID) []domain.Indicator {
	return append([]domain.Indicator(nil), c.indicators[kra]...)
}

// KRAs lists the catalog's KRAs in id order.
func (c *Catalog) KRAs() []domain.KRA {
	out := make([]domain.KRA, 0, len(c.kras))
	for _, kra := range c.kras {
		out = append(out, kra)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package rent

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// Table is an in-memory rent lookup keyed by normalized district name.
type Table struct {
	rents map[string]float64
}

// NewTable builds a Table from district → rent pairs.
func NewTable(rents map[string]float64) *Table {
	t := &Table{rents: make(map[string]float64, len(rents))}
	for d, r := range rents {
		t.rents[NormalizeDistrict(d)] = r
	}
	return t
}

// AverageRent implements Lookup.
func (t *Table) AverageRent(_ context.Context, district string) (float64, bool, error) {
	if district == "" {
		return 0, false, nil
	}
	r, ok := t.rents[NormalizeDistrict(district)]
	return r, ok, nil
}

// Len returns the number of districts.
func (t *Table) Len() int { return len(t.rents) }

// XLSXOptions selects the sheet and columns of a rent workbook.
type XLSXOptions struct {
	SheetName      string // default: first sheet
	DistrictColumn string // header name, default "district"
	RentColumn     string // header name, default "average_rent"
}

// LoadXLSX reads a rent table from the first row-headed sheet of an XLSX
// workbook. Rows with a blank district or an unparseable rent are skipped.
// Thousands separators in rent cells are ignored.
func LoadXLSX(path string, opts XLSXOptions) (*Table, error) {
	if opts.DistrictColumn == "" {
		opts.DistrictColumn = "district"
	}
	if opts.RentColumn == "" {
		opts.RentColumn = "average_rent"
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "rent: open xlsx")
	}

	var sheet *xlsx.Sheet
	if opts.SheetName != "" {
		s, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("rent: sheet %q not found", opts.SheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("rent: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("rent: sheet is empty")
	}

	districtIdx, rentIdx := -1, -1
	for i, c := range sheet.Rows[0].Cells {
		switch strings.ToLower(strings.TrimSpace(c.String())) {
		case strings.ToLower(opts.DistrictColumn):
			districtIdx = i
		case strings.ToLower(opts.RentColumn):
			rentIdx = i
		}
	}
	if districtIdx < 0 || rentIdx < 0 {
		return nil, eris.Errorf("rent: header must contain %q and %q", opts.DistrictColumn, opts.RentColumn)
	}

	rents := make(map[string]float64)
	var skipped int
	for _, row := range sheet.Rows[1:] {
		if row == nil || len(row.Cells) <= districtIdx || len(row.Cells) <= rentIdx {
			skipped++
			continue
		}
		district := strings.TrimSpace(row.Cells[districtIdx].String())
		raw := strings.ReplaceAll(strings.TrimSpace(row.Cells[rentIdx].String()), ",", "")
		value, err := strconv.ParseFloat(raw, 64)
		if district == "" || err != nil || value < 0 {
			skipped++
			continue
		}
		rents[district] = value
	}

	if skipped > 0 {
		zap.L().Debug("rent: skipped xlsx rows", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return NewTable(rents), nil
}

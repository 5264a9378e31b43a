package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ErrSheetNotFound is returned when a named sheet is missing from a workbook.
var ErrSheetNotFound = eris.New("sheet not found")

// XLSXOptions selects a sheet and how many leading rows to drop.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // overrides SheetIndex when set
	SkipRows   int
}

// Workbook is an opened XLSX file whose sheets can be read repeatedly.
type Workbook struct {
	path string
	file *xlsx.File
}

// OpenWorkbook parses the workbook at path.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}
	return &Workbook{path: path, file: f}, nil
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.file.Sheets))
	for i, s := range w.file.Sheets {
		names[i] = s.Name
	}
	return names
}

// HasSheet reports whether a sheet exists, ignoring case and outer spaces.
func (w *Workbook) HasSheet(name string) bool {
	_, err := w.sheet(XLSXOptions{SheetName: name})
	return err == nil
}

// Rows returns the selected sheet as trimmed string rows. Trailing empty
// rows are dropped.
func (w *Workbook) Rows(opts XLSXOptions) ([][]string, error) {
	sheet, err := w.sheet(opts)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for i, row := range sheet.Rows {
		if i < opts.SkipRows || row == nil {
			continue
		}
		rows = append(rows, cellStrings(row))
	}
	for len(rows) > 0 && blank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

// ReadXLSX opens path and returns the rows of one sheet.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	wb, err := OpenWorkbook(path)
	if err != nil {
		return nil, err
	}
	return wb.Rows(opts)
}

func (w *Workbook) sheet(opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		if s, ok := w.file.Sheet[opts.SheetName]; ok {
			return s, nil
		}
		want := strings.ToUpper(strings.TrimSpace(opts.SheetName))
		for _, s := range w.file.Sheets {
			if strings.ToUpper(strings.TrimSpace(s.Name)) == want {
				return s, nil
			}
		}
		return nil, eris.Wrapf(ErrSheetNotFound, "xlsx: sheet %q in %s", opts.SheetName, w.path)
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(w.file.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(w.file.Sheets))
	}
	return w.file.Sheets[opts.SheetIndex], nil
}

func cellStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		out[j] = strings.TrimSpace(cell.String())
	}
	return out
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

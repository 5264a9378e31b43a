// Package export writes quote batches for downstream consumers: an XLSX
// workbook mirroring the quotation template, a JSON document and a GeoJSON
// collection of leg geometries.
package export

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/quote"
)

// Format is an output encoding.
type Format string

const (
	FormatXLSX    Format = "xlsx"
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
)

// Report is everything an export needs: the input rows, their results
// (same order) and the run summary.
type Report struct {
	Summary model.RunSummary
	Rows    []model.ShipmentRow
	Results []*model.QuoteResult
}

// NewReport builds a report from a finished batch.
func NewReport(rows []model.ShipmentRow, b *quote.Batch) *Report {
	return &Report{Summary: b.Summary, Rows: rows, Results: b.Results}
}

// FormatFor infers the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	case ".geojson":
		return FormatGeoJSON, nil
	default:
		return "", eris.Errorf("export: unknown output extension %q", filepath.Ext(path))
	}
}

// Save writes the report to path in the format implied by its extension.
func Save(path string, r *Report) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}

	switch format {
	case FormatXLSX:
		err = WriteXLSX(f, r)
	case FormatJSON:
		err = WriteJSON(f, r)
	case FormatGeoJSON:
		err = WriteGeoJSON(f, r)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrapf(cerr, "export: close %s", path)
	}
	if err != nil {
		return err
	}

	zap.L().Info("export: written",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("rows", len(r.Results)),
	)
	return nil
}

// legs is the display order of the three legs.
var legs = []model.Leg{model.LegOriginInland, model.LegMain, model.LegDestInland}

func legList(ls []model.Leg) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = strconv.Itoa(int(l))
	}
	return strings.Join(parts, ",")
}

func flagCodes(fs []model.Flag) string {
	codes := make([]string, 0, len(fs))
	for _, f := range fs {
		code := string(f.Code)
		if !containsString(codes, code) {
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, ",")
}

func containsString(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

package refdata

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/fetcher"
	"github.com/sells-group/quote-cli/internal/model"
)

// TemplateColumns maps the quotation template headers to field keys, in
// template order. Exports write the headers back in this order.
var TemplateColumns = []struct {
	Header string
	Key    string
}{
	{"Part Number (PN)", "pn"},
	{"Part Designation", "designation"},
	{"Supplier/Plant", "supplier_plant"},
	{"Incoterm", "incoterm"},
	{"Origin Country code", "origin_country_code"},
	{"Origin Country", "origin_country"},
	{"Origin City", "origin_city"},
	{"Origin ZIP Code", "origin_zip"},
	{"Destination Plant", "dest_plant"},
	{"Destination country code", "dest_country_code"},
	{"Destination Country", "dest_country"},
	{"Destination City", "dest_city"},
	{"Destinartion ZIP Code", "dest_zip"},
	{"Anual Needs (PN / Year)", "annual_needs"},
	{"Daily Need (PN / Day)", "daily_need"},
	{"PN Unit cost (€)", "unit_cost_eur"},
	{"Packaging Code", "packaging_code"},
}

// extra header spellings seen in the wild.
var headerAliases = map[string]string{
	"destination zip code":     "dest_zip",
	"annual needs":             "annual_needs",
	"annual needs (pn / year)": "annual_needs",
}

// incotermFallbackCol is column M of the template.
const incotermFallbackCol = 12

// ReadShipmentsXLSX reads shipment rows from a template workbook sheet.
func ReadShipmentsXLSX(path, sheet string) ([]model.ShipmentRow, error) {
	if sheet == "" {
		sheet = "Input"
	}
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: sheet})
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read template")
	}
	return ParseShipments(rows), nil
}

// ReadShipmentsCSV reads shipment rows from CSV with a header row.
func ReadShipmentsCSV(ctx context.Context, r io.Reader) ([]model.ShipmentRow, error) {
	rows, err := fetcher.ReadCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true})
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read csv template")
	}
	return ParseShipments(rows), nil
}

// ParseShipments maps header + data rows to ShipmentRows. Headers may be
// template names or field keys. When no Incoterm header is found column M
// is used. Fully empty rows are skipped; Row numbers are 1-based data rows.
func ParseShipments(rows [][]string) []model.ShipmentRow {
	if len(rows) == 0 {
		return nil
	}
	cols := mapTemplateHeader(rows[0])
	if _, ok := cols["incoterm"]; !ok && len(rows[0]) > incotermFallbackCol {
		cols["incoterm"] = incotermFallbackCol
	}
	get := func(row []string, key string) string {
		i, ok := cols[key]
		if !ok {
			return ""
		}
		return Cell(row, i)
	}

	var out []model.ShipmentRow
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		out = append(out, model.ShipmentRow{
			Row:         i + 1,
			PartNumber:  get(row, "pn"),
			Designation: get(row, "designation"),
			Incoterm:    strings.ToUpper(get(row, "incoterm")),
			Origin: model.Location{
				CountryCode: get(row, "origin_country_code"),
				CountryName: get(row, "origin_country"),
				City:        get(row, "origin_city"),
				ZIP:         get(row, "origin_zip"),
				Plant:       get(row, "supplier_plant"),
			},
			Destination: model.Location{
				CountryCode: get(row, "dest_country_code"),
				CountryName: get(row, "dest_country"),
				City:        get(row, "dest_city"),
				ZIP:         get(row, "dest_zip"),
				Plant:       get(row, "dest_plant"),
			},
			AnnualNeeds:   ParseNumber(get(row, "annual_needs")),
			DailyNeed:     ParseNumber(get(row, "daily_need")),
			UnitCostEUR:   ParseNumber(get(row, "unit_cost_eur")),
			PackagingCode: get(row, "packaging_code"),
		})
	}
	return out
}

func mapTemplateHeader(header []string) map[string]int {
	byName := make(map[string]string, len(TemplateColumns)*2+len(headerAliases))
	for _, c := range TemplateColumns {
		byName[strings.ToLower(c.Header)] = c.Key
		byName[c.Key] = c.Key
	}
	for k, v := range headerAliases {
		byName[k] = v
	}

	cols := make(map[string]int)
	for i, h := range header {
		key, ok := byName[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

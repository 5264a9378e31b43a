package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/quote"
	"github.com/sells-group/quote-cli/internal/refdata"
)

// Sheet names of the exported workbook.
const (
	SheetInput   = "Input"
	SheetQuote   = "Quote"
	SheetSummary = "Summary"
)

// QuoteColumns is the header of the Quote sheet.
var QuoteColumns = []string{
	"Row", "Part Number (PN)", "Incoterm", "Flow", "Legs",
	"Origin CC", "Destination CC", "Origin source", "Destination source",
	"POL", "POD", "Port selection", "POL km", "POD km",
	"Leg1 km", "Leg1 EUR/km", "Leg1 cost (EUR)",
	"Leg2 rate (EUR)", "Leg2 cost (EUR)",
	"Leg3 km", "Leg3 EUR/km", "Leg3 cost (EUR)",
	"Transit time (days)", "Total cost (EUR)", "Flags", "Red flag/Debug",
}

// WriteXLSX writes the Input, Quote and Summary sheets.
func WriteXLSX(w io.Writer, r *Report) error {
	f := xlsx.NewFile()

	input, err := f.AddSheet(SheetInput)
	if err != nil {
		return eris.Wrap(err, "export: add input sheet")
	}
	header := make([]string, len(refdata.TemplateColumns))
	for i, c := range refdata.TemplateColumns {
		header[i] = c.Header
	}
	addStrings(input, header)
	for _, row := range r.Rows {
		addStrings(input, inputCells(row))
	}

	qs, err := f.AddSheet(SheetQuote)
	if err != nil {
		return eris.Wrap(err, "export: add quote sheet")
	}
	addStrings(qs, QuoteColumns)
	for _, res := range r.Results {
		if res != nil {
			addQuoteRow(qs, res)
		}
	}

	ss, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addSummary(ss, r)

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addStrings(s *xlsx.Sheet, values []string) {
	row := s.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addFloat(row *xlsx.Row, v *float64) {
	c := row.AddCell()
	if v != nil {
		c.SetFloat(*v)
	}
}

func addQuoteRow(s *xlsx.Sheet, res *model.QuoteResult) {
	row := s.AddRow()
	row.AddCell().SetInt(res.Row)
	for _, v := range []string{
		res.PartNumber, res.Incoterm, string(res.Flow), legList(res.Legs),
		res.OriginCC, res.DestCC, res.Origin.Source.String(), res.Destination.Source.String(),
		res.POL, res.POD, res.PortReason,
	} {
		row.AddCell().SetString(v)
	}
	addFloat(row, res.POLDistanceKM)
	addFloat(row, res.PODDistanceKM)

	addFloat(row, res.Leg1.DistanceKM)
	addFloat(row, res.Leg1.Rate)
	addFloat(row, res.Leg1.CostEUR)
	addFloat(row, res.Leg2.Rate)
	addFloat(row, res.Leg2.CostEUR)
	addFloat(row, res.Leg3.DistanceKM)
	addFloat(row, res.Leg3.Rate)
	addFloat(row, res.Leg3.CostEUR)

	addFloat(row, res.TransitDays)
	row.AddCell().SetFloat(res.TotalCostEUR)
	row.AddCell().SetString(flagCodes(res.Flags))
	row.AddCell().SetString(res.Debug())
}

func addSummary(s *xlsx.Sheet, r *Report) {
	sum := r.Summary
	pairs := [][2]string{
		{"Run ID", sum.ID},
		{"Input", sum.Input},
		{"Rows", strconv.Itoa(sum.Rows)},
		{"Flagged rows", strconv.Itoa(sum.Flagged)},
		{"Total cost (EUR)", strconv.FormatFloat(sum.TotalCostEUR, 'f', 2, 64)},
	}
	if !sum.StartedAt.IsZero() {
		pairs = append(pairs, [2]string{"Started", sum.StartedAt.Format("2006-01-02 15:04:05Z07:00")})
	}
	if !sum.FinishedAt.IsZero() {
		pairs = append(pairs, [2]string{"Finished", sum.FinishedAt.Format("2006-01-02 15:04:05Z07:00")})
	}
	for _, p := range pairs {
		addStrings(s, p[:])
	}

	counts := quote.CountFlags(r.Results)
	if len(counts) == 0 {
		return
	}
	s.AddRow()
	addStrings(s, []string{"Flag", "Rows"})
	for _, c := range counts {
		row := s.AddRow()
		row.AddCell().SetString(string(c.Code))
		row.AddCell().SetInt(c.Rows)
	}
}

// inputCells renders a shipment row back in template column order.
func inputCells(r model.ShipmentRow) []string {
	num := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	values := map[string]string{
		"pn":                  r.PartNumber,
		"designation":         r.Designation,
		"supplier_plant":      r.Origin.Plant,
		"incoterm":            r.Incoterm,
		"origin_country_code": r.Origin.CountryCode,
		"origin_country":      r.Origin.CountryName,
		"origin_city":         r.Origin.City,
		"origin_zip":          r.Origin.ZIP,
		"dest_plant":          r.Destination.Plant,
		"dest_country_code":   r.Destination.CountryCode,
		"dest_country":        r.Destination.CountryName,
		"dest_city":           r.Destination.City,
		"dest_zip":            r.Destination.ZIP,
		"annual_needs":        num(r.AnnualNeeds),
		"daily_need":          num(r.DailyNeed),
		"unit_cost_eur":       num(r.UnitCostEUR),
		"packaging_code":      r.PackagingCode,
	}
	out := make([]string, len(refdata.TemplateColumns))
	for i, c := range refdata.TemplateColumns {
		out[i] = strings.TrimSpace(values[c.Key])
	}
	return out
}

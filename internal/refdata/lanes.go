package refdata

import (
	"strings"

	"github.com/sells-group/quote-cli/internal/normalize"
)

var (
	polColumns  = []string{"POL", "Port of Loading", "Origin Port", "POL CODE", "POL Code", "Port Of Loading"}
	podColumns  = []string{"POD", "Port of Discharge", "Destination Port", "POD CODE", "POD Code", "Port Of Discharge"}
	rateColumns = []string{"Rate 40ft all-in", "Rate 40FT ALL-IN", "Rate 40ft", "Ocean Rate"}
	ttColumns   = []string{"TT", "TT (days)", "TT(days)", "Transit Time"}

	polCountryNames = []string{
		"pol country code", "pol country", "pol cc", "country pol",
		"origin country code", "origin country", "country of origin", "origin cc",
	}
	podCountryNames = []string{
		"pod country code", "pod country", "pod cc", "country pod",
		"destination country code", "destination country", "dest country", "country of destination", "dest cc",
	}
)

// Lane is one row of the main-carriage lane table.
type Lane struct {
	POL         string
	POD         string
	POLCountry  string // ISO code when the cell could be coerced, else the raw upper-cased value
	PODCountry  string
	Rate        *float64
	TransitDays *float64
}

// LaneTable is the MAIN PORTS sheet.
type LaneTable struct {
	Lanes         []Lane
	HasPOLCountry bool
	HasPODCountry bool
}

// BuildLaneTable parses the lane sheet. Country columns are found by name
// and confirmed against the UN/LOCODE prefixes of the port codes.
func BuildLaneTable(s *Sheet, coercer *normalize.CountryCoercer) *LaneTable {
	t := &LaneTable{}
	polCol := s.Col(polColumns, "pol")
	podCol := s.Col(podColumns, "pod")
	if polCol < 0 || podCol < 0 {
		return t
	}
	rateCol := s.Col(rateColumns, "rate", "40", "all")
	if rateCol < 0 {
		rateCol = s.Col(nil, "rate")
	}
	ttCol := s.Col(ttColumns, "transit")

	taken := map[int]bool{polCol: true, podCol: true, rateCol: true, ttCol: true}
	polCC := detectCountryColumn(s, polCountryNames, polCol, taken, coercer)
	if polCC >= 0 {
		taken[polCC] = true
	}
	podCC := detectCountryColumn(s, podCountryNames, podCol, taken, coercer)

	t.HasPOLCountry = polCC >= 0
	t.HasPODCountry = podCC >= 0

	for _, row := range s.Rows {
		pol, pod := upper(Cell(row, polCol)), upper(Cell(row, podCol))
		if pol == "" || pod == "" {
			continue
		}
		t.Lanes = append(t.Lanes, Lane{
			POL:         pol,
			POD:         pod,
			POLCountry:  countryValue(Cell(row, polCC), coercer),
			PODCountry:  countryValue(Cell(row, podCC), coercer),
			Rate:        ParseNumber(Cell(row, rateCol)),
			TransitDays: ParseNumber(Cell(row, ttCol)),
		})
	}
	return t
}

// Lookup returns the lane for an exact (POL, POD) pair. When the pair
// appears more than once the first non-empty rate and transit time win.
func (t *LaneTable) Lookup(pol, pod string) (Lane, bool) {
	pol, pod = upper(pol), upper(pod)
	var out Lane
	found := false
	for _, l := range t.Lanes {
		if l.POL != pol || l.POD != pod {
			continue
		}
		if !found {
			out = l
			found = true
		}
		if out.Rate == nil && l.Rate != nil {
			out.Rate = l.Rate
		}
		if out.TransitDays == nil && l.TransitDays != nil {
			out.TransitDays = l.TransitDays
		}
	}
	return out, found
}

// TransitTable is the TRANSITTIME fallback sheet.
type TransitTable struct {
	days map[[2]string]float64
}

// BuildTransitTable parses the transit-time sheet.
func BuildTransitTable(s *Sheet) *TransitTable {
	t := &TransitTable{days: make(map[[2]string]float64)}
	polCol := s.Col(polColumns, "pol")
	podCol := s.Col(podColumns, "pod")
	ttCol := s.Col(ttColumns, "transit")
	if polCol < 0 || podCol < 0 || ttCol < 0 {
		return t
	}
	for _, row := range s.Rows {
		k := [2]string{upper(Cell(row, polCol)), upper(Cell(row, podCol))}
		v := ParseNumber(Cell(row, ttCol))
		if k[0] == "" || k[1] == "" || v == nil {
			continue
		}
		if _, dup := t.days[k]; !dup {
			t.days[k] = *v
		}
	}
	return t
}

// Lookup returns transit days for the pair.
func (t *TransitTable) Lookup(pol, pod string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.days[[2]string{upper(pol), upper(pod)}]
	return v, ok
}

func countryValue(raw string, coercer *normalize.CountryCoercer) string {
	if raw == "" {
		return ""
	}
	if cc, ok := coercer.Lookup(raw, raw); ok {
		return cc
	}
	return upper(raw)
}

// detectCountryColumn picks the country column for one side of the lane.
// Named candidates are scored by how often their value agrees with the
// two-letter prefix of the port code; the best positive score wins. With no
// named candidate, any free column scoring at least one half is accepted.
func detectCountryColumn(s *Sheet, names []string, portCol int, taken map[int]bool, coercer *normalize.CountryCoercer) int {
	lower := make([]string, len(s.Header))
	for i, h := range s.Header {
		lower[i] = strings.ToLower(h)
	}

	var named []int
	for _, n := range names {
		for i, h := range lower {
			if taken[i] || contains(named, i) {
				continue
			}
			if h == n {
				named = append(named, i)
			}
		}
	}
	for _, n := range names {
		for i, h := range lower {
			if taken[i] || contains(named, i) {
				continue
			}
			if strings.Contains(h, n) {
				named = append(named, i)
			}
		}
	}

	best, bestScore := -1, 0.0
	if len(named) > 0 {
		for _, col := range named {
			score := prefixAgreement(s, col, portCol, coercer)
			if best < 0 || score > bestScore {
				best, bestScore = col, score
			}
		}
		return best
	}

	for col := range s.Header {
		if taken[col] || col == portCol {
			continue
		}
		if score := prefixAgreement(s, col, portCol, coercer); score >= 0.5 && score > bestScore {
			best, bestScore = col, score
		}
	}
	return best
}

// prefixAgreement is the share of rows whose country cell coerces to the
// first two letters of the port code.
func prefixAgreement(s *Sheet, countryCol, portCol int, coercer *normalize.CountryCoercer) float64 {
	total, hits := 0, 0
	for _, row := range s.Rows {
		port := upper(Cell(row, portCol))
		val := Cell(row, countryCol)
		if len(port) < 2 || val == "" {
			continue
		}
		total++
		if countryValue(val, coercer) == port[:2] {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

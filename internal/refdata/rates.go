package refdata

import (
	"github.com/sells-group/quote-cli/internal/normalize"
)

// RateTable holds road €/km rates keyed by (origin country, destination
// country). Domestic rates use the same code on both sides.
type RateTable struct {
	rates map[[2]string]float64
}

// NewRateTable builds a table from explicit rates, mainly for tests.
func NewRateTable(rates map[[2]string]float64) *RateTable {
	t := &RateTable{rates: make(map[[2]string]float64, len(rates))}
	for k, v := range rates {
		t.rates[[2]string{upper(k[0]), upper(k[1])}] = v
	}
	return t
}

// BuildRateTable parses the COSTPERKM sheet.
func BuildRateTable(s *Sheet, coercer *normalize.CountryCoercer) *RateTable {
	t := &RateTable{rates: make(map[[2]string]float64)}
	oc := s.Col([]string{"Country of origin", "Origin Country", "Origin"}, "origin")
	dc := s.Col([]string{"Destination Country", "Country of destination", "Destination"}, "dest")
	rc := s.Col([]string{"Eur/km", "EUR/KM", "€/km", "Cost per km"}, "km")
	if oc < 0 || dc < 0 || rc < 0 {
		return t
	}
	for _, row := range s.Rows {
		o := coercer.Coerce(Cell(row, oc), Cell(row, oc))
		d := coercer.Coerce(Cell(row, dc), Cell(row, dc))
		v := ParseNumber(Cell(row, rc))
		if o == "" || d == "" || v == nil {
			continue
		}
		k := [2]string{o, d}
		if _, dup := t.rates[k]; !dup {
			t.rates[k] = *v
		}
	}
	return t
}

// Domestic returns the in-country €/km rate.
func (t *RateTable) Domestic(cc string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.rates[[2]string{upper(cc), upper(cc)}]
	return v, ok
}

// Pair returns the rate for a cross-border road leg: the directional rate,
// then the reverse direction, then the domestic rate when both ends share a
// country.
func (t *RateTable) Pair(oc, dc string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	o, d := upper(oc), upper(dc)
	if v, ok := t.rates[[2]string{o, d}]; ok {
		return v, true
	}
	if v, ok := t.rates[[2]string{d, o}]; ok {
		return v, true
	}
	if o == d {
		return t.Domestic(o)
	}
	return 0, false
}

// Len returns the number of rates.
func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rates)
}

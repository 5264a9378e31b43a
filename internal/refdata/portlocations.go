package refdata

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// PortLocation is one row of the Ports Locations sheet after coordinate
// coercion.
type PortLocation struct {
	Code        string
	CountryCode string
	Lat         float64
	Lon         float64
}

// PortLocationTable indexes port coordinates by code.
type PortLocationTable struct {
	byCode map[string]PortLocation
	order  []string
}

// NewPortLocationTable builds a table from already coerced rows.
func NewPortLocationTable(rows ...PortLocation) *PortLocationTable {
	t := &PortLocationTable{byCode: make(map[string]PortLocation)}
	for _, r := range rows {
		r.Code = upper(r.Code)
		if r.Code == "" {
			continue
		}
		if _, dup := t.byCode[r.Code]; !dup {
			t.order = append(t.order, r.Code)
		}
		t.byCode[r.Code] = r
	}
	return t
}

// BuildPortLocationTable parses the port-location sheet.
func BuildPortLocationTable(s *Sheet, coercer *normalize.CountryCoercer) *PortLocationTable {
	code := s.Col([]string{"POL/POD", "Port", "Code", "UNLOCODE"}, "pol")
	lat := s.Col([]string{"LAT", "Latitude"}, "lat")
	lon := s.Col([]string{"LONG", "LON", "Longitude"}, "lon")
	country := s.Col([]string{"Country", "Country Code"}, "country")

	var rows []PortLocation
	for _, row := range s.Rows {
		c := upper(Cell(row, code))
		la, okLat := CoerceCoordinate(Cell(row, lat), 90)
		lo, okLon := CoerceCoordinate(Cell(row, lon), 180)
		if c == "" || !okLat || !okLon {
			continue
		}
		cc, known := coercer.Lookup(Cell(row, country), Cell(row, country))
		if !known && len(c) >= 2 {
			cc = c[:2]
		}
		rows = append(rows, PortLocation{Code: c, CountryCode: cc, Lat: la, Lon: lo})
	}
	return NewPortLocationTable(rows...)
}

// CoerceCoordinate parses one coordinate component bounded by limit (90
// for latitude, 180 for longitude). Spaces are dropped, a decimal comma
// becomes a dot, and values scaled by a thousand (39450 for 39.450) are
// divided back before the range check.
func CoerceCoordinate(raw string, limit float64) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if a := math.Abs(v); a > limit && a <= limit*2000 {
		v /= 1000
	}
	if math.Abs(v) > limit {
		return 0, false
	}
	return v, true
}

// Coordinate returns the port's coordinate. When near is given and both
// readings are valid, the orientation closer to near wins; swapped reports
// that lat/lon were transposed.
func (t *PortLocationTable) Coordinate(code string, near *model.Coordinate) (c model.Coordinate, swapped bool, ok bool) {
	if t == nil {
		return model.Coordinate{}, false, false
	}
	p, found := t.byCode[upper(code)]
	if !found {
		return model.Coordinate{}, false, false
	}
	direct := model.Coordinate{Lat: p.Lat, Lon: p.Lon}
	flipped := model.Coordinate{Lat: p.Lon, Lon: p.Lat}
	switch {
	case direct.Valid() && flipped.Valid() && near != nil:
		if sqDist(flipped, *near) < sqDist(direct, *near) {
			return flipped, true, true
		}
		return direct, false, true
	case direct.Valid():
		return direct, false, true
	case flipped.Valid():
		return flipped, true, true
	default:
		return model.Coordinate{}, false, false
	}
}

// CountryOf returns the country recorded for a port code.
func (t *PortLocationTable) CountryOf(code string) (string, bool) {
	if t == nil {
		return "", false
	}
	p, ok := t.byCode[upper(code)]
	if !ok || p.CountryCode == "" {
		return "", false
	}
	return p.CountryCode, true
}

// ForCountry lists the port codes located in cc, in sheet order.
func (t *PortLocationTable) ForCountry(cc string) []string {
	if t == nil {
		return nil
	}
	cc = upper(cc)
	var out []string
	for _, code := range t.order {
		if t.byCode[code].CountryCode == cc {
			out = append(out, code)
		}
	}
	return out
}

// All returns every row in sheet order.
func (t *PortLocationTable) All() []PortLocation {
	if t == nil {
		return nil
	}
	out := make([]PortLocation, 0, len(t.order))
	for _, code := range t.order {
		out = append(out, t.byCode[code])
	}
	return out
}

// sqDist is an equirectangular proxy, good enough to rank two candidates.
func sqDist(a, b model.Coordinate) float64 {
	x := (a.Lon - b.Lon) * math.Cos((a.Lat+b.Lat)/2*math.Pi/180)
	y := a.Lat - b.Lat
	return x*x + y*y
}

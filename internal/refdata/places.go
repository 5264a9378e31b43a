package refdata

import (
	"sort"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// Fuzzy-match cutoffs (token-sort similarity, 0-100).
const (
	CityZIPCutoff   = 92.0
	CityCoordCutoff = 90.0
)

var (
	ccColumns   = []string{"Country Code", "CC", "ISO", "Country"}
	cityColumns = []string{"City", "City Name", "Place"}
	zipColumns  = []string{"ZIP", "Zip", "Postal Code", "Postcode", "CP"}
	latColumns  = []string{"Lat", "Latitude", "LAT"}
	lonColumns  = []string{"Long", "Lon", "Lng", "Longitude", "LONG"}
)

// cityKeyed groups canonical city names per country, preserving first-seen
// order for deterministic fuzzy ties.
type cityKeyed[V any] struct {
	values map[string]map[string]V
	order  map[string][]string
}

func newCityKeyed[V any]() cityKeyed[V] {
	return cityKeyed[V]{values: make(map[string]map[string]V), order: make(map[string][]string)}
}

func (c cityKeyed[V]) put(cc, city string, v V) {
	cc, key := upper(cc), normalize.CityForCountry(cc, city)
	if cc == "" || key == "" {
		return
	}
	m, ok := c.values[cc]
	if !ok {
		m = make(map[string]V)
		c.values[cc] = m
	}
	if _, dup := m[key]; !dup {
		c.order[cc] = append(c.order[cc], key)
	}
	m[key] = v
}

// get tries the canonical key, then the best fuzzy match above cutoff.
func (c cityKeyed[V]) get(cc, city string, cutoff float64) (V, string, bool) {
	var zero V
	cc, key := upper(cc), normalize.CityForCountry(cc, city)
	m := c.values[cc]
	if key == "" || m == nil {
		return zero, "", false
	}
	if v, ok := m[key]; ok {
		return v, key, true
	}
	best, _, ok := normalize.BestMatch(key, c.order[cc], cutoff)
	if !ok {
		return zero, "", false
	}
	return m[best], best, true
}

// CityZIPTable is the CITY_ZIPS sheet: a representative ZIP per city.
type CityZIPTable struct {
	byCity cityKeyed[string]
}

// BuildCityZIPTable parses the city-ZIP sheet.
func BuildCityZIPTable(s *Sheet, coercer *normalize.CountryCoercer) *CityZIPTable {
	t := &CityZIPTable{byCity: newCityKeyed[string]()}
	cc, city, zip := s.Col(ccColumns), s.Col(cityColumns, "city"), s.Col(zipColumns, "zip")
	for _, row := range s.Rows {
		z := normalize.ZIP(Cell(row, zip))
		if z == "" {
			continue
		}
		code := coercer.Coerce(Cell(row, cc), Cell(row, cc))
		t.byCity.put(code, Cell(row, city), z)
	}
	return t
}

// ZIPFor returns a ZIP for the city: exact canonical match, then fuzzy.
func (t *CityZIPTable) ZIPFor(cc, city string) (string, bool) {
	if t == nil {
		return "", false
	}
	z, _, ok := t.byCity.get(cc, city, CityZIPCutoff)
	return z, ok
}

// CityCoordTable is the GEO_LOCATIONS / CITY_COORDS sheet.
type CityCoordTable struct {
	byCity cityKeyed[model.Coordinate]
}

// CityCoord is one city coordinate row.
type CityCoord struct {
	CountryCode string
	City        string
	Coordinate  model.Coordinate
}

// BuildCityCoordTable parses a city-coordinate sheet and also returns the
// rows for the geo index.
func BuildCityCoordTable(s *Sheet, coercer *normalize.CountryCoercer) (*CityCoordTable, []CityCoord) {
	t := &CityCoordTable{byCity: newCityKeyed[model.Coordinate]()}
	cc, city := s.Col(ccColumns), s.Col(cityColumns, "city")
	lat, lon := s.Col(latColumns, "lat"), s.Col(lonColumns, "lon")
	var rows []CityCoord
	for _, row := range s.Rows {
		la, lo := ParseNumber(Cell(row, lat)), ParseNumber(Cell(row, lon))
		if la == nil || lo == nil {
			continue
		}
		c := model.Coordinate{Lat: *la, Lon: *lo}
		if !c.Valid() {
			continue
		}
		code := coercer.Coerce(Cell(row, cc), Cell(row, cc))
		name := Cell(row, city)
		t.byCity.put(code, name, c)
		rows = append(rows, CityCoord{CountryCode: code, City: name, Coordinate: c})
	}
	return t, rows
}

// Lookup finds a city coordinate; fuzzy reports whether the match needed
// the similarity fallback.
func (t *CityCoordTable) Lookup(cc, city string) (c model.Coordinate, matched string, fuzzy bool, ok bool) {
	if t == nil {
		return model.Coordinate{}, "", false, false
	}
	c, matched, ok = t.byCity.get(cc, city, CityCoordCutoff)
	return c, matched, ok && matched != normalize.CityForCountry(cc, city), ok
}

// ZIPCoord is one ZIP_COORDS row.
type ZIPCoord struct {
	CountryCode string
	ZIP         string
	Coordinate  model.Coordinate
}

// BuildZIPCoords parses the ZIP-coordinate sheet.
func BuildZIPCoords(s *Sheet, coercer *normalize.CountryCoercer) []ZIPCoord {
	cc, zip := s.Col(ccColumns), s.Col(zipColumns, "zip")
	lat, lon := s.Col(latColumns, "lat"), s.Col(lonColumns, "lon")
	var out []ZIPCoord
	for _, row := range s.Rows {
		z := normalize.ZIP(Cell(row, zip))
		la, lo := ParseNumber(Cell(row, lat)), ParseNumber(Cell(row, lon))
		if z == "" || la == nil || lo == nil {
			continue
		}
		c := model.Coordinate{Lat: *la, Lon: *lo}
		if !c.Valid() {
			continue
		}
		out = append(out, ZIPCoord{CountryCode: coercer.Coerce(Cell(row, cc), Cell(row, cc)), ZIP: z, Coordinate: c})
	}
	return out
}

// Country is one COUNTRIES row: a name, its code and an optional centroid.
type Country struct {
	Name     string
	Code     string
	Centroid *model.Coordinate
}

// BuildCountries parses the optional country sheet.
func BuildCountries(s *Sheet) []Country {
	name := s.Col([]string{"Country", "Country Name", "Name"})
	code := s.Col([]string{"Country Code", "ISO", "ISO2", "CC"})
	lat, lon := s.Col(latColumns, "lat"), s.Col(lonColumns, "lon")
	var out []Country
	for _, row := range s.Rows {
		c := Country{Name: upper(Cell(row, name)), Code: upper(Cell(row, code))}
		if c.Code == "" {
			continue
		}
		if la, lo := ParseNumber(Cell(row, lat)), ParseNumber(Cell(row, lon)); la != nil && lo != nil {
			pt := model.Coordinate{Lat: *la, Lon: *lo}
			if pt.Valid() {
				c.Centroid = &pt
			}
		}
		out = append(out, c)
	}
	return out
}

// AliasTable maps (country, canonical city spelling) to the reference
// spelling. Values are immutable once built; Merge returns a new table.
type AliasTable struct {
	byCountry map[string]map[string]model.CityAlias
}

// NewAliasTable builds a table; later aliases override earlier ones.
func NewAliasTable(aliases ...model.CityAlias) *AliasTable {
	t := &AliasTable{byCountry: make(map[string]map[string]model.CityAlias)}
	t.add(aliases)
	return t
}

// BuildAliasTable parses the CITY_ALIASES sheet.
func BuildAliasTable(s *Sheet, coercer *normalize.CountryCoercer) *AliasTable {
	cc := s.Col(ccColumns)
	from := s.Col([]string{"From City", "From", "Alias"}, "from")
	to := s.Col([]string{"To City", "To", "City"}, "to")
	var aliases []model.CityAlias
	for _, row := range s.Rows {
		aliases = append(aliases, model.CityAlias{
			CountryCode: coercer.Coerce(Cell(row, cc), Cell(row, cc)),
			From:        Cell(row, from),
			To:          Cell(row, to),
		})
	}
	return NewAliasTable(aliases...)
}

func (t *AliasTable) add(aliases []model.CityAlias) {
	for _, a := range aliases {
		cc, key := upper(a.CountryCode), normalize.City(a.From)
		if cc == "" || key == "" || normalize.City(a.To) == "" {
			continue
		}
		m, ok := t.byCountry[cc]
		if !ok {
			m = make(map[string]model.CityAlias)
			t.byCountry[cc] = m
		}
		m[key] = model.CityAlias{CountryCode: cc, From: a.From, To: a.To}
	}
}

// Merge returns a new table holding t's aliases overridden by extra.
func (t *AliasTable) Merge(extra ...model.CityAlias) *AliasTable {
	out := NewAliasTable(t.All()...)
	out.add(extra)
	return out
}

// Alias returns the reference spelling for a city.
func (t *AliasTable) Alias(cc, city string) (string, bool) {
	if t == nil {
		return "", false
	}
	a, ok := t.byCountry[upper(cc)][normalize.City(city)]
	if !ok {
		return "", false
	}
	return a.To, true
}

// All lists every alias sorted by country then source spelling.
func (t *AliasTable) All() []model.CityAlias {
	if t == nil {
		return nil
	}
	var out []model.CityAlias
	for _, m := range t.byCountry {
		for _, a := range m {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CountryCode != out[j].CountryCode {
			return out[i].CountryCode < out[j].CountryCode
		}
		return normalize.City(out[i].From) < normalize.City(out[j].From)
	})
	return out
}

// Len returns the alias count.
func (t *AliasTable) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, m := range t.byCountry {
		n += len(m)
	}
	return n
}

package refdata

import (
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/fetcher"
	"github.com/sells-group/quote-cli/internal/geo"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// Sheet names in the reference workbook.
const (
	SheetMainPorts     = "MAIN PORTS"
	SheetTransitTime   = "TRANSITTIME"
	SheetPlantPorts    = "HORSE-PUERTO"
	SheetCostPerKM     = "COSTPERKM"
	SheetPortLocations = "Ports Locations"
	SheetCityZIPs      = "CITY_ZIPS"
	SheetGeoLocations  = "GEO_LOCATIONS"
	SheetCityCoords    = "CITY_COORDS"
	SheetZIPCoords     = "ZIP_COORDS"
	SheetCityAliases   = "CITY_ALIASES"
	SheetCountries     = "COUNTRIES"
)

var requiredSheets = []string{SheetMainPorts, SheetPlantPorts, SheetCostPerKM}

// Tables is the full, read-only reference data set. It is built once per
// run and shared by every row.
type Tables struct {
	Lanes         *LaneTable
	Transit       *TransitTable
	Rates         *RateTable
	PlantPorts    *PlantPortTable
	PortLocations *PortLocationTable
	CityZIPs      *CityZIPTable
	CityCoords    *CityCoordTable
	Aliases       *AliasTable
	Coercer       *normalize.CountryCoercer

	cityRows  []CityCoord
	zipRows   []ZIPCoord
	countries []Country
}

// Load reads the reference workbook at path.
func Load(path string) (*Tables, error) {
	wb, err := fetcher.OpenWorkbook(path)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: open workbook")
	}

	sheets := make(map[string][][]string)
	for _, name := range wb.SheetNames() {
		rows, err := wb.Rows(fetcher.XLSXOptions{SheetName: name})
		if err != nil {
			return nil, eris.Wrapf(err, "refdata: read sheet %s", name)
		}
		sheets[name] = rows
	}
	return FromSheets(sheets)
}

// FromSheets builds the tables from raw sheet rows keyed by sheet name
// (matched case-insensitively). Missing optional sheets yield empty tables.
func FromSheets(raw map[string][][]string) (*Tables, error) {
	log := zap.L().With(zap.String("component", "refdata"))

	byName := make(map[string]*Sheet, len(raw))
	for name, rows := range raw {
		byName[upper(name)] = NewSheet(name, rows)
	}
	get := func(names ...string) *Sheet {
		for _, n := range names {
			if s, ok := byName[upper(n)]; ok {
				return s
			}
		}
		log.Debug("optional sheet missing", zap.Strings("sheet", names))
		return NewSheet(names[0], nil)
	}

	var missing []string
	for _, n := range requiredSheets {
		if _, ok := byName[upper(n)]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Wrapf(fetcher.ErrSheetNotFound, "refdata: required sheets %v", missing)
	}

	countries := BuildCountries(get(SheetCountries))
	names := make(map[string]string, len(countries))
	for _, c := range countries {
		if c.Name != "" {
			names[c.Name] = c.Code
		}
	}
	coercer := normalize.NewCountryCoercer(names)

	t := &Tables{
		Lanes:         BuildLaneTable(get(SheetMainPorts), coercer),
		Transit:       BuildTransitTable(get(SheetTransitTime)),
		Rates:         BuildRateTable(get(SheetCostPerKM), coercer),
		PlantPorts:    BuildPlantPortTable(get(SheetPlantPorts), coercer),
		PortLocations: BuildPortLocationTable(get(SheetPortLocations), coercer),
		CityZIPs:      BuildCityZIPTable(get(SheetCityZIPs), coercer),
		Aliases:       BuildAliasTable(get(SheetCityAliases), coercer),
		Coercer:       coercer,
		zipRows:       BuildZIPCoords(get(SheetZIPCoords), coercer),
		countries:     countries,
	}
	t.CityCoords, t.cityRows = BuildCityCoordTable(get(SheetGeoLocations, SheetCityCoords), coercer)

	if len(t.Lanes.Lanes) == 0 {
		return nil, eris.New("refdata: lane sheet has no POL/POD rows")
	}

	log.Info("reference data loaded",
		zap.Int("lanes", len(t.Lanes.Lanes)),
		zap.Bool("pol_country_column", t.Lanes.HasPOLCountry),
		zap.Bool("pod_country_column", t.Lanes.HasPODCountry),
		zap.Int("rates", t.Rates.Len()),
		zap.Int("plant_ports", len(t.PlantPorts.Rows)),
		zap.Int("port_locations", len(t.PortLocations.All())),
		zap.Int("city_coords", len(t.cityRows)),
		zap.Int("zip_coords", len(t.zipRows)),
		zap.Int("aliases", t.Aliases.Len()),
	)
	return t, nil
}

// IsMissingSheet reports whether err came from an absent required sheet.
func IsMissingSheet(err error) bool {
	return errors.Is(err, fetcher.ErrSheetNotFound)
}

// WithAliases returns a shallow copy of t whose alias table also carries
// extra (typically the database-managed aliases). t is not modified.
func (t *Tables) WithAliases(extra []model.CityAlias) *Tables {
	cp := *t
	cp.Aliases = t.Aliases.Merge(extra...)
	return &cp
}

// BuildIndex assembles the geo index: ZIP and city coordinates, plant
// coordinates, port locations and country centroids.
func (t *Tables) BuildIndex() *geo.Index {
	idx := geo.NewIndex()
	for _, z := range t.zipRows {
		idx.Add(geo.Entry{Kind: model.KindZIP, CountryCode: z.CountryCode, Key: z.ZIP, Coordinate: z.Coordinate})
	}
	for _, c := range t.cityRows {
		key := normalize.CityForCountry(c.CountryCode, c.City)
		idx.Add(geo.Entry{Kind: model.KindCity, CountryCode: c.CountryCode, Key: key, Coordinate: c.Coordinate})
	}
	for _, p := range t.PlantPorts.Rows {
		if p.Coordinate == nil {
			continue
		}
		for _, name := range []string{p.Factory, p.Plant} {
			if name != "" {
				idx.Add(geo.Entry{Kind: model.KindPlant, CountryCode: p.CountryCode, Key: name, Coordinate: *p.Coordinate})
			}
		}
	}
	for _, p := range t.PortLocations.All() {
		idx.Add(geo.Entry{Kind: model.KindPort, CountryCode: p.CountryCode, Key: p.Code, Coordinate: model.Coordinate{Lat: p.Lat, Lon: p.Lon}})
	}
	for _, c := range t.countries {
		if c.Centroid != nil {
			idx.Add(geo.Entry{Kind: model.KindCountry, CountryCode: c.Code, Key: c.Code, Coordinate: *c.Centroid})
		}
	}
	return idx
}

package refdata

import (
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// PlantPort maps a plant (or factory) to its country and usual port.
type PlantPort struct {
	Factory     string
	Plant       string
	CountryCode string
	Port        string
	Coordinate  *model.Coordinate
}

// PlantPortTable is the HORSE-PUERTO sheet.
type PlantPortTable struct {
	Rows []PlantPort
}

// BuildPlantPortTable parses the plant-port sheet.
func BuildPlantPortTable(s *Sheet, coercer *normalize.CountryCoercer) *PlantPortTable {
	t := &PlantPortTable{}
	factory := s.Col([]string{"Factory"})
	plant := s.Col([]string{"Plant"})
	country := s.Col([]string{"Country"})
	code := s.Col([]string{"Country Code", "CC"})
	port := s.Col([]string{"Port", "POL"})
	lat := s.Col([]string{"Plant Lat", "Lat", "Latitude"})
	lon := s.Col([]string{"Plant Long", "Plant Lon", "Long", "Lon", "Longitude"})

	for _, row := range s.Rows {
		pp := PlantPort{
			Factory:     Cell(row, factory),
			Plant:       Cell(row, plant),
			CountryCode: coercer.Coerce(Cell(row, code), Cell(row, country)),
			Port:        upper(Cell(row, port)),
		}
		if pp.Plant == "" && pp.Factory == "" && pp.Port == "" {
			continue
		}
		if la, lo := ParseNumber(Cell(row, lat)), ParseNumber(Cell(row, lon)); la != nil && lo != nil {
			c := model.Coordinate{Lat: *la, Lon: *lo}
			if c.Valid() {
				pp.Coordinate = &c
			}
		}
		t.Rows = append(t.Rows, pp)
	}
	return t
}

// PortsForCountry lists the distinct ports mapped to plants in cc, in
// sheet order.
func (t *PlantPortTable) PortsForCountry(cc string) []string {
	if t == nil {
		return nil
	}
	cc = upper(cc)
	var out []string
	seen := make(map[string]bool)
	for _, r := range t.Rows {
		if r.CountryCode != cc || r.Port == "" || seen[r.Port] {
			continue
		}
		seen[r.Port] = true
		out = append(out, r.Port)
	}
	return out
}

// PortForPlant returns the port of a plant or factory name.
func (t *PlantPortTable) PortForPlant(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	want := normalize.City(name)
	if want == "" {
		return "", false
	}
	for _, r := range t.Rows {
		if r.Port != "" && (normalize.City(r.Plant) == want || normalize.City(r.Factory) == want) {
			return r.Port, true
		}
	}
	return "", false
}

// CountryOfPort returns the country a port is mapped to, if any.
func (t *PlantPortTable) CountryOfPort(port string) (string, bool) {
	if t == nil {
		return "", false
	}
	port = upper(port)
	for _, r := range t.Rows {
		if r.Port == port && r.CountryCode != "" {
			return r.CountryCode, true
		}
	}
	return "", false
}

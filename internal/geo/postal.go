package geo

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/fetcher"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// PostalPlace is one row of an offline postal-code dataset.
type PostalPlace struct {
	CountryCode string
	PostalCode  string
	Place       string
	Coordinate  model.Coordinate
}

// Postal is an offline postal-code gazetteer. Lookups average every
// matching row.
type Postal struct {
	byZIP   map[indexKey][]model.Coordinate
	byPlace map[string][]PostalPlace
}

// NewPostal indexes places by normalized ZIP and by country.
func NewPostal(places []PostalPlace) *Postal {
	p := &Postal{
		byZIP:   make(map[indexKey][]model.Coordinate),
		byPlace: make(map[string][]PostalPlace),
	}
	for _, pl := range places {
		if !pl.Coordinate.Valid() {
			continue
		}
		cc := strings.ToUpper(strings.TrimSpace(pl.CountryCode))
		if z := normalize.ZIP(pl.PostalCode); z != "" {
			k := indexKey{kind: model.KindZIP, cc: cc, key: z}
			p.byZIP[k] = append(p.byZIP[k], pl.Coordinate)
		}
		pl.CountryCode = cc
		pl.Place = normalize.City(pl.Place)
		if pl.Place != "" {
			p.byPlace[cc] = append(p.byPlace[cc], pl)
		}
	}
	return p
}

// Len returns the number of indexed place rows.
func (p *Postal) Len() int {
	n := 0
	for _, v := range p.byPlace {
		n += len(v)
	}
	return n
}

// LookupZIP returns the mean coordinate of all rows for the postal code.
func (p *Postal) LookupZIP(cc, zip string) (model.Coordinate, bool) {
	if p == nil {
		return model.Coordinate{}, false
	}
	k := indexKey{kind: model.KindZIP, cc: strings.ToUpper(strings.TrimSpace(cc)), key: normalize.ZIP(zip)}
	return mean(p.byZIP[k])
}

// LookupCity matches place names exactly first, then by substring. mode is
// "exact" or "contains".
func (p *Postal) LookupCity(cc, city string) (c model.Coordinate, mode string, ok bool) {
	if p == nil {
		return model.Coordinate{}, "", false
	}
	q := normalize.City(city)
	if q == "" {
		return model.Coordinate{}, "", false
	}
	rows := p.byPlace[strings.ToUpper(strings.TrimSpace(cc))]

	var exact, contains []model.Coordinate
	for _, r := range rows {
		switch {
		case r.Place == q:
			exact = append(exact, r.Coordinate)
		case strings.Contains(r.Place, q):
			contains = append(contains, r.Coordinate)
		}
	}
	if c, ok := mean(exact); ok {
		return c, "exact", true
	}
	if c, ok := mean(contains); ok {
		return c, "contains", true
	}
	return model.Coordinate{}, "", false
}

func mean(cs []model.Coordinate) (model.Coordinate, bool) {
	if len(cs) == 0 {
		return model.Coordinate{}, false
	}
	var lat, lon float64
	for _, c := range cs {
		lat += c.Lat
		lon += c.Lon
	}
	n := float64(len(cs))
	return model.Coordinate{Lat: lat / n, Lon: lon / n}, true
}

// GeoNames postal dump column positions (tab separated, no header).
const (
	gnCountry = 0
	gnPostal  = 1
	gnPlace   = 2
	gnLat     = 9
	gnLon     = 10
)

// ReadPostalTSV parses a GeoNames-style postal code dump.
func ReadPostalTSV(ctx context.Context, r io.Reader) ([]PostalPlace, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter:  '\t',
		LazyQuotes: true,
		TrimSpace:  true,
	})

	var out []PostalPlace
	for row := range rowCh {
		if len(row) <= gnLon {
			continue
		}
		lat, err1 := strconv.ParseFloat(row[gnLat], 64)
		lon, err2 := strconv.ParseFloat(row[gnLon], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, PostalPlace{
			CountryCode: row[gnCountry],
			PostalCode:  row[gnPostal],
			Place:       row[gnPlace],
			Coordinate:  model.Coordinate{Lat: lat, Lon: lon},
		})
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "geo: read postal dump")
	}
	return out, nil
}

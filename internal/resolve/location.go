package resolve

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/geo"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
	"github.com/sells-group/quote-cli/internal/refdata"
	"github.com/sells-group/quote-cli/pkg/geocode"
)

// ZIP enrichment reasons.
const (
	ReasonCityZIPs      = "city_zips"
	ReasonAliasCityZIPs = "alias_city_zips"
)

// Resolution is the outcome of resolving one shipment end.
type Resolution struct {
	Point       model.ResolvedPoint
	CountryCode string
	City        string
	ZIP         string

	// Tried lists the lookups attempted, for the unresolved trail entry.
	Tried []string
	Notes []string
}

// LocationResolver resolves shipment ends on top of the base chain: it
// parses ZIPs out of city cells, repairs ZIPs from the city tables, follows
// city aliases, uses the city-coordinate sheet with fuzzy matching and
// finally asks an online geocoder.
type LocationResolver struct {
	base     *Resolver
	idx      *geo.Index
	tables   *refdata.Tables
	geocoder geocode.Client
	postal   *geo.Postal
	log      *zap.Logger
}

// LocationOption configures a LocationResolver.
type LocationOption func(*LocationResolver)

// WithGeocoder enables the online fallback. The client is expected to be
// gated by an allow-list already.
func WithGeocoder(c geocode.Client) LocationOption {
	return func(l *LocationResolver) {
		l.geocoder = c
	}
}

// WithPostal adds the offline postal gazetteer to the base chain.
func WithPostal(p *geo.Postal) LocationOption {
	return func(l *LocationResolver) {
		l.postal = p
	}
}

// NewLocationResolver builds a resolver over the reference tables and
// their index.
func NewLocationResolver(t *refdata.Tables, idx *geo.Index, opts ...LocationOption) *LocationResolver {
	l := &LocationResolver{
		idx:    idx,
		tables: t,
		log:    zap.L().With(zap.String("component", "resolve.location")),
	}
	for _, o := range opts {
		o(l)
	}
	l.base = NewResolver(idx, l.postal)
	return l
}

// Base returns the underlying strategy chain.
func (l *LocationResolver) Base() *Resolver { return l.base }

// CountryCode coerces a location's country to a code.
func (l *LocationResolver) CountryCode(loc model.Location) string {
	if l.tables != nil && l.tables.Coercer != nil {
		return l.tables.Coercer.Coerce(loc.CountryCode, loc.CountryName)
	}
	return normalize.NewCountryCoercer().Coerce(loc.CountryCode, loc.CountryName)
}

// EnrichZIP returns a country-valid ZIP for the city when zip is missing or
// malformed: the CITY_ZIPS table first, then the same table through the
// city alias. reason is empty when zip was kept.
func (l *LocationResolver) EnrichZIP(cc, city, zip string) (string, string) {
	z := normalize.ZIP(zip)
	if normalize.ZIPValidForCountry(cc, z) || l.tables == nil {
		return z, ""
	}
	if cand, ok := l.tables.CityZIPs.ZIPFor(cc, city); ok {
		if cz := normalize.ZIP(cand); normalize.ZIPValidForCountry(cc, cz) {
			return cz, ReasonCityZIPs
		}
	}
	if alias, ok := l.tables.Aliases.Alias(cc, city); ok {
		if cand, ok := l.tables.CityZIPs.ZIPFor(cc, alias); ok {
			if cz := normalize.ZIP(cand); normalize.ZIPValidForCountry(cc, cz) {
				return cz, ReasonAliasCityZIPs
			}
		}
	}
	return z, ""
}

// ResolveStrict resolves a location without accepting a country centroid.
// Used for the origin of overseas flows, where leg 1 needs a real point.
func (l *LocationResolver) ResolveStrict(ctx context.Context, loc model.Location) Resolution {
	return l.resolve(ctx, loc, false)
}

// ResolveLoose is ResolveStrict with the country centroid as last resort.
func (l *LocationResolver) ResolveLoose(ctx context.Context, loc model.Location) Resolution {
	return l.resolve(ctx, loc, true)
}

func (l *LocationResolver) resolve(ctx context.Context, loc model.Location, allowCountry bool) Resolution {
	res := Resolution{CountryCode: l.CountryCode(loc)}
	cc := res.CountryCode

	city, zip, parsed := normalize.ParseCityZIP(loc.City, loc.ZIP)
	if parsed {
		res.Notes = append(res.Notes, "city parsed: '"+strings.TrimSpace(loc.City)+"' -> city='"+city+"', zip='"+zip+"'")
	}
	res.City = city

	z, reason := l.EnrichZIP(cc, city, zip)
	if reason != "" {
		from := strings.TrimSpace(zip)
		if from == "" {
			from = "-"
		}
		res.Notes = append(res.Notes, "zip corrected by "+reason+": "+from+" -> "+z)
	}
	res.ZIP = z

	cityKey := normalize.CityForCountry(cc, city)
	alias := ""
	if l.tables != nil && cityKey != "" {
		alias, _ = l.tables.Aliases.Alias(cc, cityKey)
		if alias == "" {
			alias, _ = l.tables.Aliases.Alias(cc, city)
		}
	}

	steps := []struct {
		label string
		skip  bool
		fn    func() (model.ResolvedPoint, bool)
	}{
		{"zip:" + z, !normalize.ZIPValidForCountry(cc, z), func() (model.ResolvedPoint, bool) {
			p := l.base.ResolveUsing(Query{CountryCode: cc, ZIP: z}, model.SourceZIP, model.SourcePostalOffline)
			return p, p.OK
		}},
		{"city:" + cityKey, cityKey == "", func() (model.ResolvedPoint, bool) {
			p := l.base.ResolveUsing(Query{CountryCode: cc, City: city}, model.SourceCity, model.SourceCityOffline)
			return p, p.OK
		}},
		{"city-alias:" + cityKey + "->" + alias, alias == "", func() (model.ResolvedPoint, bool) {
			p := l.base.ResolveUsing(Query{CountryCode: cc, City: alias}, model.SourceCity, model.SourceCityOffline)
			if !p.OK {
				return p, false
			}
			p.Source = p.Source.With("alias")
			return p, true
		}},
		{"plant:" + loc.Plant, strings.TrimSpace(loc.Plant) == "", func() (model.ResolvedPoint, bool) {
			p := l.base.ResolveUsing(Query{CountryCode: cc, Plant: loc.Plant}, model.SourcePlant)
			return p, p.OK
		}},
		{"geo_city:" + cityKey, cityKey == "", func() (model.ResolvedPoint, bool) {
			return l.geoCity(cc, cityKey, alias)
		}},
		{"online:" + cityKey, cityKey == "" || l.geocoder == nil, func() (model.ResolvedPoint, bool) {
			return l.online(ctx, cc, cityKey)
		}},
		{"country:" + cc, !allowCountry, func() (model.ResolvedPoint, bool) {
			p := l.base.ResolveUsing(Query{CountryCode: cc}, model.SourceCountry)
			return p, p.OK
		}},
	}

	for _, s := range steps {
		if s.skip {
			continue
		}
		res.Tried = append(res.Tried, s.label)
		if p, ok := s.fn(); ok {
			res.Point = p
			return res
		}
	}
	l.log.Debug("location unresolved",
		zap.String("cc", cc),
		zap.String("city", city),
		zap.String("zip", z),
		zap.Strings("tried", res.Tried),
	)
	return res
}

// geoCity searches the city-coordinate sheet with accent-insensitive and
// fuzzy matching, then through the alias.
func (l *LocationResolver) geoCity(cc, cityKey, alias string) (model.ResolvedPoint, bool) {
	if l.tables == nil {
		return model.ResolvedPoint{}, false
	}
	if c, matched, fuzzy, ok := l.tables.CityCoords.Lookup(cc, cityKey); ok {
		src := model.Provenance{Kind: model.SourceGeoCity, Key: matched}
		if fuzzy {
			src = src.With("fuzzy")
		}
		return model.Resolved(c, src), true
	}
	if alias == "" {
		return model.ResolvedPoint{}, false
	}
	if c, matched, _, ok := l.tables.CityCoords.Lookup(cc, alias); ok {
		return model.Resolved(c, model.Provenance{Kind: model.SourceGeoCity, Key: matched}.With("alias")), true
	}
	return model.ResolvedPoint{}, false
}

// online asks the geocoder. Countries outside the allow-list are skipped
// quietly; transport failures are logged and treated as a miss.
func (l *LocationResolver) online(ctx context.Context, cc, city string) (model.ResolvedPoint, bool) {
	r, err := l.geocoder.GeocodeCity(ctx, cc, city)
	if errors.Is(err, geocode.ErrNotAllowed) {
		return model.ResolvedPoint{}, false
	}
	if err != nil {
		l.log.Warn("online geocoding failed",
			zap.String("cc", cc),
			zap.String("city", city),
			zap.Error(err),
		)
		return model.ResolvedPoint{}, false
	}
	if r == nil || !r.Matched {
		return model.ResolvedPoint{}, false
	}
	c := model.Coordinate{Lat: r.Latitude, Lon: r.Longitude}
	if !c.Valid() {
		return model.ResolvedPoint{}, false
	}
	src := model.Provenance{Kind: model.SourceOnline}
	if r.Cached {
		src = src.With("cached")
	}
	return model.Resolved(c, src), true
}

// Port resolves a port code: the index scoped to cc first, then the
// port-locations sheet regardless of country with the orientation guard
// relative to near.
func (l *LocationResolver) Port(cc, code string, near *model.Coordinate) model.ResolvedPoint {
	if strings.TrimSpace(code) == "" {
		return model.ResolvedPoint{}
	}
	if p := l.base.ResolveUsing(Query{CountryCode: cc, Port: code}, model.SourcePort); p.OK {
		return p
	}
	if l.tables == nil {
		return model.ResolvedPoint{}
	}
	c, swapped, ok := l.tables.PortLocations.Coordinate(code, near)
	if !ok {
		return model.ResolvedPoint{}
	}
	src := model.Provenance{Kind: model.SourcePortLocations, Key: geo.NormalizeKey(model.KindPort, code)}
	if swapped {
		src = src.With("swapped")
	}
	return model.Resolved(c, src)
}

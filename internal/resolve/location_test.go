package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/refdata"
	"github.com/sells-group/quote-cli/pkg/geocode"
)

func testTables(t *testing.T) *refdata.Tables {
	t.Helper()
	tables, err := refdata.FromSheets(map[string][][]string{
		refdata.SheetMainPorts: {
			{"POL", "POD", "Origin Country", "Destination Country", "Rate 40ft all-in", "TT (days)"},
			{"INNSA", "ESVLC", "IN", "ES", "1850", "24"},
		},
		refdata.SheetPlantPorts: {
			{"Factory", "Country", "Country Code", "Port", "Plant", "Plant Lat", "Plant Long"},
			{"Chakan Works", "India", "IN", "INNSA", "Chakan", "18.76", "73.86"},
		},
		refdata.SheetCostPerKM: {
			{"Country of origin", "Destination Country", "Eur/km"},
			{"IN", "IN", "0.9"},
		},
		refdata.SheetPortLocations: {
			{"POL/POD", "LAT", "LONG", "Country"},
			{"ESVLC", "39450", "-0.32", "ES"},
			{"INMAA", "80.29", "13.08", "IN"},
		},
		refdata.SheetCityZIPs: {
			{"Country Code", "City", "ZIP"},
			{"IN", "Pune", "411001"},
		},
		refdata.SheetGeoLocations: {
			{"Country Code", "City", "Lat", "Long"},
			{"IN", "Pune", "18.5204", "73.8567"},
			{"CN", "Guangzhou", "23.13", "113.26"},
		},
		refdata.SheetZIPCoords: {
			{"Country Code", "ZIP", "Lat", "Long"},
			{"ES", "46001", "39.47", "-0.38"},
		},
		refdata.SheetCityAliases: {
			{"Country Code", "From City", "To City"},
			{"IN", "Mundhwa", "Pune"},
		},
		refdata.SheetCountries: {
			{"Country", "Country Code", "Lat", "Long"},
			{"India", "IN", "21.0", "78.0"},
			{"China", "CN", "35.0", "103.0"},
		},
	})
	require.NoError(t, err)
	return tables
}

type fakeGeocoder struct {
	result *geocode.Result
	err    error
	calls  int
}

func (f *fakeGeocoder) GeocodeCity(_ context.Context, _, _ string) (*geocode.Result, error) {
	f.calls++
	return f.result, f.err
}

func newTestLocationResolver(t *testing.T, opts ...LocationOption) *LocationResolver {
	t.Helper()
	tables := testTables(t)
	return NewLocationResolver(tables, tables.BuildIndex(), opts...)
}

func TestLocationResolver_AliasPathForSubDistrict(t *testing.T) {
	l := newTestLocationResolver(t)

	res := l.ResolveStrict(context.Background(), model.Location{CountryCode: "IN", City: "Mundhwa 34190"})
	require.True(t, res.Point.OK)
	assert.Equal(t, "city:PUNE(alias)", res.Point.Source.String())
	assert.True(t, res.Point.Source.Has("alias"))
	assert.Equal(t, "Mundhwa", res.City)
	assert.Equal(t, "411001", res.ZIP)
	require.Len(t, res.Notes, 2)
	assert.Contains(t, res.Notes[0], "city parsed")
	assert.Contains(t, res.Notes[1], "alias_city_zips")
}

func TestLocationResolver_AliasWithExplicitZIP(t *testing.T) {
	l := newTestLocationResolver(t)

	res := l.ResolveStrict(context.Background(), model.Location{CountryCode: "IN", City: "Mundhwa", ZIP: "34190"})
	require.True(t, res.Point.OK)
	assert.Equal(t, "city:PUNE(alias)", res.Point.Source.String())
}

func TestLocationResolver_ZIP(t *testing.T) {
	l := newTestLocationResolver(t)

	res := l.ResolveLoose(context.Background(), model.Location{CountryName: "Spain", City: "Valencia", ZIP: "46001"})
	require.True(t, res.Point.OK)
	assert.Equal(t, "ES", res.CountryCode)
	assert.Equal(t, "zip:46001", res.Point.Source.String())
}

func TestLocationResolver_CityBeatsCountry(t *testing.T) {
	l := newTestLocationResolver(t)

	res := l.ResolveLoose(context.Background(), model.Location{CountryCode: "IN", City: "Pune", ZIP: "99"})
	require.True(t, res.Point.OK)
	assert.Equal(t, model.SourceCity, res.Point.Source.Kind)
	assert.False(t, res.Point.IsCountryLevel())
}

func TestLocationResolver_Plant(t *testing.T) {
	l := newTestLocationResolver(t)

	res := l.ResolveStrict(context.Background(), model.Location{CountryCode: "IN", City: "Nowhere", Plant: "Chakan Works"})
	require.True(t, res.Point.OK)
	assert.Equal(t, "plant:CHAKAN WORKS", res.Point.Source.String())
}

func TestLocationResolver_GeoCityFuzzy(t *testing.T) {
	l := newTestLocationResolver(t)

	res := l.ResolveStrict(context.Background(), model.Location{CountryCode: "CN", City: "Guangzhoo"})
	require.True(t, res.Point.OK)
	assert.Equal(t, "geo_city:GUANGZHOU(fuzzy)", res.Point.Source.String())
	assert.InDelta(t, 23.13, res.Point.Lat, 1e-9)
}

func TestLocationResolver_StrictRejectsCountry(t *testing.T) {
	l := newTestLocationResolver(t)
	loc := model.Location{CountryCode: "CN", City: "Atlantis"}

	strict := l.ResolveStrict(context.Background(), loc)
	assert.False(t, strict.Point.OK)
	assert.Contains(t, strict.Tried, "city:ATLANTIS")
	assert.NotContains(t, strict.Tried, "country:CN")

	loose := l.ResolveLoose(context.Background(), loc)
	require.True(t, loose.Point.OK)
	assert.True(t, loose.Point.IsCountryLevel())
}

func TestLocationResolver_Online(t *testing.T) {
	fake := &fakeGeocoder{result: &geocode.Result{Matched: true, Latitude: 31.3, Longitude: 120.6, Cached: true}}
	l := newTestLocationResolver(t, WithGeocoder(fake))

	res := l.ResolveLoose(context.Background(), model.Location{CountryCode: "CN", City: "Suzhou Shi"})
	require.True(t, res.Point.OK)
	assert.Equal(t, "nominatim(cached)", res.Point.Source.String())
	assert.Equal(t, 1, fake.calls)
}

func TestLocationResolver_OnlineFailuresFallThrough(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeGeocoder
	}{
		{"not allowed", &fakeGeocoder{err: geocode.ErrNotAllowed}},
		{"transport", &fakeGeocoder{err: errors.New("timeout")}},
		{"no match", &fakeGeocoder{result: &geocode.Result{}}},
		{"bad coordinate", &fakeGeocoder{result: &geocode.Result{Matched: true, Latitude: 123}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLocationResolver(t, WithGeocoder(tt.fake))
			res := l.ResolveLoose(context.Background(), model.Location{CountryCode: "CN", City: "Atlantis"})
			require.True(t, res.Point.OK)
			assert.Equal(t, "country:CN", res.Point.Source.String())
			assert.Equal(t, 1, tt.fake.calls)
		})
	}
}

func TestLocationResolver_EnrichZIP(t *testing.T) {
	l := newTestLocationResolver(t)

	z, reason := l.EnrichZIP("IN", "Pune", "")
	assert.Equal(t, "411001", z)
	assert.Equal(t, ReasonCityZIPs, reason)

	z, reason = l.EnrichZIP("IN", "Pune", "411 036")
	assert.Equal(t, "411036", z)
	assert.Empty(t, reason)

	z, reason = l.EnrichZIP("IN", "Atlantis", "12")
	assert.Empty(t, z)
	assert.Empty(t, reason)
}

func TestLocationResolver_Port(t *testing.T) {
	l := newTestLocationResolver(t)

	p := l.Port("ES", "esvlc", nil)
	require.True(t, p.OK)
	assert.Equal(t, "port:ESVLC", p.Source.String())
	assert.InDelta(t, 39.45, p.Lat, 1e-9)

	chennai := model.Coordinate{Lat: 13.08, Lon: 80.27}
	p = l.Port("ES", "INMAA", &chennai)
	require.True(t, p.OK)
	assert.Equal(t, "ports_locations:INMAA(swapped)", p.Source.String())
	assert.InDelta(t, 13.08, p.Lat, 1e-9)

	assert.False(t, l.Port("ES", "", nil).OK)
	assert.False(t, l.Port("ES", "XXXXX", nil).OK)
}

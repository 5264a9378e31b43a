package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/geo"
	"github.com/sells-group/quote-cli/internal/model"
)

var (
	pune     = model.Coordinate{Lat: 18.5204, Lon: 73.8567}
	chakan   = model.Coordinate{Lat: 18.76, Lon: 73.86}
	nhavaSh  = model.Coordinate{Lat: 18.95, Lon: 72.95}
	india    = model.Coordinate{Lat: 21.0, Lon: 78.0}
	valencia = model.Coordinate{Lat: 39.47, Lon: -0.38}
)

func testIndex() *geo.Index {
	return geo.NewIndex(
		geo.Entry{Kind: model.KindZIP, CountryCode: "ES", Key: "46001", Coordinate: valencia},
		geo.Entry{Kind: model.KindCity, CountryCode: "IN", Key: "Pune", Coordinate: pune},
		geo.Entry{Kind: model.KindPlant, CountryCode: "IN", Key: "Chakan Works", Coordinate: chakan},
		geo.Entry{Kind: model.KindPort, CountryCode: "IN", Key: "INNSA", Coordinate: nhavaSh},
		geo.Entry{Kind: model.KindCountry, CountryCode: "IN", Key: "IN", Coordinate: india},
	)
}

func TestResolver_ChainOrder(t *testing.T) {
	r := NewResolver(testIndex(), nil)
	assert.Equal(t, []model.SourceKind{
		model.SourceZIP, model.SourceCity, model.SourcePlant, model.SourcePort, model.SourceCountry,
	}, r.Kinds())

	withPostal := NewResolver(testIndex(), geo.NewPostal(nil))
	assert.Equal(t, []model.SourceKind{
		model.SourceZIP, model.SourcePostalOffline, model.SourceCity, model.SourceCityOffline,
		model.SourcePlant, model.SourcePort, model.SourceCountry,
	}, withPostal.Kinds())
}

func TestResolver_CityBeatsCountryWhenZIPMissing(t *testing.T) {
	r := NewResolver(testIndex(), nil)

	p := r.Resolve(Query{CountryCode: "IN", ZIP: "411036", City: "pune"})
	require.True(t, p.OK)
	assert.Equal(t, "city:PUNE", p.Source.String())
	assert.Equal(t, pune, p.Coordinate)
	assert.False(t, p.IsCountryLevel())
}

func TestResolver_Fallbacks(t *testing.T) {
	r := NewResolver(testIndex(), nil)

	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"zip", Query{CountryCode: "es", ZIP: "46-001", City: "Nowhere"}, "zip:46001"},
		{"invalid zip skipped", Query{CountryCode: "ES", ZIP: "4600", City: "Nowhere"}, "none"},
		{"plant", Query{CountryCode: "IN", City: "Nowhere", Plant: " chakan  works"}, "plant:CHAKAN WORKS"},
		{"port", Query{CountryCode: "IN", Port: "innsa"}, "port:INNSA"},
		{"country", Query{CountryCode: "IN", City: "Nowhere"}, "country:IN"},
		{"nothing", Query{CountryCode: "BR", City: "Nowhere"}, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := r.Resolve(tt.q)
			assert.Equal(t, tt.want, p.Source.String())
			assert.Equal(t, tt.want != "none", p.OK)
		})
	}
}

func TestResolver_ResolveUsingFiltersKinds(t *testing.T) {
	r := NewResolver(testIndex(), nil)

	p := r.ResolveUsing(Query{CountryCode: "IN", City: "Nowhere"}, model.SourceZIP, model.SourceCity)
	assert.False(t, p.OK, "country centroid must not leak into a city-only lookup")

	p = r.ResolveUsing(Query{CountryCode: "IN", City: "Nowhere"}, model.SourceCountry)
	assert.True(t, p.IsCountryLevel())
}

func TestResolver_PostalStrategies(t *testing.T) {
	postal := geo.NewPostal([]geo.PostalPlace{
		{CountryCode: "IN", PostalCode: "411036", Place: "Mundhwa", Coordinate: model.Coordinate{Lat: 18.53, Lon: 73.93}},
		{CountryCode: "IN", PostalCode: "411036", Place: "Mundhwa", Coordinate: model.Coordinate{Lat: 18.55, Lon: 73.95}},
		{CountryCode: "IN", PostalCode: "410501", Place: "Chakan MIDC Phase II", Coordinate: chakan},
	})
	r := NewResolver(testIndex(), postal)

	p := r.Resolve(Query{CountryCode: "IN", ZIP: "411036"})
	require.True(t, p.OK)
	assert.Equal(t, "zip_offline:411036", p.Source.String())
	assert.InDelta(t, 18.54, p.Lat, 1e-9)

	p = r.Resolve(Query{CountryCode: "IN", City: "Mundhwa"})
	assert.Equal(t, "city_offline:MUNDHWA(exact)", p.Source.String())

	p = r.Resolve(Query{CountryCode: "IN", City: "chakan midc"})
	assert.Equal(t, "city_offline:CHAKAN MIDC(contains)", p.Source.String())
	assert.Equal(t, chakan, p.Coordinate)
}

func TestNew_CustomChain(t *testing.T) {
	r := New(CountryStrategy(testIndex()))
	p := r.Resolve(Query{CountryCode: "IN", City: "Pune"})
	assert.Equal(t, "country:IN", p.Source.String())
}

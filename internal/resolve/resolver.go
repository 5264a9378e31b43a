// Package resolve turns shipment locations into coordinates through an
// ordered list of lookup strategies, each tagging the provenance of what it
// found.
package resolve

import (
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/geo"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// Query is a single location lookup. Empty fields are skipped by the
// strategies that need them.
type Query struct {
	CountryCode string
	ZIP         string
	City        string
	Plant       string
	Port        string
}

// Strategy is one step of the fallback chain.
type Strategy interface {
	Kind() model.SourceKind
	Resolve(q Query) (model.ResolvedPoint, bool)
}

type strategyFunc struct {
	kind model.SourceKind
	fn   func(q Query) (model.ResolvedPoint, bool)
}

func (s strategyFunc) Kind() model.SourceKind { return s.kind }

func (s strategyFunc) Resolve(q Query) (model.ResolvedPoint, bool) { return s.fn(q) }

// Resolver runs its strategies in order and returns the first hit.
type Resolver struct {
	strategies []Strategy
	log        *zap.Logger
}

// New builds a resolver from an explicit strategy list.
func New(strategies ...Strategy) *Resolver {
	return &Resolver{
		strategies: strategies,
		log:        zap.L().With(zap.String("component", "resolve")),
	}
}

// NewResolver builds the standard chain: ZIP, offline postal ZIP, city,
// offline postal city, plant, port, country centroid. postal may be nil.
func NewResolver(idx *geo.Index, postal *geo.Postal) *Resolver {
	chain := []Strategy{ZIPStrategy(idx)}
	if postal != nil {
		chain = append(chain, PostalZIPStrategy(postal))
	}
	chain = append(chain, CityStrategy(idx))
	if postal != nil {
		chain = append(chain, PostalCityStrategy(postal))
	}
	chain = append(chain, PlantStrategy(idx), PortStrategy(idx), CountryStrategy(idx))
	return New(chain...)
}

// Resolve walks the whole chain. The zero ResolvedPoint (OK false) means
// nothing matched.
func (r *Resolver) Resolve(q Query) model.ResolvedPoint {
	return r.ResolveUsing(q)
}

// ResolveUsing walks only the strategies of the given kinds, keeping chain
// order. With no kinds it walks every strategy.
func (r *Resolver) ResolveUsing(q Query, kinds ...model.SourceKind) model.ResolvedPoint {
	for _, s := range r.strategies {
		if len(kinds) > 0 && !hasKind(kinds, s.Kind()) {
			continue
		}
		if p, ok := s.Resolve(q); ok {
			return p
		}
		r.log.Debug("strategy miss",
			zap.String("strategy", string(s.Kind())),
			zap.String("cc", q.CountryCode),
		)
	}
	return model.ResolvedPoint{}
}

// Kinds lists the chain in order.
func (r *Resolver) Kinds() []model.SourceKind {
	out := make([]model.SourceKind, len(r.strategies))
	for i, s := range r.strategies {
		out[i] = s.Kind()
	}
	return out
}

func hasKind(kinds []model.SourceKind, k model.SourceKind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}

// ZIPStrategy looks up a country-valid ZIP in the index.
func ZIPStrategy(idx *geo.Index) Strategy {
	return strategyFunc{kind: model.SourceZIP, fn: func(q Query) (model.ResolvedPoint, bool) {
		z, ok := validZIP(q)
		if !ok {
			return model.ResolvedPoint{}, false
		}
		c, ok := idx.Lookup(model.KindZIP, q.CountryCode, z)
		if !ok {
			return model.ResolvedPoint{}, false
		}
		return model.Resolved(c, model.Provenance{Kind: model.SourceZIP, Key: z}), true
	}}
}

// PostalZIPStrategy looks up a country-valid ZIP in the offline gazetteer.
func PostalZIPStrategy(p *geo.Postal) Strategy {
	return strategyFunc{kind: model.SourcePostalOffline, fn: func(q Query) (model.ResolvedPoint, bool) {
		z, ok := validZIP(q)
		if !ok {
			return model.ResolvedPoint{}, false
		}
		c, ok := p.LookupZIP(q.CountryCode, z)
		if !ok {
			return model.ResolvedPoint{}, false
		}
		return model.Resolved(c, model.Provenance{Kind: model.SourcePostalOffline, Key: z}), true
	}}
}

// CityStrategy looks up the canonical city name in the index.
func CityStrategy(idx *geo.Index) Strategy {
	return strategyFunc{kind: model.SourceCity, fn: func(q Query) (model.ResolvedPoint, bool) {
		key := normalize.CityForCountry(q.CountryCode, q.City)
		if key == "" {
			return model.ResolvedPoint{}, false
		}
		c, ok := idx.Lookup(model.KindCity, q.CountryCode, key)
		if !ok {
			return model.ResolvedPoint{}, false
		}
		return model.Resolved(c, model.Provenance{Kind: model.SourceCity, Key: key}), true
	}}
}

// PostalCityStrategy matches the city against offline place names, exact
// first and then by substring. The match mode becomes a qualifier.
func PostalCityStrategy(p *geo.Postal) Strategy {
	return strategyFunc{kind: model.SourceCityOffline, fn: func(q Query) (model.ResolvedPoint, bool) {
		key := normalize.CityForCountry(q.CountryCode, q.City)
		if key == "" {
			return model.ResolvedPoint{}, false
		}
		c, mode, ok := p.LookupCity(q.CountryCode, key)
		if !ok {
			return model.ResolvedPoint{}, false
		}
		src := model.Provenance{Kind: model.SourceCityOffline, Key: key}.With(mode)
		return model.Resolved(c, src), true
	}}
}

// PlantStrategy looks up a plant or factory name.
func PlantStrategy(idx *geo.Index) Strategy {
	return keyed(idx, model.KindPlant, model.SourcePlant, func(q Query) string { return q.Plant })
}

// PortStrategy looks up a port code.
func PortStrategy(idx *geo.Index) Strategy {
	return keyed(idx, model.KindPort, model.SourcePort, func(q Query) string { return q.Port })
}

// CountryStrategy returns the country centroid, the coarsest answer.
func CountryStrategy(idx *geo.Index) Strategy {
	return strategyFunc{kind: model.SourceCountry, fn: func(q Query) (model.ResolvedPoint, bool) {
		c, ok := idx.LookupCountry(q.CountryCode)
		if !ok {
			return model.ResolvedPoint{}, false
		}
		return model.Resolved(c, model.Provenance{Kind: model.SourceCountry, Key: geo.NormalizeKey(model.KindCountry, q.CountryCode)}), true
	}}
}

func keyed(idx *geo.Index, kind model.LocationKind, src model.SourceKind, field func(Query) string) Strategy {
	return strategyFunc{kind: src, fn: func(q Query) (model.ResolvedPoint, bool) {
		key := geo.NormalizeKey(kind, field(q))
		if key == "" {
			return model.ResolvedPoint{}, false
		}
		c, ok := idx.Lookup(kind, q.CountryCode, key)
		if !ok {
			return model.ResolvedPoint{}, false
		}
		return model.Resolved(c, model.Provenance{Kind: src, Key: key}), true
	}}
}

func validZIP(q Query) (string, bool) {
	z := normalize.ZIP(q.ZIP)
	if !normalize.ZIPValidForCountry(q.CountryCode, z) {
		return "", false
	}
	return z, true
}

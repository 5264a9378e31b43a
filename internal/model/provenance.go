package model

import (
	"encoding/json"
	"strings"
)

// SourceKind names the strategy that produced a coordinate.
type SourceKind string

const (
	SourceNone          SourceKind = ""
	SourceZIP           SourceKind = "zip"
	SourcePostalOffline SourceKind = "zip_offline"
	SourceCity          SourceKind = "city"
	SourceCityOffline   SourceKind = "city_offline"
	SourceGeoCity       SourceKind = "geo_city"
	SourcePlant         SourceKind = "plant"
	SourcePort          SourceKind = "port"
	SourcePortLocations SourceKind = "ports_locations"
	SourceCountry       SourceKind = "country"
	SourceOnline        SourceKind = "nominatim"
)

// Granularity returns the coarseness rank of a source kind: lower is finer.
// Country-level results rank last.
func (k SourceKind) Granularity() int {
	switch k {
	case SourceZIP, SourcePostalOffline:
		return 0
	case SourceCity, SourceCityOffline, SourceGeoCity, SourceOnline:
		return 1
	case SourcePlant, SourcePort, SourcePortLocations:
		return 2
	case SourceCountry:
		return 3
	default:
		return 4
	}
}

// Provenance records how a coordinate was obtained. Key is the lookup key
// that matched (a ZIP, city or port code) and Qualifiers carry modifiers such
// as "alias", "swapped" or the offline match mode.
type Provenance struct {
	Kind       SourceKind `json:"kind"`
	Key        string     `json:"key,omitempty"`
	Qualifiers []string   `json:"qualifiers,omitempty"`
}

// With returns a copy of p carrying the extra qualifier.
func (p Provenance) With(q string) Provenance {
	out := Provenance{Kind: p.Kind, Key: p.Key}
	out.Qualifiers = append(append([]string(nil), p.Qualifiers...), q)
	return out
}

// Has reports whether the qualifier is present.
func (p Provenance) Has(q string) bool {
	for _, v := range p.Qualifiers {
		if v == q {
			return true
		}
	}
	return false
}

// String renders the tag used in debug trails, e.g. "city:PUNE(alias)".
func (p Provenance) String() string {
	if p.Kind == SourceNone {
		return "none"
	}
	var b strings.Builder
	b.WriteString(string(p.Kind))
	if p.Key != "" {
		b.WriteByte(':')
		b.WriteString(p.Key)
	}
	if len(p.Qualifiers) > 0 {
		b.WriteByte('(')
		b.WriteString(strings.Join(p.Qualifiers, ","))
		b.WriteByte(')')
	}
	return b.String()
}

// ResolvedPoint is a coordinate paired with its provenance. OK is false
// when nothing could be resolved; the coordinate is then meaningless.
type ResolvedPoint struct {
	Coordinate
	OK     bool       `json:"ok"`
	Source Provenance `json:"source"`
}

// resolvedPointJSON is the wire form of ResolvedPoint: unresolved points
// carry null coordinates.
type resolvedPointJSON struct {
	Lat    *float64   `json:"lat"`
	Lon    *float64   `json:"lon"`
	OK     bool       `json:"ok"`
	Source Provenance `json:"source"`
}

func (p ResolvedPoint) MarshalJSON() ([]byte, error) {
	out := resolvedPointJSON{OK: p.OK, Source: p.Source}
	if p.OK {
		lat, lon := p.Lat, p.Lon
		out.Lat, out.Lon = &lat, &lon
	}
	return json.Marshal(out)
}

func (p *ResolvedPoint) UnmarshalJSON(data []byte) error {
	var in resolvedPointJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = ResolvedPoint{OK: in.OK, Source: in.Source}
	if in.OK && in.Lat != nil && in.Lon != nil {
		p.Coordinate = Coordinate{Lat: *in.Lat, Lon: *in.Lon}
	} else {
		p.OK = false
	}
	return nil
}

// Resolved builds a successful ResolvedPoint.
func Resolved(c Coordinate, src Provenance) ResolvedPoint {
	return ResolvedPoint{Coordinate: c, OK: true, Source: src}
}

// IsCountryLevel reports whether the point only has country-centroid precision.
func (p ResolvedPoint) IsCountryLevel() bool {
	return p.OK && p.Source.Kind == SourceCountry
}

// Ptr returns the coordinate or nil when unresolved.
func (p ResolvedPoint) Ptr() *Coordinate {
	if !p.OK {
		return nil
	}
	c := p.Coordinate
	return &c
}

package normalize

import (
	"strings"
)

// builtinCountries maps country names seen in templates to ISO alpha-2.
var builtinCountries = map[string]string{
	"CHINA":              "CN",
	"INDIA":              "IN",
	"SPAIN":              "ES",
	"BRAZIL":             "BR",
	"TURKEY":             "TR",
	"FRANCE":             "FR",
	"GERMANY":            "DE",
	"ALLEMAGNE":          "DE",
	"ALEMANIA":           "DE",
	"DEUTSCHLAND":        "DE",
	"UNITED STATES":      "US",
	"USA":                "US",
	"MEXICO":             "MX",
	"UNITED KINGDOM":     "GB",
	"UK":                 "GB",
	"ITALY":              "IT",
	"PORTUGAL":           "PT",
	"NETHERLANDS":        "NL",
	"POLAND":             "PL",
	"CZECH REPUBLIC":     "CZ",
	"CZECHIA":            "CZ",
	"CZECH":              "CZ",
	"SLOVAKIA":           "SK",
	"SOUTH KOREA":        "KR",
	"KOREA, REPUBLIC OF": "KR",
	"JAPAN":              "JP",
	"MOROCCO":            "MA",
	"MAROC":              "MA",
	"MARRUECOS":          "MA",
	"MAROKKO":            "MA",
}

// CountryCoercer turns a (code, name) pair into an ISO code. Name sources
// are consulted in order; the first hit wins.
type CountryCoercer struct {
	sources []map[string]string
}

// NewCountryCoercer builds a coercer that tries each reference map (keys are
// upper-cased country names) before the built-in table.
func NewCountryCoercer(reference ...map[string]string) *CountryCoercer {
	c := &CountryCoercer{}
	for _, m := range reference {
		if len(m) == 0 {
			continue
		}
		norm := make(map[string]string, len(m))
		for k, v := range m {
			norm[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
		}
		c.sources = append(c.sources, norm)
	}
	c.sources = append(c.sources, builtinCountries)
	return c
}

// Coerce returns the ISO code for the pair. Unknown names come back as
// the trimmed raw value (the code if given, else the name) so callers
// keep whatever the template said. A nil coercer uses the built-in names
// only.
func (c *CountryCoercer) Coerce(rawCode, rawName string) string {
	if cc, ok := c.Lookup(rawCode, rawName); ok {
		return cc
	}
	if v := strings.TrimSpace(rawCode); v != "" {
		return v
	}
	return strings.TrimSpace(rawName)
}

// Lookup is Coerce without the pass-through: ok is false when neither
// value is an ISO code or a known country name.
func (c *CountryCoercer) Lookup(rawCode, rawName string) (string, bool) {
	if c == nil {
		c = builtinCoercer
	}
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if looksLikeISO(code) {
		return code, true
	}
	name := strings.ToUpper(strings.TrimSpace(rawName))
	if name == "" {
		name = code
	}
	if name == "" {
		return "", false
	}
	for _, src := range c.sources {
		if v, ok := src[name]; ok {
			return v, true
		}
	}
	if stripped := StripAccents(name); stripped != name {
		for _, src := range c.sources {
			if v, ok := src[stripped]; ok {
				return v, true
			}
		}
	}
	return "", false
}

var builtinCoercer = &CountryCoercer{sources: []map[string]string{builtinCountries}}

func looksLikeISO(s string) bool {
	if len(s) < 2 || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

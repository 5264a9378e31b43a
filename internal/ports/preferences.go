package ports

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Port sides used as keys of a Preferences entry.
const (
	SidePOL = "POL"
	SidePOD = "POD"
)

// Preferences lists preferred port codes per country and side, e.g.
//
//	CN:
//	  POL: [CNSHA]
type Preferences map[string]map[string][]string

// DefaultPreferences prefers Shanghai for Chinese origins.
func DefaultPreferences() Preferences {
	return Preferences{"CN": {SidePOL: {"CNSHA"}}}
}

// For returns the preferred codes for cc on side, upper-cased.
func (p Preferences) For(cc, side string) []string {
	codes := p[strings.ToUpper(strings.TrimSpace(cc))][strings.ToUpper(side)]
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Normalize returns a copy with upper-cased country and side keys, as
// produced by case-insensitive config loaders.
func (p Preferences) Normalize() Preferences {
	out := make(Preferences, len(p))
	for cc, sides := range p {
		k := strings.ToUpper(strings.TrimSpace(cc))
		if out[k] == nil {
			out[k] = make(map[string][]string, len(sides))
		}
		for side, codes := range sides {
			s := strings.ToUpper(strings.TrimSpace(side))
			out[k][s] = append(out[k][s], codes...)
		}
	}
	return out
}

// Merge returns a copy of p where every country and side present in over
// replaces the entry of p.
func (p Preferences) Merge(over Preferences) Preferences {
	out := make(Preferences, len(p)+len(over))
	for _, src := range []Preferences{p.Normalize(), over.Normalize()} {
		for cc, sides := range src {
			if out[cc] == nil {
				out[cc] = make(map[string][]string, len(sides))
			}
			for side, codes := range sides {
				out[cc][side] = append([]string(nil), codes...)
			}
		}
	}
	return out
}

// LoadPreferences reads a YAML preference file.
func LoadPreferences(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ports: read preferences %s", path)
	}
	return ParsePreferences(data)
}

// ParsePreferences is LoadPreferences for in-memory YAML.
func ParsePreferences(data []byte) (Preferences, error) {
	var p Preferences
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "ports: parse preferences")
	}
	for cc, sides := range p {
		for side := range sides {
			if s := strings.ToUpper(strings.TrimSpace(side)); s != SidePOL && s != SidePOD {
				return nil, eris.Errorf("ports: preferences for %s: unknown side %q", cc, side)
			}
		}
	}
	return p.Normalize(), nil
}

package geocode

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNotAllowed is returned by a gated client for countries outside its
// allow-list.
var ErrNotAllowed = eris.New("geocode: online geocoding not allowed for country")

// DefaultAllowList enables online geocoding for China only, where the
// offline tables have the largest gaps.
const DefaultAllowList = "cn"

// AllowList decides which countries may use online geocoding.
type AllowList struct {
	all       bool
	countries map[string]bool
}

// ParseAllowList reads "0"/"false"/"no"/"off" (disabled), "1"/"true"/
// "yes"/"all" (every country) or a comma-separated list of ISO2 codes.
// Empty input means DefaultAllowList.
func ParseAllowList(raw string) AllowList {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		v = DefaultAllowList
	}
	switch v {
	case "0", "false", "no", "off":
		return AllowList{}
	case "1", "true", "yes", "all":
		return AllowList{all: true}
	}
	a := AllowList{countries: make(map[string]bool)}
	for _, part := range strings.Split(v, ",") {
		if cc := strings.ToUpper(strings.TrimSpace(part)); cc != "" {
			a.countries[cc] = true
		}
	}
	return a
}

// Allows reports whether cc may be geocoded online.
func (a AllowList) Allows(cc string) bool {
	if a.all {
		return true
	}
	return a.countries[strings.ToUpper(strings.TrimSpace(cc))]
}

// Enabled reports whether any country is allowed.
func (a AllowList) Enabled() bool {
	return a.all || len(a.countries) > 0
}

func (a AllowList) String() string {
	switch {
	case a.all:
		return "all"
	case len(a.countries) == 0:
		return "off"
	}
	out := make([]string, 0, len(a.countries))
	for cc := range a.countries {
		out = append(out, cc)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

type gated struct {
	next  Client
	allow AllowList
}

// Gated wraps next so that only allow-listed countries reach it.
func Gated(next Client, allow AllowList) Client {
	return &gated{next: next, allow: allow}
}

func (g *gated) GeocodeCity(ctx context.Context, cc, city string) (*Result, error) {
	if !g.allow.Allows(cc) {
		return nil, ErrNotAllowed
	}
	return g.next.GeocodeCity(ctx, cc, city)
}

// Package geo holds the in-memory coordinate index and distance helpers.
package geo

import (
	"strings"
	"sync"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// Entry is one row of the index.
type Entry struct {
	Kind        model.LocationKind
	CountryCode string
	Key         string
	Coordinate  model.Coordinate
}

type indexKey struct {
	kind model.LocationKind
	cc   string
	key  string
}

// Index is a typed lookup of (kind, country, key) to coordinates. Keys are
// normalized on insert and lookup; later inserts for the same key win.
// It is safe for concurrent reads once loading is done.
type Index struct {
	mu      sync.RWMutex
	entries map[indexKey]model.Coordinate
	byKind  map[model.LocationKind]int
}

// NewIndex creates an index pre-populated with entries.
func NewIndex(entries ...Entry) *Index {
	idx := &Index{
		entries: make(map[indexKey]model.Coordinate, len(entries)),
		byKind:  make(map[model.LocationKind]int),
	}
	for _, e := range entries {
		idx.Add(e)
	}
	return idx
}

// Add inserts or replaces an entry. Invalid coordinates are ignored.
func (x *Index) Add(e Entry) bool {
	if !e.Coordinate.Valid() {
		return false
	}
	k := makeKey(e.Kind, e.CountryCode, e.Key)
	if k.key == "" || k.cc == "" {
		return false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.entries[k]; !ok {
		x.byKind[e.Kind]++
	}
	x.entries[k] = e.Coordinate
	return true
}

// Lookup returns the coordinate for (kind, cc, key).
func (x *Index) Lookup(kind model.LocationKind, cc, key string) (model.Coordinate, bool) {
	k := makeKey(kind, cc, key)
	x.mu.RLock()
	defer x.mu.RUnlock()
	c, ok := x.entries[k]
	return c, ok
}

// LookupCountry returns the country centroid.
func (x *Index) LookupCountry(cc string) (model.Coordinate, bool) {
	return x.Lookup(model.KindCountry, cc, cc)
}

// Len returns the number of entries of the given kind.
func (x *Index) Len(kind model.LocationKind) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.byKind[kind]
}

// NormalizeKey applies the per-kind key normalization used by the index.
func NormalizeKey(kind model.LocationKind, key string) string {
	switch kind {
	case model.KindZIP:
		return normalize.ZIP(key)
	case model.KindPort, model.KindCountry:
		return strings.ToUpper(strings.Join(strings.Fields(key), ""))
	default:
		return normalize.City(key)
	}
}

func makeKey(kind model.LocationKind, cc, key string) indexKey {
	return indexKey{
		kind: kind,
		cc:   strings.ToUpper(strings.TrimSpace(cc)),
		key:  NormalizeKey(kind, key),
	}
}

// Package ports selects the (POL, POD) pair for overseas shipments from the
// lane table. Selection is deterministic: proximity to the origin first,
// then static preferences, then lane frequency, with relaxed fallbacks when
// the country filters leave nothing.
package ports

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/geo"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/refdata"
)

// Selection reasons. Swapped-column and reversed-code variants carry the
// SuffixSwapCols / SuffixSwapUNLOC suffixes; relaxed fallbacks wrap the
// inner reason, e.g. "fallback-pol(cercania)".
const (
	ReasonProximity    = "cercania"
	ReasonPreference   = "preferencia"
	ReasonFrequency    = "frecuencia"
	ReasonNoCandidates = "sin-candidatos"

	SuffixSwapCols  = "-swap-cols"
	SuffixSwapUNLOC = "-swap-unloc"

	fallbackPOL = "fallback-pol"
	fallbackPOD = "fallback-pod"
)

// auditSize is the number of nearest POL candidates kept for the trail.
const auditSize = 3

// PortLocator resolves a port code to a coordinate. near orients
// port-location rows whose lat/lon may be transposed.
type PortLocator interface {
	Port(cc, code string, near *model.Coordinate) model.ResolvedPoint
}

// Request describes the shipment ends for one selection.
type Request struct {
	OriginCC   string
	DestCC     string
	OriginName string
	DestName   string
	Origin     *model.Coordinate
}

// Candidate is a port considered during selection.
type Candidate struct {
	Code       string              `json:"code"`
	Point      model.ResolvedPoint `json:"point"`
	DistanceKM *float64            `json:"distance_km,omitempty"`
}

// Selection is the chosen pair. POL and POD are empty when Reason is
// ReasonNoCandidates.
type Selection struct {
	POL     string      `json:"pol"`
	POD     string      `json:"pod"`
	Reason  string      `json:"reason"`
	Swapped bool        `json:"swapped,omitempty"`
	Nearest []Candidate `json:"nearest,omitempty"`
}

// Found reports whether a pair was selected.
func (s Selection) Found() bool {
	return s.POL != "" && s.POD != ""
}

// Selector picks port pairs from the lane table.
type Selector struct {
	lanes     *refdata.LaneTable
	plants    *refdata.PlantPortTable
	locations *refdata.PortLocationTable
	locator   PortLocator
	prefs     Preferences
	dist      geo.Distance
	log       *zap.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithPreferences replaces the default port preferences.
func WithPreferences(p Preferences) Option {
	return func(s *Selector) {
		if p != nil {
			s.prefs = p.Normalize()
		}
	}
}

// WithRoadFactor sets the road inflation used to rank candidates.
func WithRoadFactor(f float64) Option {
	return func(s *Selector) {
		s.dist = geo.NewDistance(f)
	}
}

// NewSelector builds a selector over the lane, plant-port and port-location
// tables. locator may be nil, which disables proximity ranking.
func NewSelector(t *refdata.Tables, locator PortLocator, opts ...Option) *Selector {
	s := &Selector{
		locator: locator,
		prefs:   DefaultPreferences(),
		dist:    geo.NewDistance(geo.DefaultRoadFactor),
		log:     zap.L().With(zap.String("component", "ports.selector")),
	}
	if t != nil {
		s.lanes = t.Lanes
		s.plants = t.PlantPorts
		s.locations = t.PortLocations
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// pair is a deduplicated lane with its occurrence count in the scope.
type pair struct {
	pol, pod string
	count    int
}

// Select picks the (POL, POD) pair for a shipment from oc to dc.
func (s *Selector) Select(req Request) Selection {
	oc, dc := upper(req.OriginCC), upper(req.DestCC)
	if oc == "" || dc == "" || s.lanes == nil || len(s.lanes.Lanes) == 0 {
		return Selection{Reason: ReasonNoCandidates}
	}
	ocNames := targets(oc, req.OriginName)
	dcNames := targets(dc, req.DestName)

	if sel := s.pick(s.scope(ocNames, dcNames, oc, dc), oc, dc, req.Origin, ""); sel.Found() {
		return sel
	}

	if s.lanes.HasPOLCountry || s.lanes.HasPODCountry {
		rows := s.filter(s.lanes.Lanes, dcNames, ocNames)
		if sel := s.pick(reverse(rows), oc, dc, req.Origin, SuffixSwapCols); sel.Found() {
			sel.Swapped = true
			s.log.Debug("lane scope found with swapped country columns",
				zap.String("oc", oc),
				zap.String("dc", dc),
				zap.String("reason", sel.Reason),
			)
			return sel
		}
	}

	// Relaxed stages accept a side when either its country cell or the
	// port's own country (plant mapping, port locations, code prefix) fits.
	if pol, why, nearest := s.selectPOL(oc, ocNames, req.Origin, true); pol != "" {
		var rows []refdata.Lane
		for _, l := range s.lanes.Lanes {
			if l.POL == pol && l.POD != pol && s.compatible(l, dcNames, dc, false) {
				rows = append(rows, l)
			}
		}
		if pod := s.podFor(rows, dc); pod != "" {
			return maybeSwap(Selection{POL: pol, POD: pod, Reason: fallbackPOL + "(" + why + ")", Nearest: nearest}, oc, dc)
		}
	}

	var rows []refdata.Lane
	for _, l := range s.lanes.Lanes {
		if s.compatible(l, dcNames, dc, false) && s.compatible(l, ocNames, oc, true) {
			rows = append(rows, l)
		}
	}
	if pairs := dedupe(rows); len(pairs) > 0 {
		best := mostFrequent(pairs)
		return maybeSwap(Selection{POL: best.pol, POD: best.pod, Reason: fallbackPOD + "(" + ReasonFrequency + ")"}, oc, dc)
	}

	s.log.Debug("no port candidates", zap.String("oc", oc), zap.String("dc", dc))
	return Selection{Reason: ReasonNoCandidates}
}

// SelectPOL picks a loading port in cc alone, with the same
// proximity, preference and frequency order as Select.
func (s *Selector) SelectPOL(cc, name string, origin *model.Coordinate) (string, string) {
	cc = upper(cc)
	if cc == "" || s.lanes == nil {
		return "", ReasonNoCandidates
	}
	pol, why, _ := s.selectPOL(cc, targets(cc, name), origin, false)
	return pol, why
}

func (s *Selector) selectPOL(cc string, names []string, origin *model.Coordinate, relaxed bool) (string, string, []Candidate) {
	var rows []refdata.Lane
	switch {
	case relaxed:
		for _, l := range s.lanes.Lanes {
			if s.compatible(l, names, cc, true) {
				rows = append(rows, l)
			}
		}
	case s.lanes.HasPOLCountry:
		rows = s.filterSide(s.lanes.Lanes, names, true)
	default:
		plantPorts := s.plants.PortsForCountry(cc)
		for _, l := range s.lanes.Lanes {
			if len(plantPorts) > 0 && containsString(plantPorts, l.POL) {
				rows = append(rows, l)
			} else if len(plantPorts) == 0 && s.countryOfPort(l.POL) == cc {
				rows = append(rows, l)
			}
		}
	}
	if len(rows) == 0 {
		return "", ReasonNoCandidates, nil
	}

	counts := make(map[string]int)
	var pols []string
	for _, l := range rows {
		if counts[l.POL] == 0 {
			pols = append(pols, l.POL)
		}
		counts[l.POL]++
	}

	if origin != nil {
		if ranked := s.rank(cc, pols, origin); len(ranked) > 0 {
			return ranked[0].Code, ReasonProximity, audit(ranked)
		}
	}
	for _, pref := range s.prefs.For(cc, SidePOL) {
		if counts[pref] > 0 {
			return pref, ReasonPreference, nil
		}
	}
	best := pols[0]
	for _, p := range pols[1:] {
		if counts[p] > counts[best] {
			best = p
		}
	}
	return best, ReasonFrequency, nil
}

// Candidates lists the known ports of cc from the lane, plant-port and
// port-location tables. With near set they are sorted by road distance,
// unresolved ports last.
func (s *Selector) Candidates(cc string, near *model.Coordinate) []Candidate {
	cc = upper(cc)
	if cc == "" {
		return nil
	}
	var codes []string
	add := func(code string) {
		if code != "" && !containsString(codes, code) {
			codes = append(codes, code)
		}
	}
	if s.lanes != nil {
		for _, l := range s.lanes.Lanes {
			if l.POLCountry == cc || (!s.lanes.HasPOLCountry && s.countryOfPort(l.POL) == cc) {
				add(l.POL)
			}
			if l.PODCountry == cc || (!s.lanes.HasPODCountry && s.countryOfPort(l.POD) == cc) {
				add(l.POD)
			}
		}
	}
	for _, p := range s.plants.PortsForCountry(cc) {
		add(p)
	}
	for _, p := range s.locations.ForCountry(cc) {
		add(p)
	}

	out := make([]Candidate, 0, len(codes))
	for _, code := range codes {
		c := Candidate{Code: code}
		if s.locator != nil {
			c.Point = s.locator.Port(cc, code, near)
		}
		if near != nil {
			c.DistanceKM = s.dist.Road(model.Resolved(*near, model.Provenance{}), c.Point)
		}
		out = append(out, c)
	}
	if near != nil {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].DistanceKM, out[j].DistanceKM
			if a == nil || b == nil {
				return a != nil
			}
			return *a < *b
		})
	}
	return out
}

// scope applies both country filters. A side whose country column is
// missing is narrowed by the plant-port mapping or the code prefix, unless
// that would leave nothing.
func (s *Selector) scope(ocNames, dcNames []string, oc, dc string) []refdata.Lane {
	rows := s.filter(s.lanes.Lanes, ocNames, dcNames)
	if !s.lanes.HasPOLCountry {
		rows = s.refine(rows, oc, true)
	}
	if !s.lanes.HasPODCountry {
		rows = s.refine(rows, dc, false)
	}
	return rows
}

func (s *Selector) filter(rows []refdata.Lane, polNames, podNames []string) []refdata.Lane {
	return s.filterSide(s.filterSide(rows, polNames, true), podNames, false)
}

// filterSide keeps rows whose POL (or POD) country matches one of names.
// It is a no-op when the lane table has no country column for that side.
func (s *Selector) filterSide(rows []refdata.Lane, names []string, pol bool) []refdata.Lane {
	if (pol && !s.lanes.HasPOLCountry) || (!pol && !s.lanes.HasPODCountry) {
		return rows
	}
	var out []refdata.Lane
	for _, l := range rows {
		v := l.PODCountry
		if pol {
			v = l.POLCountry
		}
		if matchCountry(v, names) {
			out = append(out, l)
		}
	}
	return out
}

// compatible is the relaxed side match used by the fallbacks.
func (s *Selector) compatible(l refdata.Lane, names []string, cc string, pol bool) bool {
	v, code := l.PODCountry, l.POD
	if pol {
		v, code = l.POLCountry, l.POL
	}
	return matchCountry(v, names) || s.countryOfPort(code) == cc
}

func (s *Selector) refine(rows []refdata.Lane, cc string, pol bool) []refdata.Lane {
	var plantPorts []string
	if pol {
		plantPorts = s.plants.PortsForCountry(cc)
	}
	var out []refdata.Lane
	for _, l := range rows {
		code := l.POD
		if pol {
			code = l.POL
		}
		if containsString(plantPorts, code) || s.countryOfPort(code) == cc {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return rows
	}
	return out
}

// pick orders the scope by proximity, preference and frequency.
func (s *Selector) pick(rows []refdata.Lane, oc, dc string, origin *model.Coordinate, suffix string) Selection {
	pairs := dedupe(rows)
	if len(pairs) == 0 {
		return Selection{Reason: ReasonNoCandidates}
	}

	if origin != nil {
		pols := make([]string, 0, len(pairs))
		for _, p := range pairs {
			if !containsString(pols, p.pol) {
				pols = append(pols, p.pol)
			}
		}
		if ranked := s.rank(oc, pols, origin); len(ranked) > 0 {
			best := ranked[0].Code
			for _, p := range pairs {
				if p.pol == best {
					sel := Selection{POL: p.pol, POD: p.pod, Reason: ReasonProximity + suffix, Nearest: audit(ranked)}
					return maybeSwap(sel, oc, dc)
				}
			}
		}
	}

	podPrefs := s.prefs.For(dc, SidePOD)
	for _, pref := range s.prefs.For(oc, SidePOL) {
		var match *pair
		for i := range pairs {
			if pairs[i].pol != pref {
				continue
			}
			if match == nil {
				match = &pairs[i]
			}
			if containsString(podPrefs, pairs[i].pod) {
				match = &pairs[i]
				break
			}
		}
		if match != nil {
			return maybeSwap(Selection{POL: match.pol, POD: match.pod, Reason: ReasonPreference + suffix}, oc, dc)
		}
	}

	best := mostFrequent(pairs)
	return maybeSwap(Selection{POL: best.pol, POD: best.pod, Reason: ReasonFrequency + suffix}, oc, dc)
}

// rank resolves each port and sorts by road distance to origin. Ports that
// cannot be located are dropped.
func (s *Selector) rank(cc string, codes []string, origin *model.Coordinate) []Candidate {
	if s.locator == nil || origin == nil {
		return nil
	}
	from := model.Resolved(*origin, model.Provenance{})
	var out []Candidate
	for _, code := range codes {
		p := s.locator.Port(cc, code, origin)
		km := s.dist.Road(from, p)
		if km == nil {
			continue
		}
		out = append(out, Candidate{Code: code, Point: p, DistanceKM: km})
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceKM < *out[j].DistanceKM })
	return out
}

// podFor picks the preferred POD of dc among rows, else the most frequent.
func (s *Selector) podFor(rows []refdata.Lane, dc string) string {
	counts := make(map[string]int)
	var pods []string
	for _, l := range rows {
		if counts[l.POD] == 0 {
			pods = append(pods, l.POD)
		}
		counts[l.POD]++
	}
	if len(pods) == 0 {
		return ""
	}
	for _, pref := range s.prefs.For(dc, SidePOD) {
		if counts[pref] > 0 {
			return pref
		}
	}
	best := pods[0]
	for _, p := range pods[1:] {
		if counts[p] > counts[best] {
			best = p
		}
	}
	return best
}

// countryOfPort uses the plant-port mapping, then the port-location sheet,
// then the UN/LOCODE prefix.
func (s *Selector) countryOfPort(code string) string {
	if cc, ok := s.plants.CountryOfPort(code); ok {
		return cc
	}
	if cc, ok := s.locations.CountryOf(code); ok {
		return cc
	}
	if len(code) >= 2 {
		return code[:2]
	}
	return ""
}

// maybeSwap reverses a pair whose UN/LOCODE prefixes show it points from
// dc to oc. Codes that do not follow the convention are left alone.
func maybeSwap(sel Selection, oc, dc string) Selection {
	if len(oc) != 2 || len(dc) != 2 || len(sel.POL) < 2 || len(sel.POD) < 2 {
		return sel
	}
	polCC, podCC := sel.POL[:2], sel.POD[:2]
	if polCC == dc && podCC == oc && !(polCC == oc && podCC == dc) {
		sel.POL, sel.POD = sel.POD, sel.POL
		sel.Reason += SuffixSwapUNLOC
		sel.Swapped = true
	}
	return sel
}

// dedupe collapses rows into pairs in first-appearance order, dropping
// lanes that load and discharge at the same port.
func dedupe(rows []refdata.Lane) []pair {
	idx := make(map[[2]string]int)
	var out []pair
	for _, l := range rows {
		if l.POL == "" || l.POD == "" || l.POL == l.POD {
			continue
		}
		k := [2]string{l.POL, l.POD}
		if i, ok := idx[k]; ok {
			out[i].count++
			continue
		}
		idx[k] = len(out)
		out = append(out, pair{pol: l.POL, pod: l.POD, count: 1})
	}
	return out
}

// mostFrequent returns the pair with the highest count; ties go to the
// first one seen.
func mostFrequent(pairs []pair) pair {
	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.count > best.count {
			best = p
		}
	}
	return best
}

// reverse flips lanes whose country columns show them running from dc to
// oc, so the loading side is always the origin country.
func reverse(rows []refdata.Lane) []refdata.Lane {
	out := make([]refdata.Lane, len(rows))
	for i, l := range rows {
		l.POL, l.POD = l.POD, l.POL
		l.POLCountry, l.PODCountry = l.PODCountry, l.POLCountry
		out[i] = l
	}
	return out
}

func audit(ranked []Candidate) []Candidate {
	if len(ranked) > auditSize {
		ranked = ranked[:auditSize]
	}
	return append([]Candidate(nil), ranked...)
}

func targets(cc, name string) []string {
	out := []string{cc}
	if n := upper(name); n != "" && n != cc {
		out = append(out, n)
	}
	return out
}

func matchCountry(v string, names []string) bool {
	v = upper(v)
	if v == "" {
		return false
	}
	for _, n := range names {
		if v == n {
			return true
		}
	}
	return false
}

func containsString(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

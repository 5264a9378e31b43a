package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Leg identifies a stretch of the route.
type Leg int

const (
	// LegOriginInland runs from the origin to the POL (or to the destination
	// for inland flows).
	LegOriginInland Leg = 1
	// LegMain is the ocean lane POL to POD.
	LegMain Leg = 2
	// LegDestInland runs from the POD to the destination.
	LegDestInland Leg = 3
)

// FlowType is the route shape.
type FlowType string

const (
	FlowOverseas FlowType = "Overseas"
	FlowInland   FlowType = "Inland"
)

// LegPlan is the set of legs the buyer pays for plus the flow type.
type LegPlan struct {
	Legs []Leg    `json:"legs"`
	Flow FlowType `json:"flow"`
}

// NewLegPlan builds a plan with the legs sorted and deduplicated.
func NewLegPlan(flow FlowType, legs ...Leg) LegPlan {
	seen := make(map[Leg]bool, len(legs))
	out := make([]Leg, 0, len(legs))
	for _, l := range legs {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return LegPlan{Legs: out, Flow: flow}
}

// Includes reports whether the buyer pays for leg l.
func (p LegPlan) Includes(l Leg) bool {
	for _, v := range p.Legs {
		if v == l {
			return true
		}
	}
	return false
}

func (p LegPlan) String() string {
	parts := make([]string, len(p.Legs))
	for i, l := range p.Legs {
		parts[i] = fmt.Sprintf("%d", l)
	}
	return fmt.Sprintf("%s{%s}", p.Flow, strings.Join(parts, ","))
}

// FlagCode classifies a row-level problem.
type FlagCode string

const (
	FlagUnsupportedIncoterm FlagCode = "unsupported_incoterm"
	FlagUnresolvedLocation  FlagCode = "unresolved_location"
	FlagCountryLevel        FlagCode = "country_level_location"
	FlagNoPortCandidates    FlagCode = "no_port_candidates"
	FlagMissingRate         FlagCode = "missing_rate"
	FlagMissingTransitTime  FlagCode = "missing_transit_time"
	FlagMissingDistance     FlagCode = "missing_distance"
)

// Flag is a structured, user-visible row warning.
type Flag struct {
	Code    FlagCode `json:"code"`
	Message string   `json:"message"`
}

// LegQuote holds the numbers for one leg. Rate is EUR per km for inland legs
// and the all-in lane rate for the main leg. Cost is nil when the leg is not
// owed by the buyer.
type LegQuote struct {
	DistanceKM *float64 `json:"distance_km"`
	Rate       *float64 `json:"rate"`
	CostEUR    *float64 `json:"cost_eur"`
}

// QuoteResult is the per-row output of the assembler.
type QuoteResult struct {
	RunID      string   `json:"run_id,omitempty"`
	Row        int      `json:"row"`
	PartNumber string   `json:"pn,omitempty"`
	Incoterm   string   `json:"incoterm"`
	Flow       FlowType `json:"flow"`
	Legs       []Leg    `json:"legs"`
	OriginCC   string   `json:"origin_cc"`
	DestCC     string   `json:"dest_cc"`
	POL        string   `json:"pol,omitempty"`
	POD        string   `json:"pod,omitempty"`
	PortReason string   `json:"port_reason,omitempty"`

	Origin      ResolvedPoint `json:"origin"`
	Destination ResolvedPoint `json:"destination"`
	POLPoint    ResolvedPoint `json:"pol_point"`
	PODPoint    ResolvedPoint `json:"pod_point"`

	POLDistanceKM *float64 `json:"pol_distance_km"`
	PODDistanceKM *float64 `json:"pod_distance_km"`

	Leg1 LegQuote `json:"leg1"`
	Leg2 LegQuote `json:"leg2"`
	Leg3 LegQuote `json:"leg3"`

	TransitDays  *float64  `json:"transit_days"`
	TotalCostEUR float64   `json:"total_cost_eur"`
	Flags        []Flag    `json:"flags,omitempty"`
	Trail        []string  `json:"trail,omitempty"`
	QuotedAt     time.Time `json:"quoted_at"`
}

// Leg returns a pointer to the quote of leg l.
func (r *QuoteResult) Leg(l Leg) *LegQuote {
	switch l {
	case LegOriginInland:
		return &r.Leg1
	case LegMain:
		return &r.Leg2
	default:
		return &r.Leg3
	}
}

// HasFlag reports whether a flag with the given code was raised.
func (r *QuoteResult) HasFlag(code FlagCode) bool {
	for _, f := range r.Flags {
		if f.Code == code {
			return true
		}
	}
	return false
}

// Debug joins the trail into the single "Red flag/Debug" cell.
func (r *QuoteResult) Debug() string {
	return strings.Join(r.Trail, "; ")
}

// Note appends a free-text entry to the debug trail.
func (r *QuoteResult) Note(format string, args ...any) {
	r.Trail = append(r.Trail, fmt.Sprintf(format, args...))
}

// Raise records a flag and mirrors it into the trail.
func (r *QuoteResult) Raise(code FlagCode, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Flags = append(r.Flags, Flag{Code: code, Message: msg})
	r.Trail = append(r.Trail, msg)
}

// Float returns a pointer to v, for the nullable numeric fields.
func Float(v float64) *float64 { return &v }

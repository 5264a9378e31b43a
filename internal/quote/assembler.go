// Package quote assembles per-row freight quotes: it resolves the Incoterm,
// locates both shipment ends, selects the port pair for overseas flows and
// prices each leg the buyer owes.
package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/geo"
	"github.com/sells-group/quote-cli/internal/incoterm"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/ports"
	"github.com/sells-group/quote-cli/internal/refdata"
	"github.com/sells-group/quote-cli/internal/resolve"
)

// DefaultIncoterm is used for rows with a blank or unsupported code.
const DefaultIncoterm = "FCA"

// Assembler turns shipment rows into quotes. It holds only read-only
// reference data and is safe for concurrent use.
type Assembler struct {
	tables          *refdata.Tables
	locations       *resolve.LocationResolver
	selector        *ports.Selector
	incoterms       *incoterm.Table
	defaultIncoterm string
	dist            geo.Distance
	now             func() time.Time
	log             *zap.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithIncoterms replaces the standard rule table.
func WithIncoterms(t *incoterm.Table) Option {
	return func(a *Assembler) {
		if t != nil {
			a.incoterms = t
		}
	}
}

// WithDefaultIncoterm sets the fallback code.
func WithDefaultIncoterm(code string) Option {
	return func(a *Assembler) {
		if c := incoterm.Canonical(code); c != "" {
			a.defaultIncoterm = c
		}
	}
}

// WithRoadFactor sets the road inflation applied to leg distances.
func WithRoadFactor(f float64) Option {
	return func(a *Assembler) {
		a.dist = geo.NewDistance(f)
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		a.now = now
	}
}

// New builds an assembler. It fails when the default Incoterm is not in
// the rule table, since every unsupported row falls back to it.
func New(t *refdata.Tables, loc *resolve.LocationResolver, sel *ports.Selector, opts ...Option) (*Assembler, error) {
	if t == nil || loc == nil || sel == nil {
		return nil, eris.New("quote: tables, resolver and selector are required")
	}
	a := &Assembler{
		tables:          t,
		locations:       loc,
		selector:        sel,
		incoterms:       incoterm.Default(),
		defaultIncoterm: DefaultIncoterm,
		dist:            geo.NewDistance(geo.DefaultRoadFactor),
		now:             time.Now,
		log:             zap.L().With(zap.String("component", "quote")),
	}
	for _, o := range opts {
		o(a)
	}
	if _, err := a.incoterms.Lookup(a.defaultIncoterm); err != nil {
		return nil, eris.Wrapf(err, "quote: default incoterm %s", a.defaultIncoterm)
	}
	return a, nil
}

// Incoterms returns the rule table in use.
func (a *Assembler) Incoterms() *incoterm.Table { return a.incoterms }

// rowState carries the per-row intermediate values between stages.
type rowState struct {
	row  model.ShipmentRow
	res  *model.QuoteResult
	plan model.LegPlan
	log  *zap.Logger

	origin resolve.Resolution
	dest   resolve.Resolution

	sel      ports.Selection
	laneRate *float64
	leg1Rate *float64
	leg3Rate *float64
}

// Assemble quotes one row. It never fails: every gap becomes a flag on the
// result and an entry in its trail.
func (a *Assembler) Assemble(ctx context.Context, row model.ShipmentRow) *model.QuoteResult {
	st := &rowState{
		row: row,
		res: &model.QuoteResult{
			Row:        row.Row,
			PartNumber: row.PartNumber,
			QuotedAt:   a.now().UTC(),
		},
	}
	st.res.OriginCC = a.locations.CountryCode(row.Origin)
	st.res.DestCC = a.locations.CountryCode(row.Destination)

	a.resolveIncoterm(st)
	st.log = a.log.With(
		zap.Int("row", row.Row),
		zap.String("incoterm", st.res.Incoterm),
		zap.String("origin_cc", st.res.OriginCC),
		zap.String("dest_cc", st.res.DestCC),
	)

	if st.plan.Flow == model.FlowInland {
		a.inland(ctx, st)
	} else {
		a.overseas(ctx, st)
	}

	a.price(st)
	a.suggest(st)
	return st.res
}

func (a *Assembler) resolveIncoterm(st *rowState) {
	code := incoterm.Canonical(st.row.Incoterm)
	plan, err := a.incoterms.Lookup(code)
	switch {
	case code == "":
		code = a.defaultIncoterm
		plan, _ = a.incoterms.Lookup(code)
		st.res.Note("incoterm empty, using %s", code)
		a.log.Info("incoterm empty, using default",
			zap.Int("row", st.row.Row),
			zap.String("fallback", code),
		)
	case err != nil:
		st.res.Raise(model.FlagUnsupportedIncoterm, "unsupported incoterm '%s', using %s", code, a.defaultIncoterm)
		a.log.Warn("unsupported incoterm",
			zap.Int("row", st.row.Row),
			zap.String("incoterm", code),
			zap.String("fallback", a.defaultIncoterm),
		)
		code = a.defaultIncoterm
		plan, _ = a.incoterms.Lookup(code)
	}
	st.plan = plan
	st.res.Incoterm = code
	st.res.Flow = plan.Flow
	st.res.Legs = plan.Legs
}

// inland prices a single road leg between the two ends.
func (a *Assembler) inland(ctx context.Context, st *rowState) {
	st.origin = a.locations.ResolveLoose(ctx, st.row.Origin)
	st.dest = a.locations.ResolveLoose(ctx, st.row.Destination)
	a.recordEnd(st, "origin", st.origin)
	a.recordEnd(st, "destination", st.dest)
	st.res.Origin = st.origin.Point
	st.res.Destination = st.dest.Point

	leg := &st.res.Leg1
	leg.DistanceKM = a.dist.Road(st.origin.Point, st.dest.Point)
	if leg.DistanceKM != nil {
		st.res.Note("leg1 km (%s->%s)", st.origin.Point.Source, st.dest.Point.Source)
		if st.res.Incoterm == "DAP" {
			st.res.Note("DAP distance origin->destination (%s->%s): %.1f km",
				st.origin.Point.Source, st.dest.Point.Source, *leg.DistanceKM)
		}
	}
	if r, ok := a.tables.Rates.Pair(st.res.OriginCC, st.res.DestCC); ok {
		st.leg1Rate = model.Float(r)
	}
}

// overseas resolves both ends, picks the port pair and measures legs 1
// and 3 through the ports.
func (a *Assembler) overseas(ctx context.Context, st *rowState) {
	res := st.res
	st.origin = a.locations.ResolveStrict(ctx, st.row.Origin)
	st.dest = a.locations.ResolveLoose(ctx, st.row.Destination)
	a.recordEnd(st, "origin", st.origin)
	a.recordEnd(st, "destination", st.dest)
	res.Origin = st.origin.Point
	res.Destination = st.dest.Point

	st.sel = a.selector.Select(ports.Request{
		OriginCC:   res.OriginCC,
		DestCC:     res.DestCC,
		OriginName: st.row.Origin.CountryName,
		DestName:   st.row.Destination.CountryName,
		Origin:     st.origin.Point.Ptr(),
	})
	res.PortReason = st.sel.Reason
	if !st.sel.Found() {
		a.flag(st, model.FlagNoPortCandidates, "no POL/POD candidates for %s->%s", res.OriginCC, res.DestCC)
	} else {
		res.POL, res.POD = st.sel.POL, st.sel.POD
		res.Note("POL/POD chosen by %s: %s->%s", st.sel.Reason, res.POL, res.POD)
		if len(st.sel.Nearest) > 0 {
			res.Note("POL candidates top%d[%s]", len(st.sel.Nearest), auditList(st.sel.Nearest))
		}
		res.POLPoint = a.locations.Port(res.OriginCC, res.POL, st.origin.Point.Ptr())
		res.PODPoint = a.locations.Port(res.DestCC, res.POD, st.dest.Point.Ptr())

		lane, ok := a.tables.Lanes.Lookup(res.POL, res.POD)
		if ok {
			st.laneRate = lane.Rate
			res.TransitDays = lane.TransitDays
		}
		if res.TransitDays == nil {
			if tt, ok := a.tables.Transit.Lookup(res.POL, res.POD); ok {
				res.TransitDays = model.Float(tt)
				res.Note("TT from transit-time table")
			}
		}
		if res.TransitDays == nil {
			a.flag(st, model.FlagMissingTransitTime, "missing leg2 TT for %s->%s", res.POL, res.POD)
		}
	}

	res.Leg1.DistanceKM = a.dist.Road(st.origin.Point, res.POLPoint)
	res.Leg3.DistanceKM = a.dist.Road(res.PODPoint, st.dest.Point)
	res.POLDistanceKM = res.Leg1.DistanceKM
	res.PODDistanceKM = res.Leg3.DistanceKM
	if res.Leg1.DistanceKM != nil {
		res.Note("leg1 km (%s->%s) ~ %.0f*%.2f", st.origin.Point.Source, res.POLPoint.Source,
			*res.Leg1.DistanceKM/a.dist.RoadFactor, a.dist.RoadFactor)
	}
	if res.Leg3.DistanceKM != nil {
		res.Note("leg3 km (%s->%s)", res.PODPoint.Source, st.dest.Point.Source)
	}

	if r, ok := a.tables.Rates.Domestic(res.OriginCC); ok {
		st.leg1Rate = model.Float(r)
	}
	if r, ok := a.tables.Rates.Domestic(res.DestCC); ok {
		st.leg3Rate = model.Float(r)
	}
}

// recordEnd copies resolver notes into the trail and flags unresolved or
// centroid-only ends.
func (a *Assembler) recordEnd(st *rowState, side string, r resolve.Resolution) {
	for _, n := range r.Notes {
		st.res.Note("%s %s", side, n)
	}
	switch {
	case !r.Point.OK && len(r.Tried) > 0:
		a.flag(st, model.FlagUnresolvedLocation, "%s unresolved: tried %s", side, strings.Join(r.Tried, ", "))
	case !r.Point.OK:
		a.flag(st, model.FlagUnresolvedLocation, "%s unresolved (no data)", side)
	case r.Point.IsCountryLevel():
		a.flag(st, model.FlagCountryLevel, "%s resolved to the %s centroid only", side, r.CountryCode)
	default:
		st.res.Note("%s resolved by %s", side, r.Point.Source)
	}
}

// price fills rates and costs. Legs outside the plan keep a nil cost; owed
// legs with missing data cost 0 and raise a flag.
func (a *Assembler) price(st *rowState) {
	res := st.res
	overseas := st.plan.Flow == model.FlowOverseas

	for _, l := range []model.Leg{model.LegOriginInland, model.LegMain, model.LegDestInland} {
		leg := res.Leg(l)
		if !st.plan.Includes(l) {
			leg.Rate, leg.CostEUR = nil, nil
			continue
		}
		switch l {
		case model.LegMain:
			leg.Rate = st.laneRate
			if leg.Rate == nil {
				if st.sel.Found() {
					a.flag(st, model.FlagMissingRate, "missing leg2 ocean rate for %s->%s", res.POL, res.POD)
				}
				leg.CostEUR = model.Float(0)
				continue
			}
			leg.CostEUR = model.Float(*leg.Rate)
		default:
			leg.Rate = st.leg1Rate
			cc := res.OriginCC
			if l == model.LegDestInland {
				leg.Rate, cc = st.leg3Rate, res.DestCC
			}
			if !overseas {
				cc = res.OriginCC + "->" + res.DestCC
			}
			if leg.Rate == nil {
				a.flag(st, model.FlagMissingRate, "missing EUR/km for leg%d (%s)", l, cc)
			}
			if leg.DistanceKM == nil {
				a.flag(st, model.FlagMissingDistance, "leg%d distance unavailable", l)
			}
			if leg.Rate == nil || leg.DistanceKM == nil {
				leg.CostEUR = model.Float(0)
				continue
			}
			leg.CostEUR = model.Float(*leg.Rate * *leg.DistanceKM)
		}
	}

	res.TotalCostEUR = 0
	for _, l := range []model.Leg{model.LegOriginInland, model.LegMain, model.LegDestInland} {
		if c := res.Leg(l).CostEUR; c != nil {
			res.TotalCostEUR += *c
		}
	}
}

// suggest appends Incoterm hints for rows the current term cannot price.
func (a *Assembler) suggest(st *rowState) {
	res := st.res
	if st.plan.Flow == model.FlowOverseas && res.OriginCC != "" && res.OriginCC == res.DestCC {
		res.Note("suggestion: DAP (same country, inland traffic)")
	}
	if st.plan.Includes(model.LegMain) && res.Leg2.Rate == nil {
		res.Note("suggestion: review incoterm; FOB if the buyer handles main carriage, CIF if the seller covers it to the destination port")
	}
	if st.plan.Includes(model.LegOriginInland) && res.Leg1.Rate == nil {
		res.Note("suggestion: an incoterm without leg 1 (e.g. FOB)")
	}
	if st.plan.Includes(model.LegDestInland) && res.Leg3.Rate == nil {
		res.Note("suggestion: an incoterm without leg 3 (e.g. CIF)")
	}
}

func (a *Assembler) flag(st *rowState, code model.FlagCode, format string, args ...any) {
	st.res.Raise(code, format, args...)
	st.log.Warn("quote degraded",
		zap.String("flag", string(code)),
		zap.String("detail", fmt.Sprintf(format, args...)),
	)
}

func auditList(cands []ports.Candidate) string {
	parts := make([]string, len(cands))
	for i, c := range cands {
		km := "?"
		if c.DistanceKM != nil {
			km = fmt.Sprintf("%.1f", *c.DistanceKM)
		}
		parts[i] = c.Code + ":" + km + "km"
	}
	return strings.Join(parts, ", ")
}

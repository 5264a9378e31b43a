package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/quote-cli/internal/model"
)

// LegFeatures returns one LineString feature per leg whose two endpoints
// are resolved. Inland flows draw leg 1 from origin to destination.
// Coordinates are (lon, lat).
func LegFeatures(res *model.QuoteResult) []*geojson.Feature {
	var out []*geojson.Feature
	for _, l := range legs {
		from, to, ok := legEnds(res, l)
		if !ok {
			continue
		}
		line := geom.NewLineStringFlat(geom.XY, []float64{from.Lon, from.Lat, to.Lon, to.Lat}).SetSRID(4326)

		q := res.Leg(l)
		props := map[string]any{
			"run_id":      res.RunID,
			"row":         res.Row,
			"pn":          res.PartNumber,
			"incoterm":    res.Incoterm,
			"flow":        string(res.Flow),
			"leg":         int(l),
			"owed":        q.CostEUR != nil,
			"from":        from.Source.String(),
			"to":          to.Source.String(),
			"distance_km": q.DistanceKM,
			"cost_eur":    q.CostEUR,
		}
		if l == model.LegMain {
			props["pol"], props["pod"] = res.POL, res.POD
			props["transit_days"] = res.TransitDays
		}
		out = append(out, &geojson.Feature{
			ID:         fmt.Sprintf("%d-leg%d", res.Row, l),
			Geometry:   line,
			Properties: props,
		})
	}
	return out
}

func legEnds(res *model.QuoteResult, l model.Leg) (model.ResolvedPoint, model.ResolvedPoint, bool) {
	var from, to model.ResolvedPoint
	switch {
	case res.Flow == model.FlowInland && l == model.LegOriginInland:
		from, to = res.Origin, res.Destination
	case res.Flow == model.FlowInland:
		return from, to, false
	case l == model.LegOriginInland:
		from, to = res.Origin, res.POLPoint
	case l == model.LegMain:
		from, to = res.POLPoint, res.PODPoint
	default:
		from, to = res.PODPoint, res.Destination
	}
	return from, to, from.OK && to.OK
}

// WriteGeoJSON writes a FeatureCollection of every leg in the report.
func WriteGeoJSON(w io.Writer, r *Report) error {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, res := range r.Results {
		if res != nil {
			fc.Features = append(fc.Features, LegFeatures(res)...)
		}
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}

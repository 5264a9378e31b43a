package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/resilience"
)

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// GeocodeCity implements Client.
func (n *nominatim) GeocodeCity(ctx context.Context, cc, city string) (*Result, error) {
	city = strings.TrimSpace(city)
	cc = strings.ToUpper(strings.TrimSpace(cc))
	if city == "" {
		return &Result{Source: SourceNominatim}, nil
	}

	call := func(ctx context.Context) (*Result, error) {
		return resilience.Retry(ctx, n.backoff, "nominatim search", func(ctx context.Context) (*Result, error) {
			return n.search(ctx, cc, city)
		})
	}
	if n.breaker != nil {
		return resilience.Call(ctx, n.breaker, call)
	}
	return call(ctx)
}

func (n *nominatim) search(ctx context.Context, cc, city string) (*Result, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	params := url.Values{
		"q":               {city + ", " + cc},
		"format":          {"jsonv2"},
		"limit":           {"1"},
		"addressdetails":  {"0"},
		"accept-language": {"en"},
	}
	if isISO2(cc) {
		params.Set("countrycodes", strings.ToLower(cc))
	}

	reqURL := strings.TrimRight(n.baseURL, "/") + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.WithStatus(eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(places) == 0 {
		zap.L().Debug("nominatim: no match", zap.String("cc", cc), zap.String("city", city))
		return &Result{Source: SourceNominatim}, nil
	}

	p := places[0]
	lat, errLat := strconv.ParseFloat(p.Lat, 64)
	lon, errLon := strconv.ParseFloat(p.Lon, 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, eris.Errorf("geocode: nominatim returned invalid coordinate %q,%q", p.Lat, p.Lon)
	}
	return &Result{
		Latitude:  lat,
		Longitude: lon,
		Source:    SourceNominatim,
		Name:      p.DisplayName,
		Matched:   true,
	}, nil
}

func isISO2(cc string) bool {
	if len(cc) != 2 {
		return false
	}
	for _, r := range cc {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

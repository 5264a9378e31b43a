// Package geocode resolves city names to coordinates through the Nominatim
// (OpenStreetMap) search API. Decorators add per-country gating and a
// persistent result cache.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/quote-cli/internal/resilience"
)

// Client geocodes a city inside a country.
type Client interface {
	// GeocodeCity returns an unmatched Result, not an error, when the
	// service knows no such place.
	GeocodeCity(ctx context.Context, cc, city string) (*Result, error)
}

// Result holds one geocoding answer.
type Result struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Source    string  `json:"source"`
	Name      string  `json:"name,omitempty"`
	Matched   bool    `json:"matched"`
	Cached    bool    `json:"-"`
}

const (
	// SourceNominatim tags results from the public Nominatim API.
	SourceNominatim = "nominatim"

	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "quote-cli/1.0 (nominatim,fallback)"
)

// Option configures the Nominatim client.
type Option func(*nominatim)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *nominatim) {
		n.httpClient = hc
	}
}

// WithBaseURL points the client at another Nominatim instance.
func WithBaseURL(u string) Option {
	return func(n *nominatim) {
		if u != "" {
			n.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header; the public instance rejects
// generic agents.
func WithUserAgent(ua string) Option {
	return func(n *nominatim) {
		if ua != "" {
			n.userAgent = ua
		}
	}
}

// WithMinDelay enforces a minimum delay between requests. The public
// instance allows one request per second.
func WithMinDelay(d time.Duration) Option {
	return func(n *nominatim) {
		if d <= 0 {
			n.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		n.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(n *nominatim) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithBackoff sets the retry policy for transient failures.
func WithBackoff(b resilience.Backoff) Option {
	return func(n *nominatim) {
		n.backoff = b
	}
}

// WithBreaker guards calls with a circuit breaker shared by the batch.
func WithBreaker(b *resilience.Breaker) Option {
	return func(n *nominatim) {
		n.breaker = b
	}
}

type nominatim struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	timeout    time.Duration
	limiter    *rate.Limiter
	backoff    resilience.Backoff
	breaker    *resilience.Breaker
}

// NewClient creates a Nominatim client: one request per second, 10s
// timeout, three attempts.
func NewClient(opts ...Option) Client {
	n := &nominatim{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		timeout:    10 * time.Second,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		backoff:    resilience.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

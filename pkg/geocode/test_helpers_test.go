package geocode

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/quote-cli/internal/resilience"
)

// newTestClient builds a client that talks to srvURL without rate limiting
// and with millisecond retries.
func newTestClient(srvURL string, opts ...Option) *nominatim {
	n := &nominatim{
		httpClient: &http.Client{},
		baseURL:    srvURL,
		userAgent:  "quote-cli-test",
		timeout:    5 * time.Second,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		backoff:    resilience.Backoff{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// newRewriteClient sends requests for targetPrefix to the test server, so
// the default base URL can be exercised.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{Transport: rewriteTransport{to: testServerURL, from: targetPrefix}}
}

type rewriteTransport struct {
	to, from string
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	u := req.URL.String()
	if !strings.HasPrefix(u, t.from) {
		return http.DefaultTransport.RoundTrip(req)
	}
	parsed, err := req.URL.Parse(t.to + strings.TrimPrefix(u, t.from))
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.URL = parsed
	out.Host = parsed.Host
	return http.DefaultTransport.RoundTrip(out)
}

// memCache is an in-memory Cache.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memCache) GetCachedGeocode(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, context.DeadlineExceeded
	}
	return m.data[key], nil
}

func (m *memCache) SetCachedGeocode(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	m.ttls[key] = ttl
	return nil
}

// stubClient counts calls and returns a fixed answer.
type stubClient struct {
	mu     sync.Mutex
	calls  int
	result *Result
	err    error
}

func (s *stubClient) GeocodeCity(_ context.Context, _, _ string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func (s *stubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

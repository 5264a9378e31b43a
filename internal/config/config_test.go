package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/ports"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "FCA", cfg.Quote.DefaultIncoterm)
	assert.InDelta(t, 1.30, cfg.Quote.RoadFactor, 0.001)
	assert.Equal(t, 4, cfg.Quote.Concurrency)
	assert.Empty(t, cfg.Quote.IncotermRules)
	assert.Equal(t, "cn", cfg.Geocode.Online)
	assert.Equal(t, "quote-cli/1.0 (nominatim,fallback)", cfg.Geocode.UserAgent)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.Equal(t, 1000, cfg.Geocode.MinDelayMs)
	assert.Equal(t, 10, cfg.Geocode.TimeoutSecs)
	assert.Equal(t, 720, cfg.Geocode.CacheTTLHours)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "quote.db", cfg.Store.DatabaseURL)
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Equal(t, 8080, cfg.Server.Port)

	prefs := ports.Preferences(cfg.Quote.PortPreferences).Normalize()
	assert.Equal(t, []string{"CNSHA"}, prefs.For("CN", ports.SidePOL))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/quotes
log:
  level: debug
  format: console
quote:
  default_incoterm: FOB
  concurrency: 8
  port_preferences:
    IN:
      POL: [INNSA]
      POD: [INMAA]
geocode:
  online: "cn,in"
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/quotes", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "FOB", cfg.Quote.DefaultIncoterm)
	assert.Equal(t, 8, cfg.Quote.Concurrency)
	assert.Equal(t, "cn,in", cfg.Geocode.Online)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.InDelta(t, 1.30, cfg.Quote.RoadFactor, 0.001)

	prefs := ports.Preferences(cfg.Quote.PortPreferences).Normalize()
	assert.Equal(t, []string{"INNSA"}, prefs.For("IN", ports.SidePOL))
	assert.Equal(t, []string{"INMAA"}, prefs.For("in", ports.SidePOD))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("QUOTE_STORE_DRIVER", "postgres")
	t.Setenv("QUOTE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("QUOTE_SERVER_PORT", "3000")
	t.Setenv("QUOTE_QUOTE_CONCURRENCY", "12")
	t.Setenv("QUOTE_GEOCODE_ONLINE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Quote.Concurrency)
	assert.Equal(t, "0", cfg.Geocode.Online)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("quote: [unclosed"), 0644))

	_, err := Load()
	assert.ErrorContains(t, err, "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Quote.Concurrency = 4
	cfg.Quote.RoadFactor = 1.3
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "quote.db"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Modes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"quote", "aliases", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}

	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_AliasesNeedDatabase(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	assert.NoError(t, cfg.Validate("quote"))
	err := cfg.Validate("aliases")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_Bounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Quote.Concurrency = 0
	err := cfg.Validate("quote")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "quote.concurrency must be between 1 and 64")

	cfg.Quote.Concurrency = 64
	assert.NoError(t, cfg.Validate("quote"))

	cfg.Quote.RoadFactor = 0.9
	err = cfg.Validate("quote")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "road_factor")

	cfg.Quote.RoadFactor = 1.3
	cfg.Store.Driver = "mysql"
	err = cfg.Validate("quote")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")

	cfg.Store.Driver = "postgres"
	cfg.Geocode.TimeoutSecs = -1
	err = cfg.Validate("quote")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "geocode durations")
}

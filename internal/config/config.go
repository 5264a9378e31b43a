package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Quote   QuoteConfig   `yaml:"quote" mapstructure:"quote"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// QuoteConfig configures the quotation engine.
type QuoteConfig struct {
	DefaultIncoterm string  `yaml:"default_incoterm" mapstructure:"default_incoterm"`
	RoadFactor      float64 `yaml:"road_factor" mapstructure:"road_factor"`
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`

	// IncotermRules is an optional YAML file layered over the standard table.
	IncotermRules string `yaml:"incoterm_rules" mapstructure:"incoterm_rules"`

	// PortPreferences maps country -> side (POL/POD) -> preferred port codes.
	PortPreferences map[string]map[string][]string `yaml:"port_preferences" mapstructure:"port_preferences"`

	// PortPreferencesFile is an optional YAML file of the same shape. Its
	// entries replace PortPreferences per country and side.
	PortPreferencesFile string `yaml:"port_preferences_file" mapstructure:"port_preferences_file"`
}

// GeocodeConfig configures the online geocoding fallback.
type GeocodeConfig struct {
	Online        string `yaml:"online" mapstructure:"online"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	MinDelayMs    int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`

	// PostalFile is an optional offline GeoNames postal-code dump (TSV).
	PostalFile string `yaml:"postal_file" mapstructure:"postal_file"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the optional Redis geocode cache.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("QUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("quote.default_incoterm", "FCA")
	v.SetDefault("quote.road_factor", 1.30)
	v.SetDefault("quote.concurrency", 4)
	v.SetDefault("quote.incoterm_rules", "")
	v.SetDefault("quote.port_preferences", map[string]any{
		"CN": map[string]any{"POL": []string{"CNSHA"}},
	})
	v.SetDefault("quote.port_preferences_file", "")
	v.SetDefault("geocode.online", "cn")
	v.SetDefault("geocode.user_agent", "quote-cli/1.0 (nominatim,fallback)")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.min_delay_ms", 1000)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.cache_ttl_hours", 720)
	v.SetDefault("geocode.postal_file", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "quote.db")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("server.port", 8080)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command relies on. mode is "quote",
// "aliases" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "quote":
	case "aliases":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Quote.Concurrency < 1 || c.Quote.Concurrency > 64 {
		errs = append(errs, "quote.concurrency must be between 1 and 64")
	}
	if c.Quote.RoadFactor < 1 {
		errs = append(errs, "quote.road_factor must be >= 1")
	}
	if c.Geocode.MinDelayMs < 0 || c.Geocode.TimeoutSecs < 0 || c.Geocode.CacheTTLHours < 0 {
		errs = append(errs, "geocode durations must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

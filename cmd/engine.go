package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/cache"
	"github.com/sells-group/quote-cli/internal/geo"
	"github.com/sells-group/quote-cli/internal/incoterm"
	"github.com/sells-group/quote-cli/internal/ports"
	"github.com/sells-group/quote-cli/internal/quote"
	"github.com/sells-group/quote-cli/internal/refdata"
	"github.com/sells-group/quote-cli/internal/resilience"
	"github.com/sells-group/quote-cli/internal/resolve"
	"github.com/sells-group/quote-cli/internal/store"
	"github.com/sells-group/quote-cli/pkg/geocode"
)

// engine bundles the reference data and the services built on it.
type engine struct {
	Tables    *refdata.Tables
	Locations *resolve.LocationResolver
	Selector  *ports.Selector
	Assembler *quote.Assembler
	Store     store.Store

	closers []func() error
}

// Close releases the store and cache connections.
func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("engine: close failed", zap.Error(err))
		}
	}
}

type engineOptions struct {
	// DataPath is the reference workbook.
	DataPath string

	// UseStore merges database aliases and enables run recording.
	UseStore bool

	// Online overrides geocode.online when non-empty.
	Online string
}

// initEngine loads the workbook and wires the store, the geocode cache and
// the online geocoder according to cfg.
func initEngine(ctx context.Context, opts engineOptions) (*engine, error) {
	if opts.DataPath == "" {
		return nil, eris.New("reference workbook is required (--data)")
	}
	tables, err := refdata.Load(opts.DataPath)
	if err != nil {
		return nil, err
	}

	e := &engine{}
	if opts.UseStore {
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		e.Store = st
		e.closers = append(e.closers, st.Close)
	}

	var locOpts []resolve.LocationOption
	if cfg.Geocode.PostalFile != "" {
		postal, err := loadPostal(ctx, cfg.Geocode.PostalFile)
		if err != nil {
			e.Close()
			return nil, err
		}
		locOpts = append(locOpts, resolve.WithPostal(postal))
	}

	online := cfg.Geocode.Online
	if opts.Online != "" {
		online = opts.Online
	}
	client, err := e.geocoder(geocode.ParseAllowList(online))
	if err != nil {
		e.Close()
		return nil, err
	}
	if client != nil {
		locOpts = append(locOpts, resolve.WithGeocoder(client))
	}

	if err := e.build(ctx, tables, locOpts...); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// build merges stored aliases into tables and constructs the resolver,
// selector and assembler.
func (e *engine) build(ctx context.Context, tables *refdata.Tables, locOpts ...resolve.LocationOption) error {
	if e.Store != nil {
		aliases, err := e.Store.ListAliases(ctx)
		if err != nil {
			return eris.Wrap(err, "engine: list aliases")
		}
		tables = tables.WithAliases(aliases)
		zap.L().Debug("engine: merged stored aliases", zap.Int("aliases", len(aliases)))
	}

	prefs := ports.Preferences(cfg.Quote.PortPreferences).Normalize()
	if len(prefs) == 0 {
		prefs = ports.DefaultPreferences()
	}
	if cfg.Quote.PortPreferencesFile != "" {
		fromFile, err := ports.LoadPreferences(cfg.Quote.PortPreferencesFile)
		if err != nil {
			return err
		}
		prefs = prefs.Merge(fromFile)
		zap.L().Debug("engine: loaded port preferences",
			zap.String("file", cfg.Quote.PortPreferencesFile),
			zap.Int("countries", len(fromFile)),
		)
	}

	rules := incoterm.Default()
	if cfg.Quote.IncotermRules != "" {
		r, err := incoterm.LoadRules(cfg.Quote.IncotermRules)
		if err != nil {
			return err
		}
		rules = r
	}

	e.Tables = tables
	e.Locations = resolve.NewLocationResolver(tables, tables.BuildIndex(), locOpts...)
	e.Selector = ports.NewSelector(tables, e.Locations,
		ports.WithPreferences(prefs),
		ports.WithRoadFactor(cfg.Quote.RoadFactor),
	)
	a, err := quote.New(tables, e.Locations, e.Selector,
		quote.WithIncoterms(rules),
		quote.WithDefaultIncoterm(cfg.Quote.DefaultIncoterm),
		quote.WithRoadFactor(cfg.Quote.RoadFactor),
	)
	if err != nil {
		return err
	}
	e.Assembler = a
	return nil
}

// geocoder builds the online client: Nominatim behind a result cache
// (Redis when configured, else the store) behind the country allow-list.
// It returns nil when online geocoding is off.
func (e *engine) geocoder(allow geocode.AllowList) (geocode.Client, error) {
	if !allow.Enabled() {
		return nil, nil
	}
	g := cfg.Geocode
	client := geocode.NewClient(
		geocode.WithBaseURL(g.BaseURL),
		geocode.WithUserAgent(g.UserAgent),
		geocode.WithMinDelay(time.Duration(g.MinDelayMs)*time.Millisecond),
		geocode.WithTimeout(time.Duration(g.TimeoutSecs)*time.Second),
		geocode.WithBreaker(resilience.NewBreaker("nominatim", 5, time.Minute)),
	)

	ttl := time.Duration(g.CacheTTLHours) * time.Hour
	switch {
	case cfg.Cache.RedisURL != "":
		rc, err := cache.NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, rc.Close)
		client = geocode.WithCache(client, rc, ttl)
	case e.Store != nil:
		client = geocode.WithCache(client, e.Store, ttl)
	}

	zap.L().Info("engine: online geocoding enabled", zap.String("countries", allow.String()))
	return geocode.Gated(client, allow), nil
}

func loadPostal(ctx context.Context, path string) (*geo.Postal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: open postal file %s", path)
	}
	defer f.Close() //nolint:errcheck

	places, err := geo.ReadPostalTSV(ctx, f)
	if err != nil {
		return nil, err
	}
	return geo.NewPostal(places), nil
}

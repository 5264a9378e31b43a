// Package store persists the database-managed city aliases, cached online
// geocoding answers and quote-run summaries, on SQLite or Postgres.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/normalize"
)

// Store defines the persistence interface of the quotation tool.
type Store interface {
	// City aliases
	ListAliases(ctx context.Context) ([]model.CityAlias, error)
	UpsertAlias(ctx context.Context, alias model.CityAlias) error
	ImportAliases(ctx context.Context, aliases []model.CityAlias) (int, error)
	DeleteAlias(ctx context.Context, countryCode, from string) (bool, error)

	// Online geocoding cache
	GetCachedGeocode(ctx context.Context, key string) ([]byte, error)
	SetCachedGeocode(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeleteExpiredGeocodes(ctx context.Context) (int, error)

	// Quote runs
	RecordRun(ctx context.Context, run model.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("sqlite" or "postgres") and runs its
// migration.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		s, err = NewSQLite(dsn)
	case "postgres", "postgresql", "pgx":
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// aliasKey validates an alias and returns its country and lookup key.
func aliasKey(a model.CityAlias) (cc, key string, err error) {
	cc = strings.ToUpper(strings.TrimSpace(a.CountryCode))
	key = normalize.City(a.From)
	if cc == "" || key == "" || normalize.City(a.To) == "" {
		return "", "", eris.Errorf("store: alias needs country, from and to (got %q %q→%q)", a.CountryCode, a.From, a.To)
	}
	return cc, key, nil
}

// deleteKey validates the country and source spelling of an alias to delete.
func deleteKey(countryCode, from string) (cc, key string, err error) {
	cc = strings.ToUpper(strings.TrimSpace(countryCode))
	key = normalize.City(from)
	if cc == "" || key == "" {
		return "", "", eris.Errorf("store: alias delete needs country and from (got %q %q)", countryCode, from)
	}
	return cc, key, nil
}

const defaultRunLimit = 20

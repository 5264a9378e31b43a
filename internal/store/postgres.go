package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/db"
	"github.com/sells-group/quote-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var aliasUpsertConfig = db.UpsertConfig{
	Table:        "city_aliases",
	Columns:      []string{"country_code", "from_key", "from_city", "to_city", "updated_at"},
	ConflictKeys: []string{"country_code", "from_key"},
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS city_aliases (
	country_code TEXT NOT NULL,
	from_key     TEXT NOT NULL,
	from_city    TEXT NOT NULL,
	to_city      TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (country_code, from_key)
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	cache_key  TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS quote_runs (
	id             TEXT PRIMARY KEY,
	input          TEXT NOT NULL,
	row_count      INTEGER NOT NULL,
	flagged        INTEGER NOT NULL,
	total_cost_eur DOUBLE PRECISION NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_quote_runs_started_at ON quote_runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListAliases(ctx context.Context) ([]model.CityAlias, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT country_code, from_city, to_city FROM city_aliases ORDER BY country_code, from_key`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list aliases")
	}
	defer rows.Close()

	var out []model.CityAlias
	for rows.Next() {
		var a model.CityAlias
		if err := rows.Scan(&a.CountryCode, &a.From, &a.To); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alias")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate aliases")
}

func (s *PostgresStore) UpsertAlias(ctx context.Context, a model.CityAlias) error {
	cc, key, err := aliasKey(a)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO city_aliases (country_code, from_key, from_city, to_city, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (country_code, from_key) DO UPDATE SET
		 from_city = EXCLUDED.from_city, to_city = EXCLUDED.to_city, updated_at = EXCLUDED.updated_at`,
		cc, key, a.From, a.To,
	)
	return eris.Wrap(err, "postgres: upsert alias")
}

// ImportAliases bulk-loads aliases through a temp table and COPY. Duplicate
// keys within one import keep the last occurrence.
func (s *PostgresStore) ImportAliases(ctx context.Context, aliases []model.CityAlias) (int, error) {
	now := time.Now().UTC()
	index := make(map[[2]string]int, len(aliases))
	rows := make([][]any, 0, len(aliases))
	for i, a := range aliases {
		cc, key, err := aliasKey(a)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: import alias %d", i+1)
		}
		row := []any{cc, key, a.From, a.To, now}
		if j, ok := index[[2]string{cc, key}]; ok {
			rows[j] = row
			continue
		}
		index[[2]string{cc, key}] = len(rows)
		rows = append(rows, row)
	}
	n, err := db.BulkUpsert(ctx, s.pool, aliasUpsertConfig, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import aliases")
	}
	return int(n), nil
}

func (s *PostgresStore) DeleteAlias(ctx context.Context, countryCode, from string) (bool, error) {
	cc, key, err := deleteKey(countryCode, from)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM city_aliases WHERE country_code = $1 AND from_key = $2`, cc, key,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: delete alias")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetCachedGeocode(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM geocode_cache WHERE cache_key = $1 AND expires_at > now()`, key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached geocode")
	}
	return data, nil
}

func (s *PostgresStore) SetCachedGeocode(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (cache_key, data, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE SET data = EXCLUDED.data, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		key, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached geocode")
}

func (s *PostgresStore) DeleteExpiredGeocodes(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM geocode_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired geocodes")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run model.RunSummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quote_runs (id, input, row_count, flagged, total_cost_eur, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Input, run.Rows, run.Flagged, run.TotalCostEUR, run.StartedAt, run.FinishedAt,
	)
	return eris.Wrap(err, "postgres: record run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, input, row_count, flagged, total_cost_eur, started_at, finished_at
		 FROM quote_runs ORDER BY started_at DESC, id LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		if err := rows.Scan(&r.ID, &r.Input, &r.Rows, &r.Flagged, &r.TotalCostEUR, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

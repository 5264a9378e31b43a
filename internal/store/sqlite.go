package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/quote-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Timestamps are unix seconds so expiry checks compare integers.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS city_aliases (
	country_code TEXT NOT NULL,
	from_key     TEXT NOT NULL,
	from_city    TEXT NOT NULL,
	to_city      TEXT NOT NULL,
	updated_at   INTEGER NOT NULL,
	PRIMARY KEY (country_code, from_key)
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	cache_key  TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quote_runs (
	id             TEXT PRIMARY KEY,
	input          TEXT NOT NULL,
	row_count      INTEGER NOT NULL,
	flagged        INTEGER NOT NULL,
	total_cost_eur REAL NOT NULL,
	started_at     INTEGER NOT NULL,
	finished_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_quote_runs_started_at ON quote_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListAliases(ctx context.Context) ([]model.CityAlias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT country_code, from_city, to_city FROM city_aliases ORDER BY country_code, from_key`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list aliases")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CityAlias
	for rows.Next() {
		var a model.CityAlias
		if err := rows.Scan(&a.CountryCode, &a.From, &a.To); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alias")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate aliases")
}

const sqliteUpsertAlias = `INSERT INTO city_aliases (country_code, from_key, from_city, to_city, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (country_code, from_key) DO UPDATE SET
	from_city = excluded.from_city,
	to_city = excluded.to_city,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertAlias(ctx context.Context, a model.CityAlias) error {
	cc, key, err := aliasKey(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteUpsertAlias, cc, key, a.From, a.To, s.now().Unix())
	return eris.Wrap(err, "sqlite: upsert alias")
}

// ImportAliases upserts every alias in one transaction. An invalid alias
// aborts the import.
func (s *SQLiteStore) ImportAliases(ctx context.Context, aliases []model.CityAlias) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertAlias)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare import")
	}
	defer stmt.Close() //nolint:errcheck

	now := s.now().Unix()
	for i, a := range aliases {
		cc, key, err := aliasKey(a)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import alias %d", i+1)
		}
		if _, err := stmt.ExecContext(ctx, cc, key, a.From, a.To, now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import alias %d", i+1)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return len(aliases), nil
}

func (s *SQLiteStore) DeleteAlias(ctx context.Context, countryCode, from string) (bool, error) {
	cc, key, err := deleteKey(countryCode, from)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM city_aliases WHERE country_code = ? AND from_key = ?`, cc, key,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: delete alias")
	}
	n, err := res.RowsAffected()
	return n > 0, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetCachedGeocode(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM geocode_cache WHERE cache_key = ? AND expires_at > ?`,
		key, s.now().Unix(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached geocode")
	}
	return data, nil
}

func (s *SQLiteStore) SetCachedGeocode(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (cache_key, data, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, data, now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrap(err, "sqlite: set cached geocode")
}

func (s *SQLiteStore) DeleteExpiredGeocodes(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM geocode_cache WHERE expires_at <= ?`, s.now().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired geocodes")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run model.RunSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quote_runs (id, input, row_count, flagged, total_cost_eur, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Input, run.Rows, run.Flagged, run.TotalCostEUR, run.StartedAt.Unix(), run.FinishedAt.Unix(),
	)
	return eris.Wrap(err, "sqlite: record run")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input, row_count, flagged, total_cost_eur, started_at, finished_at
		 FROM quote_runs ORDER BY started_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Input, &r.Rows, &r.Flagged, &r.TotalCostEUR, &started, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		r.FinishedAt = time.Unix(finished, 0).UTC()
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

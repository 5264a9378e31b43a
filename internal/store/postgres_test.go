package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS city_aliases`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAliases(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT country_code, from_city, to_city FROM city_aliases`).
		WillReturnRows(pgxmock.NewRows([]string{"country_code", "from_city", "to_city"}).
			AddRow("CN", "Suzhou Shi", "Suzhou").
			AddRow("IN", "Mundhwa", "Pune"))

	aliases, err := s.ListAliases(context.Background())
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	assert.Equal(t, model.CityAlias{CountryCode: "IN", From: "Mundhwa", To: "Pune"}, aliases[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertAlias(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO city_aliases .* ON CONFLICT \(country_code, from_key\) DO UPDATE`).
		WithArgs("IN", "MUNDHWA", "mundhwa", "Pune").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertAlias(context.Background(), model.CityAlias{CountryCode: "in", From: "mundhwa", To: "Pune"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportAliases(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_city_aliases"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_city_aliases"}, aliasUpsertConfig.Columns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "city_aliases"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := s.ImportAliases(context.Background(), []model.CityAlias{
		{CountryCode: "IN", From: "Mundhwa", To: "Pune"},
		{CountryCode: "IN", From: "MUNDHWA", To: "Pune City"},
		{CountryCode: "CN", From: "Suzhou Shi", To: "Suzhou"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPostgresStore_ImportAliases_Invalid(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.ImportAliases(context.Background(), []model.CityAlias{{CountryCode: "IN", From: "Mundhwa"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import alias 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteAlias(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM city_aliases`).
		WithArgs("IN", "MUNDHWA").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	ok, err := s.DeleteAlias(context.Background(), "IN", "Mundhwa")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedGeocode_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM geocode_cache`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	data, err := s.GetCachedGeocode(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedGeocode_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM geocode_cache`).
		WithArgs("k").
		WillReturnError(errors.New("conn reset"))

	_, err := s.GetCachedGeocode(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get cached geocode")
}

func TestPostgresStore_SetCachedGeocode_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO geocode_cache .* ON CONFLICT \(cache_key\)`).
		WithArgs("k", []byte("v"), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetCachedGeocode(context.Background(), "k", []byte("v"), time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredGeocodes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM geocode_cache WHERE expires_at <= now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.DeleteExpiredGeocodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPostgresStore_Runs(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	run := model.RunSummary{
		ID:           "run-1",
		Input:        "shipments.xlsx",
		Rows:         5,
		Flagged:      1,
		TotalCostEUR: 900,
		StartedAt:    start,
		FinishedAt:   start.Add(time.Minute),
	}

	mock.ExpectExec(`INSERT INTO quote_runs`).
		WithArgs(run.ID, run.Input, run.Rows, run.Flagged, run.TotalCostEUR, run.StartedAt, run.FinishedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.RecordRun(ctx, run))

	mock.ExpectQuery(`SELECT id, input, row_count, flagged, total_cost_eur, started_at, finished_at`).
		WithArgs(defaultRunLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "input", "row_count", "flagged", "total_cost_eur", "started_at", "finished_at"}).
			AddRow(run.ID, run.Input, run.Rows, run.Flagged, run.TotalCostEUR, run.StartedAt, run.FinishedAt))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run, runs[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}

package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aliasUpsert = UpsertConfig{
	Table:        "city_aliases",
	Columns:      []string{"country_code", "from_key", "from_city", "to_city"},
	ConflictKeys: []string{"country_code", "from_key"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, aliasUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", Columns: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{
		{"IN", "MUNDHWA", "Mundhwa", "Pune"},
		{"CN", "SUZHOU SHI", "Suzhou Shi", "Suzhou"},
	}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_city_aliases"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_city_aliases"}, aliasUpsert.Columns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "city_aliases" .* ON CONFLICT \("country_code", "from_key"\) DO UPDATE SET "from_city" = EXCLUDED."from_city", "to_city" = EXCLUDED."to_city"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := BulkUpsert(context.Background(), mock, aliasUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_city_aliases"}, aliasUpsert.Columns).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, aliasUpsert, [][]any{{"IN", "A", "a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL_DoNothingWhenOnlyKeys(t *testing.T) {
	sql := upsertSQL(UpsertConfig{Table: "t", Columns: []string{"id"}, ConflictKeys: []string{"id"}}, "tmp")
	assert.Equal(t, `INSERT INTO "t" ("id") SELECT "id" FROM "tmp" ON CONFLICT ("id") DO NOTHING`, sql)
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"simple"`, sanitizeTable("simple"))
	assert.Equal(t, `"quote"."city_aliases"`, sanitizeTable("quote.city_aliases"))
}

//go:build !integration

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/store"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.RunSummary{
		{
			ID:           "abc12345-6789-0000-0000-000000000000",
			Input:        "shipments.xlsx",
			Rows:         120,
			Flagged:      7,
			TotalCostEUR: 48210.5,
			StartedAt:    now,
			FinishedAt:   now.Add(2 * time.Second),
		},
		{
			ID:         "def",
			Input:      "api",
			Rows:       1,
			StartedAt:  now.Add(-1 * time.Hour),
			FinishedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "FLAGGED")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "shipments.xlsx")
	assert.Contains(t, output, "48210.50")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "2s")
	assert.Contains(t, output, "def")
}

func TestRunsListCommand(t *testing.T) {
	c := testConfig()
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "runs.db")
	useConfig(t, c)
	ctx := context.Background()

	st, err := store.Open(ctx, "sqlite", c.Store.DatabaseURL)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, st.RecordRun(ctx, model.RunSummary{ID: "run-1", Input: "a.xlsx", Rows: 3, StartedAt: now, FinishedAt: now}))
	require.NoError(t, st.Close())

	runsListCmd.SetContext(ctx)
	assert.NoError(t, runsListCmd.RunE(runsListCmd, nil))
}

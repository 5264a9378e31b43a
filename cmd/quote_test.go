//go:build !integration

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/quote"
)

func TestReadShipments_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	csv := "Part Number (PN),Incoterm,Origin Country code,Origin City,Destination country code,Destination City\n" +
		"PN-1,FCA,IN,Mundhwa,ES,Valencia\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	rows, err := readShipments(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "PN-1", rows[0].PartNumber)
	assert.Equal(t, "Mundhwa", rows[0].Origin.City)
}

func TestReadShipments_RequiresPath(t *testing.T) {
	_, err := readShipments(context.Background(), "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--input")
}

func TestPrintBatch(t *testing.T) {
	start := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	b := &quote.Batch{
		Summary: model.RunSummary{
			ID:           "run-1",
			Rows:         2,
			Flagged:      1,
			TotalCostEUR: 1234.5,
			StartedAt:    start,
			FinishedAt:   start.Add(1500 * time.Millisecond),
		},
		Results: []*model.QuoteResult{
			{Row: 1},
			{Row: 2, Flags: []model.Flag{{Code: model.FlagMissingRate, Message: "no lane rate"}}},
		},
	}

	var buf bytes.Buffer
	printBatch(&buf, b, []string{"out.xlsx", "out.json"})

	out := buf.String()
	assert.Contains(t, out, "Run run-1: 2 rows, 1 flagged, total 1234.50 EUR (1.5s)")
	assert.Contains(t, out, "FLAG")
	assert.Contains(t, out, string(model.FlagMissingRate))
	assert.Contains(t, out, "Wrote out.xlsx")
	assert.Contains(t, out, "Wrote out.json")
}

func TestPrintBatch_NoFlags(t *testing.T) {
	b := &quote.Batch{Summary: model.RunSummary{ID: "run-2", Rows: 1}, Results: []*model.QuoteResult{{Row: 1}}}

	var buf bytes.Buffer
	printBatch(&buf, b, nil)
	assert.NotContains(t, buf.String(), "FLAG")
}

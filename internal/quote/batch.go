package quote

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/quote-cli/internal/model"
)

// DefaultConcurrency is the number of rows quoted in parallel.
const DefaultConcurrency = 4

// Batch is the outcome of quoting a set of rows.
type Batch struct {
	Results []*model.QuoteResult
	Summary model.RunSummary
}

// Run quotes rows concurrently. Results keep the input order and carry
// the run ID. Only cancellation of ctx returns an error.
func (a *Assembler) Run(ctx context.Context, input string, rows []model.ShipmentRow, concurrency int) (*Batch, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	runID := uuid.NewString()
	started := a.now().UTC()
	results := make([]*model.QuoteResult, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := a.Assemble(gctx, row)
			res.RunID = runID
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "quote: batch cancelled")
	}

	b := &Batch{Results: results, Summary: Summarize(runID, input, results)}
	b.Summary.StartedAt = started
	b.Summary.FinishedAt = a.now().UTC()

	a.log.Info("quote: batch complete",
		zap.String("run_id", runID),
		zap.String("input", input),
		zap.Int("rows", b.Summary.Rows),
		zap.Int("flagged", b.Summary.Flagged),
		zap.Float64("total_cost_eur", b.Summary.TotalCostEUR),
		zap.Duration("elapsed", b.Summary.FinishedAt.Sub(started)),
	)
	return b, nil
}

// Summarize totals a result set.
func Summarize(runID, input string, results []*model.QuoteResult) model.RunSummary {
	s := model.RunSummary{ID: runID, Input: input, Rows: len(results)}
	for _, r := range results {
		if r == nil {
			continue
		}
		if len(r.Flags) > 0 {
			s.Flagged++
		}
		s.TotalCostEUR += r.TotalCostEUR
	}
	return s
}

// FlagCount is the number of rows raising a given flag.
type FlagCount struct {
	Code model.FlagCode `json:"code"`
	Rows int            `json:"rows"`
}

// CountFlags counts rows per flag code, most frequent first. A row raising
// the same code twice counts once.
func CountFlags(results []*model.QuoteResult) []FlagCount {
	counts := make(map[model.FlagCode]int)
	for _, r := range results {
		if r == nil {
			continue
		}
		seen := make(map[model.FlagCode]bool, len(r.Flags))
		for _, f := range r.Flags {
			if !seen[f.Code] {
				seen[f.Code] = true
				counts[f.Code]++
			}
		}
	}
	out := make([]FlagCount, 0, len(counts))
	for code, n := range counts {
		out = append(out, FlagCount{Code: code, Rows: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rows != out[j].Rows {
			return out[i].Rows > out[j].Rows
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Elapsed is the wall time of the run.
func (b *Batch) Elapsed() time.Duration {
	return b.Summary.FinishedAt.Sub(b.Summary.StartedAt)
}

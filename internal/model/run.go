package model

import "time"

// RunSummary is the persisted record of one quotation batch.
type RunSummary struct {
	ID           string    `json:"id"`
	Input        string    `json:"input"`
	Rows         int       `json:"rows"`
	Flagged      int       `json:"flagged"`
	TotalCostEUR float64   `json:"total_cost_eur"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

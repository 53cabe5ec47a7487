package ledger

import "time"

// Run is one invocation of the batch pipeline over a manifest.
type Run struct {
	ID         string
	Project    string
	Model      string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Successful int
	Failed     int
	TotalCost  float64
}

// AssetRecord is the persisted outcome of a single asset need.
type AssetRecord struct {
	ID                   string
	RunID                string
	AssetType            string
	Description          string
	FilePath             string
	Prompt               string
	Success              bool
	Error                string
	QualityScore         float64
	RegenerationAttempts int
	Warning              string
	Degraded             bool
	GenerationTimeMs     int64
	Cost                 float64
	CreatedAt            time.Time
}

type CostEntry struct {
	AssetID    string
	RunID      string
	Model      string
	Cost       float64
	ImageCount int
	Timestamp  time.Time
}

type CostSummary struct {
	TotalCost  float64
	ImageCount int
	EntryCount int
}

type ModelCostSummary struct {
	Model      string
	TotalCost  float64
	ImageCount int
}

func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

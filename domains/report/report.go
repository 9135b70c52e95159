package report

import (
	"context"
	"time"
)

// Row is one record read from the hosted grid, keyed by column header.
type Row map[string]string

// Dataset is the cached unit a report works on.
type Dataset struct {
	Fingerprint string    `json:"fingerprint"`
	Headers     []string  `json:"headers"`
	Rows        []Row     `json:"rows"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// RunSummary is persisted after every load so operators can see how the
// optimization layer behaved. ServerID identifies the instance that served
// the run when several share one database.
type RunSummary struct {
	ID             string        `json:"id"`
	ServerID       string        `json:"server_id"`
	SheetID        string        `json:"sheet_id"`
	RowCount       int           `json:"row_count"`
	CacheHit       bool          `json:"cache_hit"`
	Partial        bool          `json:"partial"`
	ProcessedCount int           `json:"processed_count"`
	Strategy       string        `json:"strategy"`
	Duration       time.Duration `json:"duration"`
	CreatedAt      time.Time     `json:"created_at"`
}

// IRunRepository persists run summaries.
type IRunRepository interface {
	Save(ctx context.Context, run *RunSummary) error
	Recent(ctx context.Context, limit int) ([]RunSummary, error)
}

type IReportUsecase interface {
	// LoadDataset returns the full dataset for the configured sheet, served
	// through the optimization layer.
	LoadDataset(ctx context.Context, sheetID string, forceRefresh bool) (*Dataset, error)
	RecentRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

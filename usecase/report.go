package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sheetboard/config"
	"github.com/AzielCF/az-sheetboard/domains/grid"
	domainOptimization "github.com/AzielCF/az-sheetboard/domains/optimization"
	"github.com/AzielCF/az-sheetboard/domains/report"
	pkgError "github.com/AzielCF/az-sheetboard/pkg/error"
)

type reportService struct {
	opt    domainOptimization.IOptimizationUsecase
	source grid.ISource
	runs   report.IRunRepository
}

func NewReportService(opt domainOptimization.IOptimizationUsecase, source grid.ISource, runs report.IRunRepository) report.IReportUsecase {
	return &reportService{opt: opt, source: source, runs: runs}
}

// LoadDataset serves the sheet's rows through the optimization layer. The
// cache key carries the dataset fingerprint, so a changed sheet naturally
// misses and reloads while an unchanged one keeps hitting the same entry.
func (s *reportService) LoadDataset(ctx context.Context, sheetID string, forceRefresh bool) (*report.Dataset, error) {
	start := time.Now()

	if sheetID != s.source.ID() {
		return nil, pkgError.NotFoundError("sheetId: sheet not found.")
	}

	fp := s.opt.Fingerprint(ctx)
	key := fmt.Sprintf("dataset:%s:%s", sheetID, fp)
	if forceRefresh {
		_ = s.opt.InvalidateCache(ctx, key)
	}

	extent, err := s.source.Extent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet extent: %w", err)
	}

	loaderRan := false
	var batchResult domainOptimization.BatchResult

	loader := func(ctx context.Context) (interface{}, error) {
		loaderRan = true
		return s.loadFromSource(ctx, fp, extent, &batchResult)
	}

	value, err := s.opt.Load(ctx, key, loader, domainOptimization.LoadOptions{
		ExpectedItems: extent.Rows,
		OperationID:   "load-sheet:" + sheetID,
	})
	if err != nil {
		return nil, err
	}

	dataset, err := decodeDataset(value)
	if err != nil {
		return nil, err
	}

	status, _ := s.opt.Status(ctx)
	run := &report.RunSummary{
		ID:             uuid.NewString(),
		ServerID:       config.AppServerID,
		SheetID:        sheetID,
		RowCount:       len(dataset.Rows),
		CacheHit:       !loaderRan,
		Partial:        batchResult.Partial,
		ProcessedCount: batchResult.ProcessedCount,
		Strategy:       string(status.Strategy),
		Duration:       time.Since(start),
		CreatedAt:      time.Now().UTC(),
	}
	if s.runs != nil {
		if err := s.runs.Save(ctx, run); err != nil {
			logrus.WithError(err).Warn("[Report] failed to persist run summary")
		}
	}

	return dataset, nil
}

// loadFromSource reads the header row, then pages the data rows through the
// budget-aware scheduler.
func (s *reportService) loadFromSource(ctx context.Context, fingerprint string, extent grid.Extent, batchResult *domainOptimization.BatchResult) (interface{}, error) {
	dataset := &report.Dataset{
		Fingerprint: fingerprint,
		LoadedAt:    time.Now().UTC(),
	}
	if extent.Rows == 0 {
		return dataset, nil
	}

	headerRows, err := s.source.Rows(ctx, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	if len(headerRows) > 0 {
		dataset.Headers = headerRows[0]
	}

	// Items are the data-row indexes; batches are consecutive, so each batch
	// is one ranged read against the source.
	items := make([]interface{}, 0, extent.Rows-1)
	for i := 1; i < extent.Rows; i++ {
		items = append(items, i)
	}

	var rows []report.Row
	result, err := s.opt.RunBatches(ctx, items, 0, func(ctx context.Context, batch []interface{}) (interface{}, error) {
		first := batch[0].(int)
		raw, err := s.source.Rows(ctx, first, len(batch))
		if err != nil {
			return nil, err
		}
		for _, cells := range raw {
			row := make(report.Row, len(dataset.Headers))
			for i, h := range dataset.Headers {
				if i < len(cells) {
					row[h] = cells[i]
				}
			}
			rows = append(rows, row)
		}
		return len(raw), nil
	})
	*batchResult = result
	if err != nil {
		return nil, err
	}

	dataset.Rows = rows
	return dataset, nil
}

// decodeDataset normalizes a value that may have round-tripped through JSON
// in the cache back into a typed dataset.
func decodeDataset(value interface{}) (*report.Dataset, error) {
	if ds, ok := value.(*report.Dataset); ok {
		return ds, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize dataset: %w", err)
	}
	var ds report.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode cached dataset: %w", err)
	}
	return &ds, nil
}

func (s *reportService) RecentRuns(ctx context.Context, limit int) ([]report.RunSummary, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.Recent(ctx, limit)
}

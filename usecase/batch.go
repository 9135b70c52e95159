package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	domainOptimization "github.com/AzielCF/az-sheetboard/domains/optimization"
)

// BatchScheduler drives large collections through a processing function in
// budget-aware batches. It stops launching new batches once the budget is
// exhausted and reports the run as partial.
type BatchScheduler struct {
	budget  *ExecutionBudgetMonitor
	minSize int
	maxSize int
	pause   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewBatchScheduler(budget *ExecutionBudgetMonitor, minSize, maxSize int, pause time.Duration) *BatchScheduler {
	if minSize <= 0 {
		minSize = 10
	}
	if maxSize < minSize {
		maxSize = minSize
	}
	return &BatchScheduler{
		budget:  budget,
		minSize: minSize,
		maxSize: maxSize,
		pause:   pause,
		sleep:   sleepContext,
	}
}

// adaptiveBatchSize sizes batches from the input size and the remaining
// budget: more time and more items mean bigger batches, within bounds.
func (s *BatchScheduler) adaptiveBatchSize(itemCount int, remaining time.Duration) int {
	size := itemCount / 20
	if remaining < time.Minute {
		size /= 2
	} else if remaining > 3*time.Minute {
		size *= 2
	}
	if size < s.minSize {
		size = s.minSize
	}
	if size > s.maxSize {
		size = s.maxSize
	}
	return size
}

// Run processes items in consecutive batches. The budget is checked before
// every batch, never only after. A batch failure is collected and the run
// continues, unless the failure classifies as permanent, which aborts the
// whole run.
func (s *BatchScheduler) Run(ctx context.Context, items []interface{}, batchSize int, fn domainOptimization.BatchFunc) (domainOptimization.BatchResult, error) {
	result := domainOptimization.BatchResult{TotalItems: len(items)}
	if len(items) == 0 {
		return result, nil
	}

	if batchSize <= 0 {
		batchSize = s.adaptiveBatchSize(len(items), s.budget.Status().Remaining)
	}

	for start, idx := 0, 0; start < len(items); start, idx = start+batchSize, idx+1 {
		if err := ctx.Err(); err != nil {
			result.Partial = true
			return result, err
		}

		status := s.budget.Status()
		if !status.ShouldContinue {
			logrus.Warnf("[Batch] stopping early: %.0f%% of budget used, %d/%d items processed",
				status.PercentUsed, result.ProcessedCount, len(items))
			result.Partial = true
			return result, nil
		}

		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		out, err := fn(ctx, items[start:end])
		if err != nil {
			if classifyError(err) == classPermanent {
				result.Partial = result.ProcessedCount < len(items)
				return result, fmt.Errorf("batch %d failed with critical error: %w", idx, err)
			}
			result.Errors = append(result.Errors, domainOptimization.BatchError{
				BatchIndex: idx,
				Message:    err.Error(),
			})
		} else {
			if out != nil {
				result.Results = append(result.Results, out)
			}
			result.ProcessedCount += end - start
		}

		// Pause between batches so consecutive reads do not burst the
		// remote rate limit. No lock is held while sleeping.
		if end < len(items) && s.pause > 0 {
			if serr := s.sleep(ctx, s.pause); serr != nil {
				result.Partial = true
				return result, serr
			}
		}
	}

	return result, nil
}

package usecase

import (
	"sync"
	"time"

	domainOptimization "github.com/AzielCF/az-sheetboard/domains/optimization"
)

// ExecutionBudgetMonitor tracks wall-clock time against the host's hard
// ceiling. One instance per top-level operation, owned exclusively by it.
// The check belongs BEFORE each unit of work: by the time work finishes it
// is too late to decide not to start it.
type ExecutionBudgetMonitor struct {
	mu           sync.Mutex
	startedAt    time.Time
	hardLimit    time.Duration
	safetyMargin time.Duration

	now func() time.Time
}

func NewBudgetMonitor(hardLimit, safetyMargin time.Duration) *ExecutionBudgetMonitor {
	m := &ExecutionBudgetMonitor{
		hardLimit:    hardLimit,
		safetyMargin: safetyMargin,
		now:          time.Now,
	}
	m.startedAt = m.now()
	return m
}

// Start resets the clock. Called at the beginning of each top-level operation.
func (m *ExecutionBudgetMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedAt = m.now()
}

// Status reports elapsed/remaining time and whether new work should start.
func (m *ExecutionBudgetMonitor) Status() domainOptimization.BudgetStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := m.now().Sub(m.startedAt)
	remaining := m.hardLimit - elapsed
	if remaining < 0 {
		remaining = 0
	}
	percent := 0.0
	if m.hardLimit > 0 {
		percent = float64(elapsed) / float64(m.hardLimit) * 100
		if percent > 100 {
			percent = 100
		}
	}
	return domainOptimization.BudgetStatus{
		Elapsed:        elapsed,
		Remaining:      remaining,
		PercentUsed:    percent,
		ShouldContinue: elapsed < m.hardLimit-m.safetyMargin,
	}
}

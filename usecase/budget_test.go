package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBudget(hardLimit, margin time.Duration) (*ExecutionBudgetMonitor, *time.Time) {
	m := NewBudgetMonitor(hardLimit, margin)
	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }
	m.Start()
	return m, &current
}

func TestBudget_FreshStart(t *testing.T) {
	m, _ := newTestBudget(5*time.Minute, 30*time.Second)

	status := m.Status()
	assert.True(t, status.ShouldContinue)
	assert.Equal(t, time.Duration(0), status.Elapsed)
	assert.Equal(t, 5*time.Minute, status.Remaining)
	assert.Equal(t, 0.0, status.PercentUsed)
}

func TestBudget_StopsInsideSafetyMargin(t *testing.T) {
	m, clock := newTestBudget(5*time.Minute, 30*time.Second)

	*clock = clock.Add(4*time.Minute + 29*time.Second)
	assert.True(t, m.Status().ShouldContinue)

	*clock = clock.Add(2 * time.Second)
	status := m.Status()
	assert.False(t, status.ShouldContinue, "work must stop before the margin, not at the hard limit")
	assert.Greater(t, status.Remaining, time.Duration(0), "margin stop happens while time still remains")
}

func TestBudget_PastHardLimit(t *testing.T) {
	m, clock := newTestBudget(5*time.Minute, 30*time.Second)

	*clock = clock.Add(6 * time.Minute)
	status := m.Status()
	assert.False(t, status.ShouldContinue)
	assert.Equal(t, time.Duration(0), status.Remaining)
	assert.Equal(t, 100.0, status.PercentUsed)
}

func TestBudget_StartResetsClock(t *testing.T) {
	m, clock := newTestBudget(5*time.Minute, 30*time.Second)

	*clock = clock.Add(10 * time.Minute)
	assert.False(t, m.Status().ShouldContinue)

	m.Start()
	assert.True(t, m.Status().ShouldContinue)
}

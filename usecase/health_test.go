package usecase

import (
	"context"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-sheetboard/config"
	"github.com/AzielCF/az-sheetboard/domains/health"
	"github.com/AzielCF/az-sheetboard/infrastructure/gridsource"
	"github.com/AzielCF/az-sheetboard/infrastructure/kvstore"
)

func newTestHealthService(t *testing.T, src *gridsource.MemorySource, breakers *BreakerRegistry) health.IHealthUsecase {
	t.Helper()
	origStorages := config.PathStorages
	t.Cleanup(func() { config.PathStorages = origStorages })
	config.PathStorages = t.TempDir()

	return NewHealthService(kvstore.NewMemoryStore(0), src, breakers)
}

func TestHealth_CheckAllHealthy(t *testing.T) {
	svc := newTestHealthService(t, sampleSource(), NewBreakerRegistry(0, 0))
	ctx := context.Background()

	records, err := svc.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2, "backend and grid source, no breakers yet")
	for _, r := range records {
		assert.Equal(t, health.StatusOk, r.Status)
		assert.NotNil(t, r.LastSuccess)
	}
}

func TestHealth_UnreachableSourceReported(t *testing.T) {
	src := sampleSource()
	src.FailExtent = true
	svc := newTestHealthService(t, src, NewBreakerRegistry(0, 0))

	record, err := svc.CheckGridSource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, health.StatusError, record.Status)
	assert.Contains(t, record.LastMessage, "unreachable")
	assert.Nil(t, record.LastSuccess)
}

func TestHealth_OpenBreakerReported(t *testing.T) {
	breakers := NewBreakerRegistry(1, 0)
	breakers.RecordFailure("sheet-read")

	svc := newTestHealthService(t, sampleSource(), breakers)

	records, err := svc.CheckBreakers(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, health.EntityBreaker, records[0].EntityType)
	assert.Equal(t, "sheet-read", records[0].EntityID)
	assert.Equal(t, health.StatusError, records[0].Status)
}

func TestHealth_GetStatusPersistsAcrossChecks(t *testing.T) {
	svc := newTestHealthService(t, sampleSource(), NewBreakerRegistry(0, 0))
	ctx := context.Background()

	_, err := svc.CheckAll(ctx)
	require.NoError(t, err)

	records, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// A repeated check updates the same rows instead of inserting new ones
	_, err = svc.CheckAll(ctx)
	require.NoError(t, err)
	records, err = svc.GetStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestHealth_ReportFailureThenSuccess(t *testing.T) {
	svc := newTestHealthService(t, sampleSource(), NewBreakerRegistry(0, 0))
	ctx := context.Background()

	svc.ReportFailure(ctx, health.EntityGridSource, "sheet-1", "read timed out")
	records, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, health.StatusError, records[0].Status)
	assert.Equal(t, "read timed out", records[0].LastMessage)

	svc.ReportSuccess(ctx, health.EntityGridSource, "sheet-1")
	records, err = svc.GetStatus(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, health.StatusOk, records[0].Status)
	assert.NotNil(t, records[0].LastSuccess)
}

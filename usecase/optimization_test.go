package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainOptimization "github.com/AzielCF/az-sheetboard/domains/optimization"
	"github.com/AzielCF/az-sheetboard/infrastructure/kvstore"
)

func newTestService(backend kvstore.Store) (domainOptimization.IOptimizationUsecase, *TieredCache, *BreakerRegistry) {
	cache := NewTieredCache(backend, 64, 0)
	breakers := NewBreakerRegistry(0, 0)
	svc := NewOptimizationService(backend, sampleSource(), cache, breakers, OptimizationConfig{
		BudgetHardLimit: 5 * time.Minute,
		BudgetMargin:    30 * time.Second,
		BatchMinSize:    10,
		BatchMaxSize:    500,
	})
	// Instant retries and pauses
	svc.(*optimizationService).retry.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	svc.(*optimizationService).batchSleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return svc, cache, breakers
}

func TestSelectStrategy(t *testing.T) {
	assert.Equal(t, domainOptimization.StrategySmall, selectStrategy(0).Name)
	assert.Equal(t, domainOptimization.StrategySmall, selectStrategy(99).Name)
	assert.Equal(t, domainOptimization.StrategyMedium, selectStrategy(100).Name)
	assert.Equal(t, domainOptimization.StrategyMedium, selectStrategy(999).Name)
	assert.Equal(t, domainOptimization.StrategyLarge, selectStrategy(1000).Name)

	small := selectStrategy(50)
	large := selectStrategy(5000)
	assert.Greater(t, small.CacheTTL, large.CacheTTL, "volatile large datasets get shorter TTLs")
	assert.Greater(t, small.BatchSize, large.BatchSize)
	assert.Less(t, small.MaxRetries, large.MaxRetries)
}

func TestOptimization_LoadCachesLoaderResult(t *testing.T) {
	svc, _, _ := newTestService(kvstore.NewMemoryStore(0))
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return "dataset", nil
	}

	v, err := svc.Load(ctx, "k", loader, domainOptimization.LoadOptions{ExpectedItems: 10})
	require.NoError(t, err)
	assert.Equal(t, "dataset", v)

	v, err = svc.Load(ctx, "k", loader, domainOptimization.LoadOptions{ExpectedItems: 10})
	require.NoError(t, err)
	assert.Equal(t, "dataset", v)
	assert.Equal(t, 1, calls)
}

func TestOptimization_LoadRetriesTransientFailures(t *testing.T) {
	svc, _, _ := newTestService(kvstore.NewMemoryStore(0))

	calls := 0
	v, err := svc.Load(context.Background(), "k", func(ctx context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset")
		}
		return "recovered", nil
	}, domainOptimization.LoadOptions{ExpectedItems: 10})

	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, 2, calls)
}

func TestOptimization_OversizedValueFallsToChunkStore(t *testing.T) {
	backend := kvstore.NewMemoryStore(2048)
	svc, cache, _ := newTestService(backend)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(7))
	rows := make([]interface{}, 300)
	for i := range rows {
		rows[i] = fmt.Sprintf("%016x%016x%016x%016x", rng.Uint64(), rng.Uint64(), rng.Uint64(), rng.Uint64())
	}

	calls := 0
	v, err := svc.Load(ctx, "big", func(ctx context.Context) (interface{}, error) {
		calls++
		return rows, nil
	}, domainOptimization.LoadOptions{ExpectedItems: 300})
	require.NoError(t, err)
	assert.Len(t, v.([]interface{}), 300)

	// Wipe L1: the second load must reassemble from the chunk store, not
	// call the loader again.
	cache.Clear(ctx, "")
	v, err = svc.Load(ctx, "big", func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("loader must not run")
	}, domainOptimization.LoadOptions{ExpectedItems: 300})
	require.NoError(t, err)
	assert.Len(t, v.([]interface{}), 300)
	assert.Equal(t, 1, calls)
}

func TestOptimization_InvalidateSpecificKey(t *testing.T) {
	svc, _, _ := newTestService(kvstore.NewMemoryStore(0))
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return "v", nil
	}
	_, err := svc.Load(ctx, "k", loader, domainOptimization.LoadOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateCache(ctx, "k"))

	_, err = svc.Load(ctx, "k", loader, domainOptimization.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "invalidation must force a reload")
}

func TestOptimization_InvalidateAll(t *testing.T) {
	backend := kvstore.NewMemoryStore(0)
	svc, _, _ := newTestService(backend)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("k%d", i)
		_, err := svc.Load(ctx, key, func(ctx context.Context) (interface{}, error) {
			return key, nil
		}, domainOptimization.LoadOptions{})
		require.NoError(t, err)
	}

	require.NoError(t, svc.InvalidateCache(ctx, ""))
	assert.Equal(t, 0, backend.Len())
}

func TestOptimization_StatusReflectsActivity(t *testing.T) {
	svc, _, breakers := newTestService(kvstore.NewMemoryStore(0))
	ctx := context.Background()

	_, err := svc.Load(ctx, "k", func(ctx context.Context) (interface{}, error) {
		return "v", nil
	}, domainOptimization.LoadOptions{ExpectedItems: 500})
	require.NoError(t, err)
	_, err = svc.Load(ctx, "k", nil, domainOptimization.LoadOptions{ExpectedItems: 500})
	require.NoError(t, err)

	breakers.RecordFailure("other-op")

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domainOptimization.StrategyMedium, status.Strategy)
	assert.Equal(t, int64(1), status.CacheHits)
	require.Len(t, status.Breakers, 1)
	assert.True(t, status.Budget.ShouldContinue)
}

func TestOptimization_HealthCheckRecommendsOnOpenBreaker(t *testing.T) {
	svc, _, breakers := newTestService(kvstore.NewMemoryStore(0))

	for i := 0; i < DefaultBreakerThreshold; i++ {
		breakers.RecordFailure("sheet-read")
	}

	status, err := svc.HealthCheck(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, status.Recommendations)
	assert.Contains(t, status.Recommendations[0], "sheet-read")

	// Recommendations are deduplicated across checks
	again, err := svc.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(status.Recommendations), len(again.Recommendations))
}

func TestOptimization_ResetBreaker(t *testing.T) {
	svc, _, breakers := newTestService(kvstore.NewMemoryStore(0))

	for i := 0; i < DefaultBreakerThreshold; i++ {
		breakers.RecordFailure("op")
	}
	require.Error(t, breakers.Allow("op"))

	svc.ResetBreaker(context.Background(), "op")
	assert.NoError(t, breakers.Allow("op"))
}

func TestOptimization_Fingerprint(t *testing.T) {
	svc, _, _ := newTestService(kvstore.NewMemoryStore(0))

	fp := svc.Fingerprint(context.Background())
	assert.Len(t, fp, 32)
	assert.Equal(t, fp, svc.Fingerprint(context.Background()))
}

func TestOptimization_RunBatchesPartialRecommendation(t *testing.T) {
	svc, _, _ := newTestService(kvstore.NewMemoryStore(0))
	inner := svc.(*optimizationService)

	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	inner.budgetNow = func() time.Time { return current }

	result, err := svc.RunBatches(context.Background(), intItems(100), 25, func(ctx context.Context, batch []interface{}) (interface{}, error) {
		current = current.Add(10 * time.Minute)
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, result.Partial)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, status.Recommendations)
	assert.Contains(t, status.Recommendations[0], "batch run stopped")
}

func TestOptimization_BudgetResetsBetweenBatchRuns(t *testing.T) {
	svc, _, _ := newTestService(kvstore.NewMemoryStore(0))
	inner := svc.(*optimizationService)

	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	inner.budgetNow = func() time.Time { return current }

	// First run burns through the whole budget.
	result, err := svc.RunBatches(context.Background(), intItems(100), 25, func(ctx context.Context, batch []interface{}) (interface{}, error) {
		current = current.Add(10 * time.Minute)
		return nil, nil
	})
	require.NoError(t, err)
	require.True(t, result.Partial)

	// The service has now been alive far past the hard limit, but the next
	// run starts with a fresh budget and processes everything.
	calls := 0
	result, err = svc.RunBatches(context.Background(), intItems(100), 25, func(ctx context.Context, batch []interface{}) (interface{}, error) {
		calls++
		return nil, nil
	})
	require.NoError(t, err)
	assert.False(t, result.Partial)
	assert.Equal(t, 100, result.ProcessedCount)
	assert.Equal(t, 4, calls)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Budget.ShouldContinue)
}

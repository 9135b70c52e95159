package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sheetboard/domains/grid"
	domainOptimization "github.com/AzielCF/az-sheetboard/domains/optimization"
	"github.com/AzielCF/az-sheetboard/infrastructure/kvstore"
)

const recommendationHistory = 10

// OptimizationConfig wires the coordinator's knobs. Zero values fall back to
// the defaults from config.
type OptimizationConfig struct {
	MaxChunkBytes   int
	BudgetHardLimit time.Duration
	BudgetMargin    time.Duration
	BatchMinSize    int
	BatchMaxSize    int
	BatchPause      time.Duration
}

// optimizationService is the façade the rest of the application calls. It
// owns the cache, chunk store and breaker registry as explicit instances:
// one registry per process, no hidden globals. Budget monitors are NOT
// shared: every batch run gets its own, so one operation's elapsed time
// never bleeds into the next (or into a concurrent request).
type optimizationService struct {
	cache        *TieredCache
	chunks       *CompressedChunkStore
	retry        *RetryOrchestrator
	breakers     *BreakerRegistry
	fingerprints *FingerprintService
	source       grid.ISource
	cfg          OptimizationConfig

	mu              sync.Mutex
	lastStrategy    domainOptimization.StrategyName
	lastBudget      *domainOptimization.BudgetStatus
	chunkedKeys     map[string]struct{}
	recommendations []string

	// Swappable in tests so batch runs need no real waiting.
	budgetNow  func() time.Time
	batchSleep func(ctx context.Context, d time.Duration) error
}

// NewOptimizationService composes the core. The TieredCache and the breaker
// registry are built by the caller: the cache is shared with the cache admin
// usecase, the registry with the health usecase.
func NewOptimizationService(backend kvstore.Store, source grid.ISource, cache *TieredCache, breakers *BreakerRegistry, cfg OptimizationConfig) domainOptimization.IOptimizationUsecase {
	return &optimizationService{
		cache:        cache,
		chunks:       NewCompressedChunkStore(backend, cfg.MaxChunkBytes),
		retry:        NewRetryOrchestrator(breakers),
		breakers:     breakers,
		fingerprints: NewFingerprintService(),
		source:       source,
		cfg:          cfg,
		chunkedKeys:  make(map[string]struct{}),
	}
}

// newBatchRun builds the per-operation budget monitor and scheduler. The
// monitor's clock starts here, at the beginning of the operation, never at
// process boot.
func (s *optimizationService) newBatchRun() (*ExecutionBudgetMonitor, *BatchScheduler) {
	budget := NewBudgetMonitor(s.cfg.BudgetHardLimit, s.cfg.BudgetMargin)
	if s.budgetNow != nil {
		budget.now = s.budgetNow
	}
	budget.Start()
	scheduler := NewBatchScheduler(budget, s.cfg.BatchMinSize, s.cfg.BatchMaxSize, s.cfg.BatchPause)
	if s.batchSleep != nil {
		scheduler.sleep = s.batchSleep
	}
	return budget, scheduler
}

// selectStrategy picks the size class. Larger datasets get shorter TTLs,
// smaller batches and more retries.
func selectStrategy(expectedItems int) domainOptimization.Strategy {
	switch {
	case expectedItems < 100:
		return domainOptimization.Strategy{
			Name:       domainOptimization.StrategySmall,
			CacheTTL:   time.Hour,
			BatchSize:  100,
			MaxRetries: 2,
		}
	case expectedItems < 1000:
		return domainOptimization.Strategy{
			Name:       domainOptimization.StrategyMedium,
			CacheTTL:   30 * time.Minute,
			BatchSize:  50,
			MaxRetries: 3,
		}
	default:
		return domainOptimization.Strategy{
			Name:       domainOptimization.StrategyLarge,
			CacheTTL:   10 * time.Minute,
			BatchSize:  25,
			MaxRetries: 4,
		}
	}
}

// Load is the single entry point: cache-aside with retry and circuit
// breaking on the miss path. Values too large for a single backend entry
// fall through to the chunk store transparently.
func (s *optimizationService) Load(ctx context.Context, key string, loader domainOptimization.LoaderFunc, opts domainOptimization.LoadOptions) (interface{}, error) {
	strategy := selectStrategy(opts.ExpectedItems)
	s.mu.Lock()
	s.lastStrategy = strategy.Name
	s.mu.Unlock()

	ttl := strategy.CacheTTL
	if opts.TTL > 0 {
		ttl = opts.TTL
	}
	operationID := opts.OperationID
	if operationID == "" {
		operationID = key
	}

	if v, ok := s.cache.Get(ctx, key); ok {
		return v, nil
	}
	if v, ok := s.chunks.Get(ctx, key); ok {
		// Persistent hit bigger than a single entry: keep a fast copy in L1.
		s.cache.SetInMemory(key, v, ttl)
		return v, nil
	}

	policy := DefaultRetryPolicy()
	policy.MaxRetries = strategy.MaxRetries

	value, err := s.retry.ExecuteWithRetry(ctx, operationID, OperationFunc(loader), policy)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	if !s.cache.Set(ctx, key, value, ttl) {
		// L2 rejected the entry (too large or unavailable); chunk it.
		if s.chunks.Put(ctx, key, value, ttl) {
			s.mu.Lock()
			s.chunkedKeys[key] = struct{}{}
			s.mu.Unlock()
		}
	}
	return value, nil
}

// RunBatches exposes the budget-aware scheduler for loaders that process
// large collections. Each call runs against its own freshly started budget.
func (s *optimizationService) RunBatches(ctx context.Context, items []interface{}, batchSize int, fn domainOptimization.BatchFunc) (domainOptimization.BatchResult, error) {
	budget, scheduler := s.newBatchRun()
	result, err := scheduler.Run(ctx, items, batchSize, fn)
	status := budget.Status()
	s.mu.Lock()
	s.lastBudget = &status
	s.mu.Unlock()
	if result.Partial {
		s.recommend(fmt.Sprintf("batch run stopped at %d/%d items, consider splitting the dataset", result.ProcessedCount, result.TotalItems))
	}
	return result, err
}

func (s *optimizationService) Fingerprint(ctx context.Context) string {
	return s.fingerprints.Fingerprint(ctx, s.source)
}

// InvalidateCache drops baseKey from both cache levels and the chunk store.
// An empty baseKey clears everything this process knows about.
func (s *optimizationService) InvalidateCache(ctx context.Context, baseKey string) error {
	if baseKey != "" {
		s.cache.Delete(ctx, baseKey)
		s.chunks.Invalidate(ctx, baseKey)
		s.mu.Lock()
		delete(s.chunkedKeys, baseKey)
		s.mu.Unlock()
		return nil
	}

	s.cache.Clear(ctx, "")
	s.mu.Lock()
	keys := make([]string, 0, len(s.chunkedKeys))
	for k := range s.chunkedKeys {
		keys = append(keys, k)
	}
	s.chunkedKeys = make(map[string]struct{})
	s.mu.Unlock()
	for _, k := range keys {
		s.chunks.Invalidate(ctx, k)
	}
	logrus.Infof("[Optimization] cache invalidated (%d chunked keys)", len(keys))
	return nil
}

func (s *optimizationService) Status(ctx context.Context) (domainOptimization.Status, error) {
	counters := s.cache.Counters()
	hitRate := 0.0
	if total := counters.Hits + counters.Misses; total > 0 {
		hitRate = float64(counters.Hits) / float64(total)
	}

	s.mu.Lock()
	recs := append([]string(nil), s.recommendations...)
	strategy := s.lastStrategy
	budget := domainOptimization.BudgetStatus{
		Remaining:      s.cfg.BudgetHardLimit,
		ShouldContinue: true,
	}
	if s.lastBudget != nil {
		budget = *s.lastBudget
	}
	s.mu.Unlock()

	return domainOptimization.Status{
		Strategy:        strategy,
		Breakers:        s.breakers.Snapshot(),
		CacheHits:       counters.Hits,
		CacheMisses:     counters.Misses,
		CacheHitRate:    hitRate,
		Budget:          budget,
		Recommendations: recs,
	}, nil
}

// HealthCheck is Status plus freshly derived recommendations.
func (s *optimizationService) HealthCheck(ctx context.Context) (domainOptimization.Status, error) {
	status, _ := s.Status(ctx)

	for _, b := range status.Breakers {
		if b.State == domainOptimization.BreakerOpen {
			s.recommend(fmt.Sprintf("circuit %q is open, remote calls are failing", b.OperationID))
		}
	}
	if total := status.CacheHits + status.CacheMisses; total >= 20 && status.CacheHitRate < 0.5 {
		s.recommend("cache hit rate below 50%, consider longer TTLs or fewer distinct keys")
	}
	if status.Budget.PercentUsed > 80 {
		s.recommend("execution budget above 80%, new batch work will stop soon")
	}

	return s.Status(ctx)
}

func (s *optimizationService) ResetBreaker(ctx context.Context, operationID string) {
	s.breakers.Reset(operationID)
	logrus.Infof("[Optimization] breaker %s reset", operationID)
}

// recommend appends to the bounded recommendation history, dropping dupes.
func (s *optimizationService) recommend(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recommendations {
		if r == msg {
			return
		}
	}
	s.recommendations = append(s.recommendations, msg)
	if len(s.recommendations) > recommendationHistory {
		s.recommendations = s.recommendations[len(s.recommendations)-recommendationHistory:]
	}
}

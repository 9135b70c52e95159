package optimization

import (
	"context"
	"time"
)

// LoaderFunc produces the value for a cache key on a miss. It runs at most
// once per cache-aside call.
type LoaderFunc func(ctx context.Context) (interface{}, error)

// BatchFunc processes one batch of items.
type BatchFunc func(ctx context.Context, batch []interface{}) (interface{}, error)

type StrategyName string

const (
	StrategySmall  StrategyName = "small"
	StrategyMedium StrategyName = "medium"
	StrategyLarge  StrategyName = "large"
)

// Strategy fixes the knobs for one dataset size class. Larger datasets get
// shorter TTLs, smaller batches and more retries.
type Strategy struct {
	Name       StrategyName  `json:"name"`
	CacheTTL   time.Duration `json:"cache_ttl"`
	BatchSize  int           `json:"batch_size"`
	MaxRetries int           `json:"max_retries"`
}

// LoadOptions tune a single Load call.
type LoadOptions struct {
	// ExpectedItems selects the strategy (<100 small, <1000 medium, rest large).
	ExpectedItems int
	// TTL overrides the strategy TTL when > 0.
	TTL time.Duration
	// OperationID keys the circuit breaker. Defaults to the cache key.
	OperationID string
}

// RetryPolicy is immutable per invocation, never shared mutable state.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// JitterRange is the fractional jitter applied to each delay (0.1 = ±10%).
	JitterRange float64
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// QuotaDelay is the fixed wait after a quota-exceeded failure,
	// independent of the backoff schedule.
	QuotaDelay time.Duration
}

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// BreakerSnapshot is the externally visible state of one circuit breaker.
type BreakerSnapshot struct {
	OperationID  string       `json:"operation_id"`
	State        BreakerState `json:"state"`
	FailureCount int          `json:"failure_count"`
	OpenedAt     *time.Time   `json:"opened_at,omitempty"`
}

// BudgetStatus reports how much of the execution budget is left.
type BudgetStatus struct {
	Elapsed        time.Duration `json:"elapsed"`
	Remaining      time.Duration `json:"remaining"`
	PercentUsed    float64       `json:"percent_used"`
	ShouldContinue bool          `json:"should_continue"`
}

// BatchError records a non-critical failure of one batch.
type BatchError struct {
	BatchIndex int    `json:"batch_index"`
	Message    string `json:"message"`
}

// BatchResult accumulates a scheduler run. Partial is true when the budget
// ran out before all items were processed; ProcessedCount says how far we got.
type BatchResult struct {
	Results        []interface{} `json:"results"`
	Errors         []BatchError  `json:"errors"`
	ProcessedCount int           `json:"processed_count"`
	TotalItems     int           `json:"total_items"`
	Partial        bool          `json:"partial"`
}

// Status is the operational snapshot consumed by the health endpoint.
type Status struct {
	Strategy        StrategyName      `json:"last_strategy"`
	Breakers        []BreakerSnapshot `json:"breakers"`
	CacheHits       int64             `json:"cache_hits"`
	CacheMisses     int64             `json:"cache_misses"`
	CacheHitRate    float64           `json:"cache_hit_rate"`
	Budget          BudgetStatus      `json:"budget"`
	Recommendations []string          `json:"recommendations"`
}

type IOptimizationUsecase interface {
	// Load is the single entry point the rest of the application calls:
	// cache-aside read with retry, circuit breaking and budget awareness.
	Load(ctx context.Context, key string, loader LoaderFunc, opts LoadOptions) (interface{}, error)

	// RunBatches drives items through fn in budget-aware batches.
	RunBatches(ctx context.Context, items []interface{}, batchSize int, fn BatchFunc) (BatchResult, error)

	// Fingerprint digests the current shape of a grid source so callers can
	// decide whether a cached bulk result is still valid.
	Fingerprint(ctx context.Context) string

	InvalidateCache(ctx context.Context, baseKey string) error
	Status(ctx context.Context) (Status, error)
	HealthCheck(ctx context.Context) (Status, error)
	ResetBreaker(ctx context.Context, operationID string)
}

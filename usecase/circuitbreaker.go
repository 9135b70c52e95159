package usecase

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	domainOptimization "github.com/AzielCF/az-sheetboard/domains/optimization"
)

const (
	// DefaultBreakerThreshold is the consecutive-failure count that opens a circuit.
	DefaultBreakerThreshold = 5
	// DefaultBreakerCooldown is how long an open circuit rejects calls before
	// letting a probe attempt through.
	DefaultBreakerCooldown = 60 * time.Second
)

// CircuitOpenError is returned without invoking the operation when its
// circuit is open. It satisfies pkg/error.GenericError for the REST surface.
type CircuitOpenError struct {
	OperationID string
	RetryAfter  time.Duration
}

func (e CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for operation %q, retry after %s", e.OperationID, e.RetryAfter.Round(time.Second))
}

func (e CircuitOpenError) ErrCode() string { return "CIRCUIT_OPEN" }

func (e CircuitOpenError) StatusCode() int { return http.StatusServiceUnavailable }

type breaker struct {
	state        domainOptimization.BreakerState
	failureCount int
	openedAt     time.Time
}

// BreakerRegistry tracks one circuit breaker per operation ID so independent
// remote operations fail independently. Breakers are created lazily on first
// failure and live for the registry's lifetime.
type BreakerRegistry struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	breakers  map[string]*breaker

	now func() time.Time
}

func NewBreakerRegistry(threshold int, cooldown time.Duration) *BreakerRegistry {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &BreakerRegistry{
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*breaker),
		now:       time.Now,
	}
}

// Allow reports whether a call for operationID may proceed. An open breaker
// whose cooldown elapsed transitions to half-open and lets one probe through.
func (r *BreakerRegistry) Allow(operationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[operationID]
	if !ok || b.state == domainOptimization.BreakerClosed {
		return nil
	}

	if b.state == domainOptimization.BreakerOpen {
		elapsed := r.now().Sub(b.openedAt)
		if elapsed < r.cooldown {
			return CircuitOpenError{OperationID: operationID, RetryAfter: r.cooldown - elapsed}
		}
		b.state = domainOptimization.BreakerHalfOpen
		logrus.Infof("[Breaker] %s cooldown elapsed, half-open probe allowed", operationID)
	}
	// half-open: the probe attempt is allowed
	return nil
}

// RecordSuccess closes a half-open breaker and clears the failure count.
func (r *BreakerRegistry) RecordSuccess(operationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[operationID]
	if !ok {
		return
	}
	if b.state != domainOptimization.BreakerClosed {
		logrus.Infof("[Breaker] %s closed after successful probe", operationID)
	}
	b.state = domainOptimization.BreakerClosed
	b.failureCount = 0
	b.openedAt = time.Time{}
}

// RecordFailure counts a failure, opening the breaker at the threshold or
// re-opening a half-open one immediately.
func (r *BreakerRegistry) RecordFailure(operationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[operationID]
	if !ok {
		b = &breaker{state: domainOptimization.BreakerClosed}
		r.breakers[operationID] = b
	}
	b.failureCount++

	switch b.state {
	case domainOptimization.BreakerHalfOpen:
		b.state = domainOptimization.BreakerOpen
		b.openedAt = r.now()
		logrus.Warnf("[Breaker] %s re-opened after failed probe", operationID)
	case domainOptimization.BreakerClosed:
		if b.failureCount >= r.threshold {
			b.state = domainOptimization.BreakerOpen
			b.openedAt = r.now()
			logrus.Warnf("[Breaker] %s opened after %d consecutive failures", operationID, b.failureCount)
		}
	}
}

// Reset force-closes one breaker (operational surface).
func (r *BreakerRegistry) Reset(operationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, operationID)
}

// Snapshot returns the externally visible state of every breaker.
func (r *BreakerRegistry) Snapshot() []domainOptimization.BreakerSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domainOptimization.BreakerSnapshot, 0, len(r.breakers))
	for id, b := range r.breakers {
		snap := domainOptimization.BreakerSnapshot{
			OperationID:  id,
			State:        b.state,
			FailureCount: b.failureCount,
		}
		if !b.openedAt.IsZero() {
			t := b.openedAt
			snap.OpenedAt = &t
		}
		out = append(out, snap)
	}
	return out
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	domainOptimization "github.com/AzielCF/az-sheetboard/domains/optimization"
)

// OperationFunc is a remote call executed under retry protection.
type OperationFunc func(ctx context.Context) (interface{}, error)

type errorClass int

const (
	classRetryable errorClass = iota
	classPermanent
	classQuota
)

var quotaPatterns = []string{
	"quota exceeded",
	"too many requests",
	"rate limit exceeded",
	"429",
}

var permanentPatterns = []string{
	"permission",
	"unauthorized",
	"forbidden",
	"not found",
	"bad request",
	"invalid argument",
	"401",
	"403",
	"404",
	"400",
}

// classifyError buckets a failure by its message. Anything not recognized as
// quota or permanent is treated as transient (timeouts, 5xx, connection
// resets) and retried.
func classifyError(err error) errorClass {
	if err == nil {
		return classRetryable
	}
	msg := strings.ToLower(err.Error())
	for _, p := range quotaPatterns {
		if strings.Contains(msg, p) {
			return classQuota
		}
	}
	for _, p := range permanentPatterns {
		if strings.Contains(msg, p) {
			return classPermanent
		}
	}
	return classRetryable
}

// DefaultRetryPolicy returns the baseline policy; strategies override
// MaxRetries per dataset size.
func DefaultRetryPolicy() domainOptimization.RetryPolicy {
	return domainOptimization.RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterRange:       0.25,
		Timeout:           30 * time.Second,
		QuotaDelay:        15 * time.Second,
	}
}

// RetryOrchestrator runs operations with per-attempt timeouts, exponential
// backoff with jitter, and a per-operation circuit breaker.
type RetryOrchestrator struct {
	breakers *BreakerRegistry

	// sleep is swappable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryOrchestrator(breakers *BreakerRegistry) *RetryOrchestrator {
	return &RetryOrchestrator{
		breakers: breakers,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExecuteWithRetry runs op up to policy.MaxRetries+1 times.
//
// Failure handling:
//   - circuit open: fail immediately, no attempt made, no quota consumed
//   - permanent: record breaker failure, surface the error unchanged
//   - quota: wait the fixed QuotaDelay (separate from the backoff schedule)
//   - transient: exponential backoff with jitter, capped at MaxDelay
//
// After exhausting attempts the breaker records a failure and the final error
// reports the attempt count and wraps the last underlying failure.
func (o *RetryOrchestrator) ExecuteWithRetry(ctx context.Context, operationID string, op OperationFunc, policy domainOptimization.RetryPolicy) (interface{}, error) {
	if err := o.breakers.Allow(operationID); err != nil {
		return nil, err
	}

	maxAttempts := policy.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = policy.BaseDelay
	schedule.Multiplier = policy.BackoffMultiplier
	schedule.RandomizationFactor = policy.JitterRange
	schedule.MaxInterval = policy.MaxDelay
	schedule.MaxElapsedTime = 0 // attempt count is the only limit
	schedule.Reset()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := o.runAttempt(ctx, op, policy.Timeout)
		if err == nil {
			o.breakers.RecordSuccess(operationID)
			return result, nil
		}
		lastErr = err

		switch classifyError(err) {
		case classPermanent:
			o.breakers.RecordFailure(operationID)
			return nil, err
		case classQuota:
			if attempt < maxAttempts {
				logrus.Warnf("[Retry] %s hit quota on attempt %d, waiting %s", operationID, attempt, policy.QuotaDelay)
				if serr := o.sleep(ctx, policy.QuotaDelay); serr != nil {
					return nil, serr
				}
			}
		default:
			if attempt < maxAttempts {
				delay := schedule.NextBackOff()
				logrus.Debugf("[Retry] %s attempt %d failed (%v), retrying in %s", operationID, attempt, err, delay)
				if serr := o.sleep(ctx, delay); serr != nil {
					return nil, serr
				}
			}
		}
	}

	o.breakers.RecordFailure(operationID)
	return nil, fmt.Errorf("operation %q failed after %d attempts: %w", operationID, maxAttempts, lastErr)
}

var errAttemptTimeout = errors.New("operation attempt timed out")

// runAttempt executes op, treating a timeout as a failure. The in-flight call
// cannot be interrupted; on timeout its goroutine is abandoned and its
// eventual result discarded.
func (o *RetryOrchestrator) runAttempt(ctx context.Context, op OperationFunc, timeout time.Duration) (interface{}, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := op(attemptCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, errAttemptTimeout
		}
		return nil, attemptCtx.Err()
	}
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// StatusError carries an HTTP status from an external call so the retry
// policy can classify it.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// IsTransient reports whether an external-call failure is worth retrying:
// timeouts, other network errors, 429 and 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Policy retries an operation with exponential backoff while the error is
// classified as transient.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Transient   func(error) bool
}

// Do runs op until it succeeds, fails permanently, attempts run out, or the
// context ends. The last error is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	transient := p.Transient
	if transient == nil {
		transient = IsTransient
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil || attempt >= attempts || !transient(err) {
			return err
		}
		select {
		case <-time.After(p.delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := p.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}

	delay := base
	for i := 1; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	// Up to 25% jitter so concurrent callers do not retry in lockstep.
	return delay + time.Duration(rand.Int63n(int64(delay)/4+1))
}

// Breaker stops calls to an unreliable dependency after a threshold of
// consecutive failures. State is scoped to whoever owns the breaker,
// typically one pipeline run.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
}

// NewBreaker builds a breaker tripping after threshold consecutive failures.
// A threshold below 1 disables tripping.
func NewBreaker(threshold int) *Breaker {
	return &Breaker{threshold: threshold}
}

// Allow reports whether the next call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.threshold < 1 || b.failures < b.threshold
}

// Record feeds a call outcome into the breaker. Success resets the
// consecutive-failure count.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
}

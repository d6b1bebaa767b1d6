package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestPolicyRetriesTransient(t *testing.T) {
	t.Parallel()

	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Code: http.StatusServiceUnavailable}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestPolicyStopsOnPermanent(t *testing.T) {
	t.Parallel()

	policy := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	permanent := errors.New("bad request")

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestPolicyExhaustsAttempts(t *testing.T) {
	t.Parallel()

	policy := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return &StatusError{Code: http.StatusTooManyRequests}
	})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &StatusError{Code: 429}, true},
		{"server error", &StatusError{Code: 502}, true},
		{"client error", &StatusError{Code: 400}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("%s: IsTransient = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBreakerTripsAndResets(t *testing.T) {
	t.Parallel()

	b := NewBreaker(3)
	failure := errors.New("backend down")

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("breaker tripped after %d failures, threshold 3", i)
		}
		b.Record(failure)
	}
	if b.Allow() {
		t.Fatal("breaker should be open after 3 consecutive failures")
	}

	b2 := NewBreaker(3)
	b2.Record(failure)
	b2.Record(failure)
	b2.Record(nil)
	b2.Record(failure)
	if !b2.Allow() {
		t.Fatal("success must reset the consecutive-failure count")
	}
}

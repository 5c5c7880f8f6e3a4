package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(recorded *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*recorded = append(*recorded, d)
		return nil
	}
}

func TestReturnsFirstSuccess(t *testing.T) {
	var delays []time.Duration
	calls := 0
	result, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	}, WithSleep(noSleep(&delays)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 1 {
		t.Fatalf("expected single successful call, got result=%q calls=%d", result, calls)
	}
	if len(delays) != 0 {
		t.Fatalf("expected no sleeps, got %d", len(delays))
	}
}

func TestExhaustsAtMostFourAttempts(t *testing.T) {
	var delays []time.Duration
	calls := 0
	sentinel := errors.New("upstream down")
	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, sentinel
	}, WithMaxRetries(3), WithSleep(noSleep(&delays)))

	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected last error propagated unchanged, got %v", err)
	}
	if len(delays) != 3 {
		t.Fatalf("expected 3 sleeps, got %d", len(delays))
	}
}

func TestBackoffDelaysAreExponentialWithBoundedJitter(t *testing.T) {
	var delays []time.Duration
	base := 100 * time.Millisecond
	_, _ = Do(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("fail")
	}, WithMaxRetries(3), WithBaseDelay(base), WithSleep(noSleep(&delays)))

	if len(delays) != 3 {
		t.Fatalf("expected 3 delays, got %d", len(delays))
	}
	for k, d := range delays {
		lower := base * (1 << uint(k))
		upper := lower + 200*time.Millisecond
		if d < lower || d >= upper {
			t.Fatalf("delay before attempt %d = %v, want [%v, %v)", k+1, d, lower, upper)
		}
	}
}

func TestRetryIfStopsOnPermanentErrors(t *testing.T) {
	var delays []time.Duration
	calls := 0
	permanent := errors.New("not found")
	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	}, WithSleep(noSleep(&delays)), WithRetryIf(func(err error) bool { return false }))

	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error unchanged, got %v", err)
	}
}

func TestRecoversAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	calls := 0
	result, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "recovered", nil
	}, WithSleep(noSleep(&delays)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "recovered" || calls != 3 {
		t.Fatalf("expected recovery on third attempt, got result=%q calls=%d", result, calls)
	}
}

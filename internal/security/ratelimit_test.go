package security

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{ChatPerMin: 3, UploadPerMin: 1, AuthPerMin: 2})
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }

	for kind, burst := range map[string]int{BucketChat: 3, BucketUpload: 1, BucketAuth: 2} {
		for i := range burst {
			if err := rl.Allow(kind); err != nil {
				t.Fatalf("%s: Allow #%d = %v", kind, i+1, err)
			}
		}
		err := rl.Allow(kind)
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("%s: Allow over burst = %v, want ErrRateLimited", kind, err)
		}
		var le *LimitError
		if !errors.As(err, &le) || le.Bucket != kind || le.RetryAfter <= 0 {
			t.Errorf("%s: error = %#v", kind, err)
		}
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{ChatPerMin: 2})
	rl.now = func() time.Time { return now }

	_ = rl.Allow(BucketChat)
	_ = rl.Allow(BucketChat)

	var le *LimitError
	if err := rl.Allow(BucketChat); !errors.As(err, &le) {
		t.Fatalf("err = %v, want *LimitError", err)
	}
	// Two per minute refills one token every 30s.
	if le.RetryAfter < 29*time.Second || le.RetryAfter > 31*time.Second {
		t.Errorf("retry after = %v (%ds), want 30s", le.RetryAfter, le.RetryAfterSeconds())
	}

	// A rejected call must not consume the token that is refilling.
	now = now.Add(31 * time.Second)
	if err := rl.Allow(BucketChat); err != nil {
		t.Fatalf("Allow after refill = %v", err)
	}
	if err := rl.Allow(BucketChat); !errors.Is(err, ErrRateLimited) {
		t.Fatal("only one token should have refilled")
	}
}

func TestLimitError_RetryAfterSeconds(t *testing.T) {
	t.Parallel()

	tests := map[time.Duration]int{
		time.Millisecond:        1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		30 * time.Second:        30,
	}
	for d, want := range tests {
		if got := (&LimitError{RetryAfter: d}).RetryAfterSeconds(); got != want {
			t.Errorf("RetryAfterSeconds(%v) = %d, want %d", d, got, want)
		}
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{})
	for kind, want := range map[string]int{BucketChat: 120, BucketUpload: 20, BucketAuth: 300} {
		if got := rl.buckets[kind].Burst(); got != want {
			t.Errorf("%s burst = %d, want %d", kind, got, want)
		}
	}
}

func TestRateLimiter_UnknownKindAndNil(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{})
	for range 1000 {
		if err := rl.Allow("unknown"); err != nil {
			t.Fatalf("unknown kind limited: %v", err)
		}
	}

	var none *RateLimiter
	if err := none.Allow(BucketChat); err != nil {
		t.Errorf("nil limiter = %v", err)
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{ChatPerMin: 50})
	frozen := time.Now()
	rl.now = func() time.Time { return frozen }

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for range 100 {
		wg.Go(func() {
			if rl.Allow(BucketChat) == nil {
				allowed.Add(1)
			}
		})
	}
	wg.Wait()

	if allowed.Load() != 50 {
		t.Errorf("allowed = %d, want 50", allowed.Load())
	}
}

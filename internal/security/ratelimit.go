package security

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate limit buckets.
const (
	BucketChat   = "chat"
	BucketUpload = "upload"
	BucketAuth   = "auth"
)

// RateLimitConfig is the "rate_limit" section of the gateway config. Each
// value is both the sustained rate per minute and the burst size. Zero
// values take defaults.
type RateLimitConfig struct {
	ChatPerMin   int `yaml:"chat_per_min"`
	UploadPerMin int `yaml:"upload_per_min"`
	AuthPerMin   int `yaml:"auth_per_min"`
}

func (c *RateLimitConfig) defaults() {
	if c.ChatPerMin <= 0 {
		c.ChatPerMin = 120
	}
	if c.UploadPerMin <= 0 {
		c.UploadPerMin = 20
	}
	if c.AuthPerMin <= 0 {
		c.AuthPerMin = 300
	}
}

// LimitError is ErrRateLimited with the wait before the next token.
type LimitError struct {
	Bucket     string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s bucket, retry in %s", ErrRateLimited, e.Bucket, e.RetryAfter.Round(time.Second))
}

func (e *LimitError) Unwrap() error { return ErrRateLimited }

// RetryAfterSeconds rounds the wait up to whole seconds, at least 1, for
// the Retry-After header.
func (e *LimitError) RetryAfterSeconds() int {
	return max(1, int(math.Ceil(e.RetryAfter.Seconds())))
}

// RateLimiter holds one token bucket per kind of request. A bucket starts
// full and refills continuously at its per-minute rate.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter with buckets for chat turns,
// document uploads and authentication attempts.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg.defaults()
	perMin := func(n int) *rate.Limiter {
		return rate.NewLimiter(rate.Limit(float64(n)/60), n)
	}
	return &RateLimiter{
		now: time.Now,
		buckets: map[string]*rate.Limiter{
			BucketChat:   perMin(cfg.ChatPerMin),
			BucketUpload: perMin(cfg.UploadPerMin),
			BucketAuth:   perMin(cfg.AuthPerMin),
		},
	}
}

// Allow takes a token from bucket kind or returns a *LimitError. Unknown
// kinds and a nil limiter are not limited.
func (rl *RateLimiter) Allow(kind string) error {
	if rl == nil {
		return nil
	}
	b, ok := rl.buckets[kind]
	if !ok {
		return nil
	}

	// The clock is read under the lock so the limiter sees it in order.
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	r := b.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &LimitError{Bucket: kind, RetryAfter: delay}
	}
	return nil
}

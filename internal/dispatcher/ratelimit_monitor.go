package dispatcher

import (
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

type RateLimitBucket struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RateLimitMonitor tracks Discord rate limit buckets per route and guild from
// response headers.
type RateLimitMonitor struct {
	mu      sync.RWMutex
	buckets map[string]*RateLimitBucket
	now     func() time.Time
}

func NewRateLimitMonitor() *RateLimitMonitor {
	return &RateLimitMonitor{
		buckets: make(map[string]*RateLimitBucket),
		now:     time.Now,
	}
}

func (rlm *RateLimitMonitor) CanExecute(route, guildID string) bool {
	rlm.mu.RLock()
	bucket, exists := rlm.buckets[bucketKey(route, guildID)]
	rlm.mu.RUnlock()

	if !exists || !rlm.now().Before(bucket.ResetAt) {
		return true
	}
	return bucket.Remaining > 0
}

// RetryIn returns how long until the bucket for route resets.
func (rlm *RateLimitMonitor) RetryIn(route, guildID string) time.Duration {
	rlm.mu.RLock()
	defer rlm.mu.RUnlock()

	bucket, exists := rlm.buckets[bucketKey(route, guildID)]
	if !exists {
		return 0
	}
	return max(bucket.ResetAt.Sub(rlm.now()), 0)
}

func (rlm *RateLimitMonitor) UpdateFromFastHTTPResponse(resp *fasthttp.Response, route, guildID string) {
	remaining := string(resp.Header.Peek("X-RateLimit-Remaining"))
	if remaining == "" && resp.StatusCode() != fasthttp.StatusTooManyRequests {
		return
	}

	bucket := &RateLimitBucket{}
	bucket.Remaining, _ = strconv.Atoi(remaining)
	if limit := string(resp.Header.Peek("X-RateLimit-Limit")); limit != "" {
		bucket.Limit, _ = strconv.Atoi(limit)
	}

	switch {
	case len(resp.Header.Peek("X-RateLimit-Reset-After")) > 0:
		after, _ := strconv.ParseFloat(string(resp.Header.Peek("X-RateLimit-Reset-After")), 64)
		bucket.ResetAt = rlm.now().Add(time.Duration(after * float64(time.Second)))
	case len(resp.Header.Peek("X-RateLimit-Reset")) > 0:
		reset, _ := strconv.ParseFloat(string(resp.Header.Peek("X-RateLimit-Reset")), 64)
		bucket.ResetAt = time.UnixMilli(int64(reset * 1000))
	}

	if resp.StatusCode() == fasthttp.StatusTooManyRequests {
		bucket.Remaining = 0
		if ra := string(resp.Header.Peek("Retry-After")); ra != "" {
			after, _ := strconv.ParseFloat(ra, 64)
			if at := rlm.now().Add(time.Duration(after * float64(time.Second))); at.After(bucket.ResetAt) {
				bucket.ResetAt = at
			}
		}
	}

	rlm.mu.Lock()
	rlm.buckets[bucketKey(route, guildID)] = bucket
	rlm.mu.Unlock()
}

func (rlm *RateLimitMonitor) GetBucket(route, guildID string) *RateLimitBucket {
	rlm.mu.RLock()
	defer rlm.mu.RUnlock()

	return rlm.buckets[bucketKey(route, guildID)]
}

func bucketKey(route, guildID string) string {
	return route + ":" + guildID
}

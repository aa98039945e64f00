package httpx

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterIdleTTL is how long an unused bucket is kept once the pool is large.
	limiterIdleTTL = 10 * time.Minute
	// limiterPruneAt is the pool size that triggers dropping idle buckets.
	limiterPruneAt = 1024
)

// NewLimiter returns a token-bucket limiter; a non-positive rate defaults to 10 req/s.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 5
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

type bucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiters hands out one token bucket per (service, token), so every client
// built for the same user and service draws from the same budget.
type Limiters struct {
	perSecond float64
	burst     int

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewLimiters(perSecond float64, burst int) *Limiters {
	return &Limiters{
		perSecond: perSecond,
		burst:     burst,
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

// For returns the shared limiter for service and token.
func (l *Limiters) For(service, token string) *rate.Limiter {
	sum := sha256.Sum256([]byte(service + "\x00" + token))
	key := hex.EncodeToString(sum[:])

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if b, ok := l.buckets[key]; ok {
		b.lastUsed = now
		return b.limiter
	}

	if len(l.buckets) >= limiterPruneAt {
		l.pruneLocked(now)
	}
	b := &bucket{limiter: NewLimiter(l.perSecond, l.burst), lastUsed: now}
	l.buckets[key] = b
	return b.limiter
}

// Len returns the number of live buckets.
func (l *Limiters) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiters) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastUsed) > limiterIdleTTL {
			delete(l.buckets, key)
		}
	}
}

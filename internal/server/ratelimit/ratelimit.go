// Package ratelimit provides per-client request limiting using token
// buckets. Upload and export endpoints get much tighter budgets than
// catalog reads since each accepted request forks a background job.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// bucket is a token bucket refilling at a steady rate.
type bucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
}

func newBucket(capacity int, refillRate float64) *bucket {
	return &bucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: time.Now(),
	}
}

func (b *bucket) allow() (ok bool, remaining int, resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens = min(b.capacity, b.tokens+now.Sub(b.lastRefill).Seconds()*b.refillRate)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		ok = true
	}
	remaining = int(b.tokens)

	if b.tokens < b.capacity {
		resetAt = now.Add(time.Duration((b.capacity - b.tokens) / b.refillRate * float64(time.Second)))
	} else {
		resetAt = now
	}
	return ok, remaining, resetAt
}

// Rule limits one group of endpoints, matched by method and path prefix.
type Rule struct {
	PathPrefix string
	Method     string
	Limit      int
	Window     time.Duration
	Burst      int // bucket capacity; defaults to Limit
}

// Config holds limiter configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Rules           []Rule
}

// DefaultConfig returns the limits used in production. Job-spawning
// endpoints are the expensive tier.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    300,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Rules: []Rule{
			{PathPrefix: "/api/v1/foods/import", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
			{PathPrefix: "/api/v1/servings/import", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
			{PathPrefix: "/api/v1/exports", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
			{PathPrefix: "/api/v1/meals", Method: "POST", Limit: 120, Window: time.Minute, Burst: 20},
		},
	}
}

// Info reports the limit state for response headers.
type Info struct {
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter tracks a bucket per (client, rule) pair and evicts idle
// clients periodically.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	lastAccess map[string]time.Time
	config     *Config
	stopOnce   sync.Once
	stop       chan struct{}
}

func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	l := &Limiter{
		buckets:    make(map[string]*bucket),
		lastAccess: make(map[string]time.Time),
		config:     config,
		stop:       make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanupLoop()
	}
	return l
}

func (c *Config) match(path, method string) (limit int, window time.Duration, burst int, key string) {
	for _, r := range c.Rules {
		if r.Method == method && strings.HasPrefix(path, r.PathPrefix) {
			burst = r.Burst
			if burst == 0 {
				burst = r.Limit
			}
			return r.Limit, r.Window, burst, r.Method + " " + r.PathPrefix
		}
	}
	return c.DefaultLimit, c.DefaultWindow, c.DefaultLimit, "default"
}

// Allow reports whether the client may make this request now.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.config.Enabled || path == "/health" {
		return true, Info{}
	}

	limit, window, burst, ruleKey := l.config.match(path, method)
	key := clientID + "|" + ruleKey

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(burst, float64(limit)/window.Seconds())
		l.buckets[key] = b
	}
	l.lastAccess[key] = time.Now()
	l.mu.Unlock()

	allowed, remaining, resetAt := b.allow()
	info := Info{Limit: limit, Remaining: remaining, ResetTime: resetAt}
	if !allowed {
		info.RetryAfter = time.Until(resetAt)
		if info.RetryAfter < time.Second {
			info.RetryAfter = time.Second
		}
	}
	return allowed, info
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle(2 * l.config.CleanupInterval)
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) evictIdle(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastAccess, key)
		}
	}
}

// Stop halts the background cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

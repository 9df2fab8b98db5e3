package ratelimit

import (
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		Rules: []Rule{
			{PathPrefix: "/api/v1/foods/import", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		},
	}
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	for i := 0; i < 2; i++ {
		ok, _ := l.Allow("1.2.3.4", "/api/v1/foods/import", "POST")
		if !ok {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}

	ok, info := l.Allow("1.2.3.4", "/api/v1/foods/import", "POST")
	if ok {
		t.Fatal("request beyond burst should be denied")
	}
	if info.RetryAfter < time.Second {
		t.Errorf("RetryAfter = %s, want at least 1s", info.RetryAfter)
	}
	if info.Limit != 10 {
		t.Errorf("Limit = %d, want 10", info.Limit)
	}
}

func TestLimiter_ClientsIsolated(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	for i := 0; i < 2; i++ {
		l.Allow("1.2.3.4", "/api/v1/foods/import", "POST")
	}
	if ok, _ := l.Allow("5.6.7.8", "/api/v1/foods/import", "POST"); !ok {
		t.Fatal("a different client must not share the exhausted bucket")
	}
}

func TestLimiter_DefaultRuleForReads(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	ok, info := l.Allow("1.2.3.4", "/api/v1/jobs", "GET")
	if !ok {
		t.Fatal("read should be allowed")
	}
	if info.Limit != 100 {
		t.Errorf("Limit = %d, want default 100", info.Limit)
	}
}

func TestLimiter_HealthBypassed(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLimit = 1
	l := NewLimiter(cfg)
	defer l.Stop()

	for i := 0; i < 10; i++ {
		if ok, _ := l.Allow("1.2.3.4", "/health", "GET"); !ok {
			t.Fatal("health checks must never be limited")
		}
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false})
	defer l.Stop()

	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow("1.2.3.4", "/api/v1/foods/import", "POST"); !ok {
			t.Fatal("disabled limiter must allow everything")
		}
	}
}

func TestLimiter_EvictIdle(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	l.Allow("1.2.3.4", "/api/v1/jobs", "GET")
	l.evictIdle(0)

	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("buckets after eviction = %d, want 0", n)
	}
}

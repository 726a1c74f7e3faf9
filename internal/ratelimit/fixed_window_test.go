package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFixedWindowLimiterRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(mr.Addr(), "", "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	ctx := context.Background()
	if !limiter.Allow(ctx, "ip-1") || !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("first two requests should pass")
	}
	if limiter.Allow(ctx, "ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow(ctx, "ip-2") {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestFixedWindowLimiterNextWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := NewFixedWindowLimiter(client, "", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	now := time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()
	if !limiter.Allow(ctx, "k") || limiter.Allow(ctx, "k") {
		t.Fatalf("expected one request per window")
	}
	now = now.Add(time.Minute)
	if !limiter.Allow(ctx, "k") {
		t.Fatalf("next window should reset the count")
	}
	if limiter.RetryAfter() != 60 {
		t.Fatalf("RetryAfter = %d, want 60", limiter.RetryAfter())
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(mr.Addr(), "", "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	mr.Close()
	if limiter.Allow(context.Background(), "ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresRedis(t *testing.T) {
	if limiter, err := NewRedisFixedWindowLimiter("", "", "test:ratelimit", 1, time.Second); err == nil || limiter != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
	if _, err := NewFixedWindowLimiter(nil, "", 1, time.Second); err == nil {
		t.Fatalf("expected constructor error for nil client")
	}
}

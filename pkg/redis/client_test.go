package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/config"
)

func TestIsNilError(t *testing.T) {
	if !IsNilError(goredis.Nil) {
		t.Error("redis.Nil not recognised")
	}
	if !IsNilError(fmt.Errorf("get: %w", goredis.Nil)) {
		t.Error("wrapped redis.Nil not recognised")
	}
	if IsNilError(errors.New("connection refused")) {
		t.Error("other errors must not count as nil")
	}
}

// skipIfNoRedis connects to TEST_REDIS_ADDR or skips.
func skipIfNoRedis(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("skipping redis test: TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := NewClient(ctx, config.RedisConfig{Addr: addr, PoolSize: 2})
	if err != nil {
		t.Skipf("skipping redis test: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientRoundTrip(t *testing.T) {
	c := skipIfNoRedis(t)
	ctx := context.Background()
	prefix := fmt.Sprintf("sa-test-%d:", time.Now().UnixNano())

	for i := 0; i < 3; i++ {
		if err := c.Set(ctx, fmt.Sprintf("%s%d", prefix, i), "v", time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	got, err := c.Get(ctx, prefix+"0")
	if err != nil || got != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	n, err := c.FlushByPattern(ctx, prefix+"*")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("deleted %d keys, want 3", n)
	}
	if _, err := c.Get(ctx, prefix+"0"); !IsNilError(err) {
		t.Errorf("expected nil error after flush, got %v", err)
	}
}

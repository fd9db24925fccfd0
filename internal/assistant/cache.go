package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "answer:"

// KV is the slice of the Redis client the cache uses.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// CacheKey identifies one cacheable answer. Fingerprint ties the entry to
// the corpus it was computed from, so any write makes older entries
// unreachable.
type CacheKey struct {
	Fingerprint string
	Query       string
	TopK        int
	Composer    string
}

// AnswerCache stores query responses in Redis and collapses concurrent
// computations of the same key.
type AnswerCache struct {
	client  KV
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewAnswerCache(client KV, ttl time.Duration, m *metrics.Metrics) *AnswerCache {
	return &AnswerCache{
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "answer-cache"),
	}
}

func (c *AnswerCache) Get(ctx context.Context, k CacheKey) (*Response, bool) {
	key := c.buildKey(k)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &resp, true
}

func (c *AnswerCache) Set(ctx context.Context, k CacheKey, resp *Response) {
	key := c.buildKey(k)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response for k, or runs compute once for
// all concurrent callers with the same key and caches its result. The bool
// reports a cache hit.
//
// compute runs on a context detached from the caller's cancellation, so a
// caller that gives up returns ctx.Err() without failing the others waiting
// on the same key. Degraded responses are returned but not cached.
func (c *AnswerCache) GetOrCompute(ctx context.Context, k CacheKey, compute func(ctx context.Context) (*Response, error)) (*Response, bool, error) {
	if resp, ok := c.Get(ctx, k); ok {
		return resp, true, nil
	}
	key := c.buildKey(k)
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		resp, err := compute(shared)
		if err != nil {
			return nil, err
		}
		if resp.degraded {
			c.logger.Debug("degraded answer not cached", "key", key)
		} else {
			c.Set(shared, k, resp)
		}
		return resp, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*Response), false, nil
	}
}

// Purge deletes every cached answer.
func (c *AnswerCache) Purge(ctx context.Context) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("purging answer cache: %w", err)
	}
	c.logger.Info("answer cache purged", "keys_deleted", deleted)
	return deleted, nil
}

func (c *AnswerCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *AnswerCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
}

func (c *AnswerCache) buildKey(k CacheKey) string {
	// The query goes in verbatim: composed answers echo it.
	raw := fmt.Sprintf("%s|%s|k=%d|%s", k.Fingerprint, k.Query, k.TopK, k.Composer)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

package escalation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// RuleCache keeps the active rule set per violation type. Edits purge the
// affected type.
type RuleCache interface {
	Get(ctx context.Context, violationType string) ([]*Rule, bool, error)
	Set(ctx context.Context, violationType string, rules []*Rule) error
	Purge(ctx context.Context, violationType string) error
}

// MemRuleCache is a process-local expiring LRU
type MemRuleCache struct {
	data *expirable.LRU[string, []*Rule]
}

// NewMemRuleCache creates a local rule cache
func NewMemRuleCache(capacity int, ttl time.Duration) *MemRuleCache {
	return &MemRuleCache{data: expirable.NewLRU[string, []*Rule](capacity, nil, ttl)}
}

func (c *MemRuleCache) Get(_ context.Context, violationType string) ([]*Rule, bool, error) {
	rules, ok := c.data.Get(violationType)
	return rules, ok, nil
}

func (c *MemRuleCache) Set(_ context.Context, violationType string, rules []*Rule) error {
	c.data.Add(violationType, rules)
	return nil
}

func (c *MemRuleCache) Purge(_ context.Context, violationType string) error {
	c.data.Remove(violationType)
	return nil
}

// RedisRuleCache shares the rule set across instances so an edit on one
// instance invalidates all of them.
type RedisRuleCache struct {
	data *cache.Cache
	ttl  time.Duration
}

// NewRedisRuleCache creates a redis-backed rule cache
func NewRedisRuleCache(client *redis.Client, ttl time.Duration) *RedisRuleCache {
	return &RedisRuleCache{
		data: cache.New(&cache.Options{Redis: client}),
		ttl:  ttl,
	}
}

func ruleCacheKey(violationType string) string {
	return "cache/escalation_rules/" + violationType
}

func (c *RedisRuleCache) Get(ctx context.Context, violationType string) ([]*Rule, bool, error) {
	var raw string
	err := c.data.Get(ctx, ruleCacheKey(violationType), &raw)
	if err == cache.ErrCacheMiss {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rules []*Rule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, false, err
	}
	return rules, true, nil
}

func (c *RedisRuleCache) Set(ctx context.Context, violationType string, rules []*Rule) error {
	raw, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	return c.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   ruleCacheKey(violationType),
		Value: string(raw),
		TTL:   c.ttl,
	})
}

func (c *RedisRuleCache) Purge(ctx context.Context, violationType string) error {
	err := c.data.Delete(ctx, ruleCacheKey(violationType))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}

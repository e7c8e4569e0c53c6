package state

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ReplayGuard records state ids so each one is redeemed at most once.
type ReplayGuard interface {
	// Claim returns false when id was already claimed within ttl.
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

type redisGuard struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisGuard shares claims across relay replicas.
func NewRedisGuard(rdb *redis.Client) ReplayGuard {
	return &redisGuard{rdb: rdb, prefix: "ssorelay:state:"}
}

func (g *redisGuard) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return g.rdb.SetNX(ctx, g.prefix+id, 1, ttl).Result()
}

type memoryGuard struct {
	c *gocache.Cache
}

// NewMemoryGuard only protects a single process.
func NewMemoryGuard() ReplayGuard {
	return &memoryGuard{c: gocache.New(10*time.Minute, time.Minute)}
}

func (g *memoryGuard) Claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	return g.c.Add(id, struct{}{}, ttl) == nil, nil
}

package tenants

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type cachedProvider struct {
	next Provider
	c    *gocache.Cache
}

// Cached wraps next with a read-through TTL cache. Only successful lookups are
// cached, so a tenant added to the store becomes visible on the next request.
// A ttl <= 0 returns next unchanged.
func Cached(next Provider, ttl time.Duration) Provider {
	if ttl <= 0 {
		return next
	}
	return &cachedProvider{next: next, c: gocache.New(ttl, 2*ttl)}
}

func (p *cachedProvider) Resolve(ctx context.Context, tenantID string) (Config, error) {
	if v, ok := p.c.Get(tenantID); ok {
		return v.(Config), nil
	}
	cfg, err := p.next.Resolve(ctx, tenantID)
	if err != nil {
		return Config{}, err
	}
	p.c.SetDefault(tenantID, cfg)
	return cfg, nil
}

package selection

import (
	"context"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/pkg/flight"
)

// NameCache maps ticker -> display name for the lifetime of the process.
// Entries are only ever added. Concurrent misses on one ticker share a
// single gateway lookup.
type NameCache struct {
	store  *gocache.Cache
	flight flight.Group[string]
}

// NewNameCache creates an empty, never-expiring name cache
func NewNameCache() *NameCache {
	return &NameCache{
		store: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get returns a cached name
func (c *NameCache) Get(ticker string) (string, bool) {
	v, ok := c.store.Get(ticker)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Len returns the number of cached names
func (c *NameCache) Len() int {
	return c.store.ItemCount()
}

// Resolve returns the cached name or asks the resolver on a miss.
// Failed lookups are not cached.
func (c *NameCache) Resolve(ctx context.Context, resolver contracts.NameResolver, ticker string) (string, error) {
	if name, ok := c.Get(ticker); ok {
		return name, nil
	}

	return c.flight.Do(ctx, ticker, func(ctx context.Context) (string, error) {
		if name, ok := c.Get(ticker); ok {
			return name, nil
		}

		name, err := resolver.TickerName(ctx, ticker)
		if err != nil {
			return "", err
		}

		c.store.Set(ticker, name, gocache.NoExpiration)
		return name, nil
	})
}

// Bind returns a NameResolver that answers through the cache
func (c *NameCache) Bind(resolver contracts.NameResolver) contracts.NameResolver {
	return boundNames{cache: c, resolver: resolver}
}

type boundNames struct {
	cache    *NameCache
	resolver contracts.NameResolver
}

func (b boundNames) TickerName(ctx context.Context, ticker string) (string, error) {
	return b.cache.Resolve(ctx, b.resolver, ticker)
}

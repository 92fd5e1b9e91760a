package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/rank"
)

const (
	catalogBadges = "badges"
	catalogRanks  = "ranks"
)

// CatalogSource is the authoritative catalog, usually the Postgres store.
type CatalogSource interface {
	badge.Catalog
	rank.Catalog
}

// CatalogCache serves badge and rank definitions from Redis and reloads them
// from the source on a miss. Concurrent misses share one load.
type CatalogCache struct {
	cache  *Cache
	source CatalogSource
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

var (
	_ badge.Catalog = (*CatalogCache)(nil)
	_ rank.Catalog  = (*CatalogCache)(nil)
)

// NewCatalogCache creates a catalog cache in front of source.
func NewCatalogCache(cache *Cache, source CatalogSource, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = TTLCatalog
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogCache{
		cache:  cache,
		source: source,
		ttl:    ttl,
		logger: logger.With("component", "catalog_cache"),
	}
}

// BadgeDefinitions implements badge.Catalog.
func (c *CatalogCache) BadgeDefinitions(ctx context.Context) ([]badge.Definition, error) {
	return cached(ctx, c, catalogBadges, c.source.BadgeDefinitions)
}

// RankDefinitions implements rank.Catalog.
func (c *CatalogCache) RankDefinitions(ctx context.Context) ([]rank.Definition, error) {
	return cached(ctx, c, catalogRanks, c.source.RankDefinitions)
}

// Refresh reloads both catalogs from the source and overwrites the cache.
func (c *CatalogCache) Refresh(ctx context.Context) error {
	badges, err := c.source.BadgeDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("refresh badges: %w", err)
	}
	ranks, err := c.source.RankDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("refresh ranks: %w", err)
	}

	if err := c.cache.SetJSON(ctx, CatalogKey(catalogBadges), badges, c.ttl); err != nil {
		return fmt.Errorf("cache badges: %w", err)
	}
	if err := c.cache.SetJSON(ctx, CatalogKey(catalogRanks), ranks, c.ttl); err != nil {
		return fmt.Errorf("cache ranks: %w", err)
	}

	c.logger.Info("catalog refreshed", "badges", len(badges), "ranks", len(ranks))
	return nil
}

func cached[T any](ctx context.Context, c *CatalogCache, kind string, load func(context.Context) ([]T, error)) ([]T, error) {
	key := CatalogKey(kind)

	var out []T
	err := c.cache.GetJSON(ctx, key, &out)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("catalog cache read failed, using source", "kind", kind, "error", err)
	}

	v, err, shared := c.group.Do(kind, func() (interface{}, error) {
		defs, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.cache.SetJSON(ctx, key, defs, c.ttl); err != nil {
			c.logger.Warn("catalog cache write failed", "kind", kind, "error", err)
		}
		return defs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s catalog: %w", kind, err)
	}
	if shared {
		c.logger.Debug("catalog load shared", "kind", kind)
	}

	defs := v.([]T)
	out = make([]T, len(defs))
	copy(out, defs)
	return out, nil
}

// Package redis implements the engine's Redis components: a lease lock that
// serializes workouts per user across workers, a catalog cache, the
// celebration feed, and the workout-completed intake channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	// MaxRetries is the client's own retry count for network errors.
	MaxRetries int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the local-development defaults.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns "host:port".
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

var (
	// ErrCacheMiss is returned by GetJSON for an absent key.
	ErrCacheMiss = errors.New("redis: key not found")

	// ErrCacheConnection is returned when the initial ping fails.
	ErrCacheConnection = errors.New("redis: connection failed")

	// ErrCacheSerialization wraps JSON encode and decode failures.
	ErrCacheSerialization = errors.New("redis: serialization failed")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// Everything the engine writes lives under "gamification:".
//   gamification:lock:<user>            lease lock
//   gamification:catalog:<kind>         cached badge / rank catalogs
//   gamification:notifications:<user>   celebration feed (list, newest first)
//   gamification:<event type>           outbound pub/sub channel
// ══════════════════════════════════════════════════════════════════════════════

const namespace = "gamification"

// Default TTLs.
const (
	// TTLUserLock bounds how long a crashed worker can hold a user.
	TTLUserLock = 30 * time.Second

	// TTLCatalog is how long a cached catalog is served before reloading.
	TTLCatalog = 10 * time.Minute

	// TTLNotificationFeed expires idle feeds.
	TTLNotificationFeed = 30 * 24 * time.Hour
)

func key(parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}

// LockKey is the lease key for a user.
func LockKey(userID string) string { return key("lock", userID) }

// CatalogKey is the cache key for a catalog kind ("badges", "ranks").
func CatalogKey(kind string) string { return key("catalog", kind) }

// NotificationKey is the celebration feed key for a user.
func NotificationKey(userID string) string { return key("notifications", userID) }

// PubSubChannel is the channel an event type is announced on.
func PubSubChannel(eventType string) string { return key(eventType) }

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache is the shared Redis client with JSON helpers.
type Cache struct {
	client *redis.Client
}

// NewCache connects and pings within cfg.DialTimeout.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheConnection, cfg.Addr(), err)
	}
	return &Cache{client: client}, nil
}

// Client exposes the go-redis client for components that need raw commands.
func (c *Cache) Client() *redis.Client { return c.client }

// Close closes the client.
func (c *Cache) Close() error { return c.client.Close() }

// Ping reports whether Redis answers.
func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// SetJSON stores value encoded as JSON.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes the value at key into dest, or returns ErrCacheMiss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCacheSerialization, key, err)
	}
	return nil
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Publish sends message as JSON on channel. It satisfies the event bus
// fan-out's publisher.
func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Publish(ctx, channel, data).Err()
}

// Subscribe opens a subscription; the caller closes it.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.client.Subscribe(ctx, channels...)
}

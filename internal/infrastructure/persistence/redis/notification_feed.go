package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/powlax/gamification-engine/internal/domain/notification"
	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// NotificationFeed keeps each user's newest notifications in a capped list.
type NotificationFeed struct {
	cache *Cache
	size  int64
	ttl   time.Duration
}

var _ notification.Store = (*NotificationFeed)(nil)

// NewNotificationFeed creates a feed capped at size items per user.
func NewNotificationFeed(cache *Cache, size int) *NotificationFeed {
	if size <= 0 {
		size = 50
	}
	return &NotificationFeed{cache: cache, size: int64(size), ttl: TTLNotificationFeed}
}

// Record pushes n to the head of the user's list and trims the tail.
func (f *NotificationFeed) Record(ctx context.Context, n *notification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	key := NotificationKey(n.UserID.String())
	pipe := f.cache.Client().TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, f.size-1)
	pipe.Expire(ctx, key, f.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// Recent returns up to limit notifications, newest first.
func (f *NotificationFeed) Recent(ctx context.Context, userID shared.UserID, limit int) ([]notification.Notification, error) {
	stop := int64(limit) - 1
	if limit <= 0 || int64(limit) > f.size {
		stop = f.size - 1
	}

	raw, err := f.cache.Client().LRange(ctx, NotificationKey(userID.String()), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read notifications: %w", err)
	}

	out := make([]notification.Notification, 0, len(raw))
	for _, item := range raw {
		var n notification.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		out = append(out, n)
	}
	return out, nil
}

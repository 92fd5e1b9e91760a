package memory

import (
	"context"
	"sync"

	"github.com/powlax/gamification-engine/internal/domain/notification"
	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// DefaultFeedSize is how many notifications a feed keeps per user.
const DefaultFeedSize = 50

// NotificationFeed keeps the newest notifications per user.
type NotificationFeed struct {
	mu    sync.RWMutex
	size  int
	items map[shared.UserID][]notification.Notification
}

var _ notification.Store = (*NotificationFeed)(nil)

// NewNotificationFeed creates a feed capped at size items per user.
func NewNotificationFeed(size int) *NotificationFeed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &NotificationFeed{
		size:  size,
		items: make(map[shared.UserID][]notification.Notification),
	}
}

// Record prepends n and drops the oldest items beyond the cap.
func (f *NotificationFeed) Record(ctx context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := append([]notification.Notification{*n}, f.items[n.UserID]...)
	if len(list) > f.size {
		list = list[:f.size]
	}
	f.items[n.UserID] = list
	return nil
}

// Recent returns up to limit notifications, newest first.
func (f *NotificationFeed) Recent(ctx context.Context, userID shared.UserID, limit int) ([]notification.Notification, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	list := f.items[userID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]notification.Notification, limit)
	copy(out, list[:limit])
	return out, nil
}

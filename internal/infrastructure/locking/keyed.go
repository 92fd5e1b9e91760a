// Package locking serializes work per user. KeyedMutex covers one process;
// Chain stacks it with a distributed lease when several workers share a store.
package locking

import (
	"context"
	"sync"

	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// Locker acquires an exclusive lock for one user.
type Locker interface {
	Lock(ctx context.Context, userID shared.UserID) (unlock func(), err error)
}

type slot struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is a set of per-user mutexes that are created on demand and
// dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[shared.UserID]*slot
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[shared.UserID]*slot)}
}

// Lock blocks until userID's lock is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, userID shared.UserID) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[userID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[userID] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(userID, s)
		return nil, shared.WrapError("lock", "Lock", shared.ErrLockNotAcquired, "gave up waiting for user lock", ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(userID, s)
		})
	}, nil
}

func (k *KeyedMutex) release(userID shared.UserID, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, userID)
	}
}

// Len returns the number of users currently locked or waited on.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

// Chain acquires every locker in order and releases them in reverse.
type Chain []Locker

// Lock implements Locker.
func (c Chain) Lock(ctx context.Context, userID shared.UserID) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, l := range c {
		if l == nil {
			continue
		}
		unlock, err := l.Lock(ctx, userID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}

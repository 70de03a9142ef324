package main

import (
	"log"
	"sync"
	"time"
)

// NotificationCache suppresses repeat alerts for the same token within the
// TTL. It survives restarts by restoring recent notifications from the
// signal log.
type NotificationCache struct {
	mu    sync.RWMutex
	store map[string]time.Time
	ttl   time.Duration
}

func NewNotificationCache(ttl time.Duration) *NotificationCache {
	return &NotificationCache{store: make(map[string]time.Time), ttl: ttl}
}

// Restore seeds the cache from the signal log's notified rows that are still
// inside the TTL. Failures only cost duplicate alerts, so they are logged
// and ignored.
func (c *NotificationCache) Restore(t *Tracker) {
	recent, err := t.RecentNotified(c.ttl)
	if err != nil {
		log.Printf("[cache] キャッシュ復元失敗（無視して続行）: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for token, at := range recent {
		if prev, ok := c.store[token]; !ok || prev.Before(at) {
			c.store[token] = at
		}
	}
	if len(recent) > 0 {
		log.Printf("[cache] 起動時に %d件の通知キャッシュを復元しました", len(recent))
	}
}

// IsRecent reports whether the token was notified within the TTL.
func (c *NotificationCache) IsRecent(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	at, ok := c.store[token]
	return ok && time.Since(at) < c.ttl
}

// Mark records a notification for the token at the current time.
func (c *NotificationCache) Mark(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[token] = time.Now()
}

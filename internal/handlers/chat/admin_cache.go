package handlers

import (
	"context"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

type adminCacheEntry struct {
	fetchedAt time.Time
	admins    []api.ChatMember
}

// AdminCache memoizes chat administrator lists per chat. Entries are
// served while fresh and refetched once the freshness window passes. The
// lock guards only this cache.
type AdminCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]adminCacheEntry
}

func NewAdminCache(ttl time.Duration) *AdminCache {
	return &AdminCache{
		ttl:     ttl,
		now:     time.Now,
		entries: map[int64]adminCacheEntry{},
	}
}

// Get returns the ordered administrator list for a chat, calling fetch
// only when there is no fresh entry. A failed fetch leaves any stale
// entry untouched and returns the error.
func (c *AdminCache) Get(ctx context.Context, chatID int64, fetch func(ctx context.Context, chatID int64) ([]api.ChatMember, error)) ([]api.ChatMember, error) {
	c.mu.RLock()
	entry, ok := c.entries[chatID]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.admins, nil
	}

	admins, err := fetch(ctx, chatID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[chatID] = adminCacheEntry{fetchedAt: c.now(), admins: admins}
	c.mu.Unlock()
	return admins, nil
}

// Invalidate drops a chat's entry, forcing the next Get to refetch.
func (c *AdminCache) Invalidate(chatID int64) {
	c.mu.Lock()
	delete(c.entries, chatID)
	c.mu.Unlock()
}

// isAdmin is a pure membership predicate over a fetched admin list.
func isAdmin(admins []api.ChatMember, userID int64) bool {
	for _, admin := range admins {
		if admin.User != nil && admin.User.ID == userID {
			return true
		}
	}
	return false
}

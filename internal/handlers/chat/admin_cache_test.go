package handlers

import (
	"context"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
)

func TestAdminCacheServesFreshEntriesWithoutRefetch(t *testing.T) {
	t.Parallel()

	cache := NewAdminCache(360 * time.Second)
	fetches := 0
	fetch := func(context.Context, int64) ([]api.ChatMember, error) {
		fetches++
		return []api.ChatMember{{User: &api.User{ID: 555}}}, nil
	}

	for i := 0; i < 3; i++ {
		admins, err := cache.Get(context.Background(), -100, fetch)
		if err != nil {
			t.Fatalf("get admins: %v", err)
		}
		if !isAdmin(admins, 555) {
			t.Fatalf("expected 555 to be an admin")
		}
	}
	if fetches != 1 {
		t.Fatalf("expected a single fetch for a fresh entry, got %d", fetches)
	}
}

func TestAdminCacheRefetchesAfterTTL(t *testing.T) {
	t.Parallel()

	cache := NewAdminCache(360 * time.Second)
	now := time.Now()
	cache.now = func() time.Time { return now }

	fetches := 0
	fetch := func(context.Context, int64) ([]api.ChatMember, error) {
		fetches++
		return nil, nil
	}

	if _, err := cache.Get(context.Background(), -100, fetch); err != nil {
		t.Fatalf("get admins: %v", err)
	}
	now = now.Add(361 * time.Second)
	if _, err := cache.Get(context.Background(), -100, fetch); err != nil {
		t.Fatalf("get admins after ttl: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected a refetch after the ttl, got %d fetches", fetches)
	}
}

func TestAdminCacheKeepsStaleEntryOnFailedFetch(t *testing.T) {
	t.Parallel()

	cache := NewAdminCache(time.Second)
	now := time.Now()
	cache.now = func() time.Time { return now }

	good := func(context.Context, int64) ([]api.ChatMember, error) {
		return []api.ChatMember{{User: &api.User{ID: 555}}}, nil
	}
	bad := func(context.Context, int64) ([]api.ChatMember, error) {
		return nil, errors.New("telegram is down")
	}

	if _, err := cache.Get(context.Background(), -100, good); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := cache.Get(context.Background(), -100, bad); err == nil {
		t.Fatalf("expected the fetch error to propagate")
	}

	// the stale entry survives and serves again once the fetch recovers
	if admins, err := cache.Get(context.Background(), -100, good); err != nil || !isAdmin(admins, 555) {
		t.Fatalf("expected recovery, got %v %v", admins, err)
	}
}

func TestAdminCacheInvalidateForcesRefetch(t *testing.T) {
	t.Parallel()

	cache := NewAdminCache(time.Hour)
	fetches := 0
	fetch := func(context.Context, int64) ([]api.ChatMember, error) {
		fetches++
		return nil, nil
	}

	if _, err := cache.Get(context.Background(), -100, fetch); err != nil {
		t.Fatalf("get admins: %v", err)
	}
	cache.Invalidate(-100)
	if _, err := cache.Get(context.Background(), -100, fetch); err != nil {
		t.Fatalf("get admins after invalidate: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected a refetch after invalidation, got %d", fetches)
	}
}

func TestIsAdminIgnoresMembersWithoutUser(t *testing.T) {
	t.Parallel()

	admins := []api.ChatMember{{}, {User: &api.User{ID: 555}}}
	if !isAdmin(admins, 555) {
		t.Fatalf("expected 555 to be an admin")
	}
	if isAdmin(admins, 777) {
		t.Fatalf("777 is not an admin")
	}
	if isAdmin(nil, 555) {
		t.Fatalf("empty lists have no admins")
	}
}

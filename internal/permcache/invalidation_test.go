package permcache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestRoleScopedInvalidationDropsRoleKeys(t *testing.T) {
	client := newTestRedis(t)
	store := NewStore(DefaultTTL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ListenForInvalidation(ctx, client, store, nil))
	// Give the subscriber a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	store.Set(RolePermissionsKey("ADMIN"), "a")
	store.Set(RolePermissionsKey("COORDINATOR"), "c")

	require.NoError(t, PublishInvalidation(ctx, client, "ADMIN"))

	waitUntil(t, func() bool {
		_, ok := store.Get(RolePermissionsKey("ADMIN"))
		return !ok
	})
	_, ok := store.Get(RolePermissionsKey("COORDINATOR"))
	require.True(t, ok, "other roles' entries must survive")
}

func TestGlobalInvalidationClearsEverything(t *testing.T) {
	client := newTestRedis(t)
	store := NewStore(DefaultTTL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ListenForInvalidation(ctx, client, store, nil))
	time.Sleep(50 * time.Millisecond)

	store.Set(RolePermissionsKey("ADMIN"), "a")
	store.Set("perm:statistics", "s")

	require.NoError(t, PublishInvalidation(ctx, client, GlobalScope))

	waitUntil(t, func() bool { return store.Counts().Total == 0 })
}

func TestSweepTriggerReclaimsExpiredEntries(t *testing.T) {
	client := newTestRedis(t)
	clock := newFakeClock()
	store := NewStore(DefaultTTL, clock.Now)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ListenForSweep(ctx, client, store, nil))
	time.Sleep(50 * time.Millisecond)

	store.Set("old", 1)
	clock.Advance(6 * time.Minute)
	store.Set("fresh", 2)

	require.NoError(t, PublishSweep(ctx, client))

	waitUntil(t, func() bool { return store.Counts().Total == 1 })
	_, ok := store.Get("fresh")
	require.True(t, ok)
}

func TestPublishInvalidationNilClient(t *testing.T) {
	require.NoError(t, PublishInvalidation(context.Background(), nil, "ADMIN"))
}

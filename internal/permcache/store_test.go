package permcache

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for deterministic expiry tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestGetMissOnAbsentKey(t *testing.T) {
	store := NewStore(DefaultTTL, nil)
	_, ok := store.Get("nothing")
	require.False(t, ok)
}

func TestGetReturnsValueWithinTTL(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTL, clock.Now)

	store.Set("k", "v")
	clock.Advance(4*time.Minute + 59*time.Second)

	got, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestGetMissAtAndPastTTL(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTL, clock.Now)

	store.Set("k", "v")
	clock.Advance(5 * time.Minute)
	_, ok := store.Get("k")
	assert.False(t, ok, "entry exactly at TTL must be a miss")

	clock.Advance(time.Second)
	_, ok = store.Get("k")
	assert.False(t, ok)
}

// Expiry must hold for arbitrary TTLs and elapsed times, not just the
// default five minutes.
func TestExpiryBoundaryProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		ttl := time.Duration(1+rng.Intn(3600)) * time.Second
		elapsed := time.Duration(rng.Intn(7200)) * time.Second

		clock := newFakeClock()
		store := NewStore(ttl, clock.Now)
		store.Set("k", i)
		clock.Advance(elapsed)

		_, ok := store.Get("k")
		if elapsed < ttl {
			require.True(t, ok, "ttl=%v elapsed=%v should hit", ttl, elapsed)
		} else {
			require.False(t, ok, "ttl=%v elapsed=%v should miss", ttl, elapsed)
		}
	}
}

func TestSetLastWriteWins(t *testing.T) {
	store := NewStore(DefaultTTL, nil)
	store.Set("k", "v1")
	store.Set("k", "v2")

	got, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", got)
}

func TestSetRefreshesExpiredEntry(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTL, clock.Now)

	store.Set("k", "old")
	clock.Advance(6 * time.Minute)
	store.Set("k", "new")

	got, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestInvalidateRemovesSingleEntry(t *testing.T) {
	store := NewStore(DefaultTTL, nil)
	store.Set("a", 1)
	store.Set("b", 2)

	store.Invalidate("a")

	_, ok := store.Get("a")
	assert.False(t, ok)
	_, ok = store.Get("b")
	assert.True(t, ok)
}

func TestInvalidatePrefix(t *testing.T) {
	store := NewStore(DefaultTTL, nil)
	store.Set(RolePermissionsKey("ADMIN"), 1)
	store.Set(RoleKeyPrefix("ADMIN")+"stats", 2)
	store.Set(RolePermissionsKey("COORDINATOR"), 3)

	removed := store.InvalidatePrefix(RoleKeyPrefix("ADMIN"))
	assert.Equal(t, 2, removed)

	_, ok := store.Get(RolePermissionsKey("COORDINATOR"))
	assert.True(t, ok)
}

func TestClearAllReportsRemovedAndBytes(t *testing.T) {
	store := NewStore(DefaultTTL, nil)
	store.Set("a", "payload-one")
	store.Set("b", "payload-two")

	removed, bytes := store.ClearAll()
	assert.Equal(t, 2, removed)
	assert.Positive(t, bytes)
	assert.Equal(t, Counts{}, store.Counts())
}

func TestCountsSplitsValidAndExpired(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTL, clock.Now)

	store.Set("old", 1)
	clock.Advance(5*time.Minute + time.Second)
	store.Set("fresh", 2)

	c := store.Counts()
	assert.Equal(t, Counts{Total: 2, Valid: 1, Expired: 1}, c)
}

func TestCountsIsPure(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTL, clock.Now)
	store.Set("old", 1)
	clock.Advance(10 * time.Minute)

	store.Counts()
	store.Counts()

	// The expired entry must still be there for the sweep to reclaim.
	assert.Equal(t, 1, store.ClearExpired())
}

func TestClearExpiredIdempotent(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTL, clock.Now)

	for i := 0; i < 5; i++ {
		store.Set(fmt.Sprintf("old-%d", i), i)
	}
	clock.Advance(6 * time.Minute)
	store.Set("fresh", "v")

	assert.Equal(t, 5, store.ClearExpired())
	assert.Equal(t, 0, store.ClearExpired())

	_, ok := store.Get("fresh")
	assert.True(t, ok)
}

func TestTotalSizeBytesGrowsWithContent(t *testing.T) {
	store := NewStore(DefaultTTL, nil)
	empty := store.TotalSizeBytes()
	store.Set("k", map[string]any{"role": "ADMIN", "enabled": true})
	assert.Greater(t, store.TotalSizeBytes(), empty)
}

func TestSweeperSweepOnce(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTL, clock.Now)
	store.Set("k", 1)
	clock.Advance(10 * time.Minute)

	sweeper := NewSweeper(store, 0, nil)
	assert.Equal(t, 1, sweeper.SweepOnce())
	assert.Equal(t, 0, sweeper.SweepOnce())
}

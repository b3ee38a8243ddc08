// Package permcache provides the in-process TTL cache fronting the
// permission API, plus its maintenance sweep and the redis-backed
// invalidation listener used when several panel processes share a server.
package permcache

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultTTL is the fixed lifetime of a cache entry.
const DefaultTTL = 5 * time.Minute

// Entry is a cached payload with its write timestamp.
type Entry struct {
	Value    any
	StoredAt time.Time
}

// Counts summarises the store for diagnostics.
type Counts struct {
	Total   int
	Valid   int
	Expired int
}

// Store is a process-local key-value cache with a fixed TTL.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore constructs a Store. A zero ttl falls back to DefaultTTL and a
// nil clock falls back to time.Now.
func NewStore(ttl time.Duration, now func() time.Time) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     now,
	}
}

// TTL returns the store's entry lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the cached value for key. The second result is false on a
// miss, which covers both absence and expiry. Get never removes entries;
// expired ones are reclaimed by ClearExpired or overwritten by Set.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.StoredAt) >= s.ttl {
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key, unconditionally replacing any previous entry.
func (s *Store) Set(key string, value any) {
	at := s.now()
	s.mu.Lock()
	s.entries[key] = Entry{Value: value, StoredAt: at}
	s.mu.Unlock()
}

// Invalidate removes a single entry so the next read is forced to refetch.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// InvalidatePrefix removes every entry whose key starts with prefix.
// Mutations scoped to a role use this to drop all of that role's reads.
func (s *Store) InvalidatePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// ClearAll removes every entry and reports how many were removed and the
// estimated serialized size reclaimed, for user feedback.
func (s *Store) ClearAll() (removed int, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed = len(s.entries)
	bytes = sizeLocked(s.entries)
	s.entries = make(map[string]Entry)
	return removed, bytes
}

// Counts reports total, valid, and expired entry counts. It is a pure
// inspection: no entries are touched.
func (s *Store) Counts() Counts {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := Counts{Total: len(s.entries)}
	for _, entry := range s.entries {
		if now.Sub(entry.StoredAt) >= s.ttl {
			c.Expired++
		} else {
			c.Valid++
		}
	}
	return c
}

// TotalSizeBytes estimates the serialized size of the cache contents.
func (s *Store) TotalSizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sizeLocked(s.entries)
}

// ClearExpired removes entries at or past the TTL and returns the count.
// Calling it again with no intervening writes returns 0.
func (s *Store) ClearExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if now.Sub(entry.StoredAt) >= s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func sizeLocked(entries map[string]Entry) int64 {
	var total int64
	for key, entry := range entries {
		total += int64(len(key))
		if raw, err := json.Marshal(entry.Value); err == nil {
			total += int64(len(raw))
		}
	}
	return total
}

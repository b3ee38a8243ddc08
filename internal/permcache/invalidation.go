package permcache

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// InvalidationChannel carries permission invalidation events. The payload is
// a role key, or GlobalScope for mutations affecting every role.
const (
	InvalidationChannel = "perm.invalidate"
	GlobalScope         = "*"
)

// PublishInvalidation announces that permissions in the given scope changed.
// The permission API calls this after every successful mutation.
func PublishInvalidation(ctx context.Context, client *redis.Client, scope string) error {
	if client == nil {
		return nil
	}
	if scope == "" {
		scope = GlobalScope
	}
	return client.Publish(ctx, InvalidationChannel, scope).Err()
}

// ListenForInvalidation subscribes to invalidation events and drops the
// affected entries from the store. Role-scoped events remove that role's
// keys; a GlobalScope event clears everything.
func ListenForInvalidation(ctx context.Context, client *redis.Client, store *Store, logger *slog.Logger) error {
	if client == nil || store == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	pubsub := client.Subscribe(ctx, InvalidationChannel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == "" || msg.Payload == GlobalScope {
					removed, _ := store.ClearAll()
					logger.Debug("cache invalidated", slog.String("scope", "global"), slog.Int("removed", removed))
					continue
				}
				removed := store.InvalidatePrefix(RoleKeyPrefix(msg.Payload))
				logger.Debug("cache invalidated", slog.String("scope", msg.Payload), slog.Int("removed", removed))
			}
		}
	}()
	return nil
}

// SweepChannel carries sweep triggers for server-embedded panel caches
// whose own tickers are not running.
const SweepChannel = "perm.sweep"

// PublishSweep asks every listening store to reclaim expired entries.
func PublishSweep(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Publish(ctx, SweepChannel, "sweep").Err()
}

// ListenForSweep subscribes to sweep triggers and runs ClearExpired on each.
func ListenForSweep(ctx context.Context, client *redis.Client, store *Store, logger *slog.Logger) error {
	if client == nil || store == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	pubsub := client.Subscribe(ctx, SweepChannel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if removed := store.ClearExpired(); removed > 0 {
					logger.Debug("cache sweep", slog.Int("removed", removed))
				}
			}
		}
	}()
	return nil
}

// RoleKeyPrefix is the cache key prefix for one role's permission reads.
func RoleKeyPrefix(roleKey string) string {
	return "perm:role:" + roleKey + ":"
}

// RolePermissionsKey is the cache key for a role's full permission list.
func RolePermissionsKey(roleKey string) string {
	return RoleKeyPrefix(roleKey) + "permissions"
}

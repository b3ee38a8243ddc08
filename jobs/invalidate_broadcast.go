package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/atlas-hr/atlas/internal/permcache"
)

// InvalidateBroadcastJob publishes a cache invalidation event so every
// connected panel drops the named scope.
type InvalidateBroadcastJob struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewInvalidateBroadcastJob constructs the job.
func NewInvalidateBroadcastJob(client *redis.Client, logger *slog.Logger) *InvalidateBroadcastJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvalidateBroadcastJob{redis: client, logger: logger}
}

// Handle processes TaskInvalidateBroadcast tasks.
func (j *InvalidateBroadcastJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload InvalidateBroadcastPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := permcache.PublishInvalidation(ctx, j.redis, payload.Scope); err != nil {
		j.logger.Error("invalidate broadcast", slog.Any("error", err))
		return err
	}
	j.logger.Info("invalidate broadcast", slog.String("scope", payload.Scope))
	return nil
}

package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/atlas-hr/atlas/internal/permcache"
)

// CacheSweepJob publishes a sweep trigger so server-embedded panel caches
// reclaim expired entries even when their own tickers are not running.
type CacheSweepJob struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewCacheSweepJob constructs the job.
func NewCacheSweepJob(client *redis.Client, logger *slog.Logger) *CacheSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheSweepJob{redis: client, logger: logger}
}

// Handle processes TaskCacheSweep tasks.
func (j *CacheSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if err := permcache.PublishSweep(ctx, j.redis); err != nil {
		j.logger.Error("cache sweep trigger", slog.Any("error", err))
		return err
	}
	j.logger.Debug("cache sweep trigger published")
	return nil
}

package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-hr/atlas/internal/permissions"
)

// DefaultAuditRetention keeps ninety days of permission history.
const DefaultAuditRetention = 90 * 24 * time.Hour

// AuditRetentionJob prunes audit entries past the retention window.
type AuditRetentionJob struct {
	repo   *permissions.Repository
	logger *slog.Logger
}

// NewAuditRetentionJob constructs the job.
func NewAuditRetentionJob(repo *permissions.Repository, logger *slog.Logger) *AuditRetentionJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRetentionJob{repo: repo, logger: logger}
}

// Handle processes TaskAuditRetention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	cutoff := time.Now().Add(-retention)
	removed, err := j.repo.DeleteAuditBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("audit retention", slog.Any("error", err))
		return err
	}
	j.logger.Info("audit retention",
		slog.Int("removed", removed),
		slog.Time("cutoff", cutoff))
	return nil
}

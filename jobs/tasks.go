package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention prunes old permission audit entries.
	TaskAuditRetention = "perm:audit_retention"
	// TaskCacheSweep triggers an expiry sweep in embedded panel caches.
	TaskCacheSweep = "perm:cache_sweep"
	// TaskInvalidateBroadcast forces every panel process to drop its
	// permission cache, used after out-of-band data fixes.
	TaskInvalidateBroadcast = "perm:invalidate_broadcast"
)

// AuditRetentionPayload carries the retention window for a prune run.
type AuditRetentionPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditRetentionTask constructs an audit retention task.
func NewAuditRetentionTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditRetentionPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// NewCacheSweepTask constructs a cache sweep task. It carries no payload.
func NewCacheSweepTask() *asynq.Task {
	return asynq.NewTask(TaskCacheSweep, nil)
}

// InvalidateBroadcastPayload names the scope to invalidate.
type InvalidateBroadcastPayload struct {
	Scope string `json:"scope"`
}

// NewInvalidateBroadcastTask constructs an invalidation broadcast task.
func NewInvalidateBroadcastTask(scope string) (*asynq.Task, error) {
	data, err := json.Marshal(InvalidateBroadcastPayload{Scope: scope})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvalidateBroadcast, data), nil
}

package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlas-hr/atlas/internal/permcache"
)

const (
	// DefaultAuditLimit is the audit-log page size when none is given.
	DefaultAuditLimit = 10
	maxAuditLimit     = 100

	// DefaultSeedState is the state InitializeDefaults writes for pairs
	// that have never been configured. New pages start hidden.
	DefaultSeedState = false
)

// Store abstracts the persistence operations the service needs.
type Store interface {
	ListRoles(ctx context.Context) ([]Role, error)
	ListPages(ctx context.Context) ([]Page, error)
	RoleExists(ctx context.Context, roleKey string) (bool, error)
	ListRolePermissions(ctx context.Context, roleKey string) ([]RolePermission, error)
	GetRolePermission(ctx context.Context, roleKey, pageKey string) (RolePermission, error)
	UpsertRolePermission(ctx context.Context, roleKey, pageKey string, enabled bool) (bool, error)
	BulkUpdateRole(ctx context.Context, roleKey string, items []PageState) (int, error)
	BulkToggleGlobal(ctx context.Context, pageKeys []string, enabled bool) (int, error)
	PermissionCounts(ctx context.Context) (total, enabled int, err error)
	ChangesSince(ctx context.Context, cutoff time.Time) (int, error)
	InsertAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	RoleStats(ctx context.Context) ([]RoleStats, error)
	SeedDefaults(ctx context.Context, defaultEnabled bool) (int, error)
}

// Service orchestrates permission reads and mutations. Every successful
// mutation is audited and announced on the invalidation channel so cached
// readers drop the affected scope.
type Service struct {
	store       Store
	redis       *redis.Client
	logger      *slog.Logger
	now         func() time.Time
	maintenance bool
}

// NewService constructs a Service. The redis client may be nil, in which
// case invalidation events are not published.
func NewService(store Store, redisClient *redis.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// SetMaintenanceMode flips the maintenance indicator shown in statistics.
func (s *Service) SetMaintenanceMode(on bool) {
	s.maintenance = on
}

// ListRoles returns all roles in collated display order.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	SortRoles(roles)
	return roles, nil
}

// ListPages returns all pages in collated display order.
func (s *Service) ListPages(ctx context.Context) ([]Page, error) {
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	SortPages(pages)
	return pages, nil
}

// GetRolePermissions returns one role's permissions with derived counts.
func (s *Service) GetRolePermissions(ctx context.Context, roleKey string) (RolePermissionsResponse, error) {
	exists, err := s.store.RoleExists(ctx, roleKey)
	if err != nil {
		return RolePermissionsResponse{}, err
	}
	if !exists {
		return RolePermissionsResponse{}, fmt.Errorf("%w: role %s", ErrNotFound, roleKey)
	}
	perms, err := s.store.ListRolePermissions(ctx, roleKey)
	if err != nil {
		return RolePermissionsResponse{}, err
	}
	return NewRolePermissionsResponse(roleKey, perms), nil
}

// SetRolePermission writes the desired state for one (role, page) pair.
// Returns whether the stored state actually changed.
func (s *Service) SetRolePermission(ctx context.Context, roleKey, pageKey string, enabled bool, actor string) (bool, error) {
	var oldValue *bool
	prev, err := s.store.GetRolePermission(ctx, roleKey, pageKey)
	switch {
	case err == nil:
		v := prev.IsEnabled
		oldValue = &v
	case errors.Is(err, ErrNotFound):
		// First write for this pair.
	default:
		return false, err
	}

	changed, err := s.store.UpsertRolePermission(ctx, roleKey, pageKey, enabled)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	newValue := enabled
	s.audit(ctx, AuditEntry{
		RoleKey:  roleKey,
		PageKey:  pageKey,
		Action:   AuditActionToggle,
		OldValue: oldValue,
		NewValue: &newValue,
		Actor:    actor,
	})
	s.publishInvalidation(ctx, roleKey)
	return true, nil
}

// BulkUpdateRole applies target states for one role in one transaction and
// returns the number of rows actually changed.
func (s *Service) BulkUpdateRole(ctx context.Context, roleKey string, items []PageState, actor string) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	exists, err := s.store.RoleExists(ctx, roleKey)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: role %s", ErrNotFound, roleKey)
	}
	changed, err := s.store.BulkUpdateRole(ctx, roleKey, items)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.audit(ctx, AuditEntry{
			RoleKey: roleKey,
			Action:  AuditActionBulkUpdate,
			Actor:   actor,
		})
		s.publishInvalidation(ctx, roleKey)
	}
	return changed, nil
}

// BulkToggleGlobal sets the given pages to the target state for every role.
func (s *Service) BulkToggleGlobal(ctx context.Context, pageKeys []string, enabled bool, actor string) (int, error) {
	if len(pageKeys) == 0 {
		return 0, nil
	}
	changed, err := s.store.BulkToggleGlobal(ctx, pageKeys, enabled)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		newValue := enabled
		s.audit(ctx, AuditEntry{
			RoleKey:  permcache.GlobalScope,
			Action:   AuditActionBulkToggle,
			NewValue: &newValue,
			Actor:    actor,
		})
		s.publishInvalidation(ctx, permcache.GlobalScope)
	}
	return changed, nil
}

// Statistics assembles the aggregate snapshot for the panel header.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	total, enabled, err := s.store.PermissionCounts(ctx)
	if err != nil {
		return Statistics{}, err
	}
	recent, err := s.store.ChangesSince(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return Statistics{}, err
	}
	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(enabled)/float64(total)*1000) / 10
	}
	return Statistics{
		Pages: PageStatistics{
			Total:             total,
			Enabled:           enabled,
			Disabled:          total - enabled,
			PercentageEnabled: pct,
		},
		System: SystemStatistics{
			MaintenanceMode:  s.maintenance,
			RecentChanges24h: recent,
		},
	}, nil
}

// AuditLog returns the most recent entries, newest first. Non-positive
// limits fall back to the default; oversized ones are clamped.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	return s.store.ListAudit(ctx, limit)
}

// RoleStats returns per-role enabled/disabled aggregates.
func (s *Service) RoleStats(ctx context.Context) ([]RoleStats, error) {
	return s.store.RoleStats(ctx)
}

// InitializeDefaults seeds default permissions for every (role, page) pair
// that has never been configured, leaving explicit grants untouched.
// Returns the number of pairs seeded.
func (s *Service) InitializeDefaults(ctx context.Context, actor string) (int, error) {
	seeded, err := s.store.SeedDefaults(ctx, DefaultSeedState)
	if err != nil {
		return 0, err
	}
	s.audit(ctx, AuditEntry{
		RoleKey: permcache.GlobalScope,
		Action:  AuditActionInitDefaults,
		Actor:   actor,
	})
	s.publishInvalidation(ctx, permcache.GlobalScope)
	return seeded, nil
}

// audit failures must not fail the mutation they describe.
func (s *Service) audit(ctx context.Context, entry AuditEntry) {
	entry.At = s.now()
	if err := s.store.InsertAudit(ctx, entry); err != nil {
		s.logger.Error("record audit entry",
			slog.String("action", entry.Action),
			slog.String("role", entry.RoleKey),
			slog.Any("error", err))
	}
}

func (s *Service) publishInvalidation(ctx context.Context, scope string) {
	if err := permcache.PublishInvalidation(ctx, s.redis, scope); err != nil {
		s.logger.Warn("publish invalidation",
			slog.String("scope", scope),
			slog.Any("error", err))
	}
}

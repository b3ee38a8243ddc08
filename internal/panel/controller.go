package panel

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/atlas-hr/atlas/internal/permcache"
	"github.com/atlas-hr/atlas/internal/permissions"
)

// Read operations and whether their failures are surfaced to the operator.
// Audit log and role stats are supplementary widgets; losing them should
// not alarm the admin or block permission work, so they are logged only.
var readPolicy = map[string]bool{
	"roles":            true,
	"pages":            true,
	"role permissions": true,
	"statistics":       true,
	"audit log":        false,
	"role stats":       false,
}

// Controller orchestrates the control panel: it drives the fetcher to
// populate state, funnels every mutation through a single reconciliation
// path, and keeps the read cache consistent with the invalidation policy.
type Controller struct {
	api    API
	cache  *permcache.Store
	state  *State
	notify Notifier
	logger *slog.Logger
	bulk   *BulkCoordinator
}

// NewController constructs a Controller with fresh state.
func NewController(api API, cache *permcache.Store, notify Notifier, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		api:    api,
		cache:  cache,
		state:  NewState(),
		notify: notify,
		logger: logger,
	}
	c.bulk = NewBulkCoordinator(api, c.state, notify, c.reconcileRole, c.reconcileGlobal)
	return c
}

// State exposes the panel's displayed state.
func (c *Controller) State() *State { return c.state }

// Bulk exposes the bulk-action coordinator.
func (c *Controller) Bulk() *BulkCoordinator { return c.bulk }

// Load populates roles, pages, statistics, audit log, and role stats. Roles
// and pages load first since every other section hangs off them; the three
// supplementary reads then run concurrently.
func (c *Controller) Load(ctx context.Context) error {
	roles, err := c.api.FetchRoles(ctx)
	if err != nil {
		c.handleReadError("roles", err)
		return err
	}
	c.state.SetRoles(roles)

	pages, err := c.api.FetchPages(ctx)
	if err != nil {
		c.handleReadError("pages", err)
		return err
	}
	c.state.SetPages(pages)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { c.refreshStatistics(gctx); return nil })
	g.Go(func() error { c.refreshAuditLog(gctx); return nil })
	g.Go(func() error { c.refreshRoleStats(gctx); return nil })
	return g.Wait()
}

// ExpandRole loads one role's permissions, serving repeat reads from the
// cache within its TTL. Concurrent expands of the same role are dropped by
// the per-role gate.
func (c *Controller) ExpandRole(ctx context.Context, roleKey string) error {
	if !c.state.TryBeginRoleLoad(roleKey) {
		return nil
	}

	if cached, ok := c.cache.Get(permcache.RolePermissionsKey(roleKey)); ok {
		if resp, ok := cached.(permissions.RolePermissionsResponse); ok {
			c.state.SetRolePermissions(resp)
			c.state.SetRoleLoad(roleKey, LoadIdle)
			return nil
		}
	}

	resp, err := c.api.FetchRolePermissions(ctx, roleKey)
	if err != nil {
		c.state.SetRoleLoad(roleKey, LoadError)
		c.handleReadError("role permissions", err)
		return err
	}
	c.cache.Set(permcache.RolePermissionsKey(roleKey), resp)
	c.state.SetRolePermissions(resp)
	c.state.SetRoleLoad(roleKey, LoadIdle)
	return nil
}

// ToggleRolePermission flips one (role, page) pair to the opposite of
// currentState. The displayed permission never changes before the server
// confirms; the follow-up reconciliation is what updates it.
func (c *Controller) ToggleRolePermission(ctx context.Context, roleKey, pageKey string, currentState bool) error {
	if !c.state.TryBeginRoleLoad(roleKey) {
		return nil
	}

	desired := !currentState
	if err := c.api.SetRolePermission(ctx, roleKey, pageKey, desired); err != nil {
		c.state.SetRoleLoad(roleKey, LoadIdle)
		c.notify.Error(fmt.Sprintf("Failed to update permission %s for role %s", pageKey, roleKey))
		return err
	}

	// Release the gate before reconciling so a failed refetch can leave
	// the role in Error state instead of having it clobbered to Idle.
	c.state.SetRoleLoad(roleKey, LoadIdle)

	verb := "enabled"
	if !desired {
		verb = "disabled"
	}
	c.notify.Success(fmt.Sprintf("Page %s %s for role %s", pageKey, verb, roleKey))
	c.reconcileRole(ctx, roleKey)
	return nil
}

// StageBulkRole stages a role-scoped bulk action for confirmation.
func (c *Controller) StageBulkRole(action BulkAction, roleKey string) (bool, error) {
	return c.bulk.Stage(ScopeRole, action, roleKey)
}

// StageBulkGlobal stages a global bulk action for confirmation.
func (c *Controller) StageBulkGlobal(action BulkAction) (bool, error) {
	return c.bulk.Stage(ScopeGlobal, action, "")
}

// InitializeDefaults seeds default permissions for all roles server-side.
// Its server effect is global, so it reconciles everything.
func (c *Controller) InitializeDefaults(ctx context.Context) error {
	seeded, err := c.api.InitializeDefaults(ctx)
	if err != nil {
		c.notify.Error("Failed to initialize default permissions")
		return err
	}
	c.notify.Success(fmt.Sprintf("Initialized defaults, %d permissions seeded", seeded))
	c.reconcileGlobal(ctx)
	return nil
}

// ClearCache empties the read cache and reports what was reclaimed.
func (c *Controller) ClearCache() {
	removed, bytes := c.cache.ClearAll()
	c.notify.Success(fmt.Sprintf("Cache cleared: %d entries, %d bytes", removed, bytes))
}

// SweepCache removes expired entries and reports the count.
func (c *Controller) SweepCache() int {
	removed := c.cache.ClearExpired()
	c.notify.Info(fmt.Sprintf("Removed %d expired cache entries", removed))
	return removed
}

// CacheCounts exposes cache diagnostics for the maintenance widget.
func (c *Controller) CacheCounts() permcache.Counts {
	return c.cache.Counts()
}

// reconcileRole is the single reconciliation path for role-scoped
// mutations: drop the role's cache entries, then refetch the role's
// permissions alongside statistics, audit log, and role stats. The four
// refetches are independent and run concurrently; all complete before the
// mutation is considered done.
func (c *Controller) reconcileRole(ctx context.Context, roleKey string) {
	c.cache.InvalidatePrefix(permcache.RoleKeyPrefix(roleKey))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { c.refetchRolePermissions(gctx, roleKey); return nil })
	g.Go(func() error { c.refreshStatistics(gctx); return nil })
	g.Go(func() error { c.refreshAuditLog(gctx); return nil })
	g.Go(func() error { c.refreshRoleStats(gctx); return nil })
	_ = g.Wait()
}

// reconcileGlobal handles mutations whose server effect spans every role:
// clear the whole cache and refetch everything currently known.
func (c *Controller) reconcileGlobal(ctx context.Context) {
	c.cache.ClearAll()

	g, gctx := errgroup.WithContext(ctx)
	for _, roleKey := range c.state.KnownRoleKeys() {
		g.Go(func() error { c.refetchRolePermissions(gctx, roleKey); return nil })
	}
	g.Go(func() error { c.refreshStatistics(gctx); return nil })
	g.Go(func() error { c.refreshAuditLog(gctx); return nil })
	g.Go(func() error { c.refreshRoleStats(gctx); return nil })
	_ = g.Wait()
}

func (c *Controller) refetchRolePermissions(ctx context.Context, roleKey string) {
	resp, err := c.api.FetchRolePermissions(ctx, roleKey)
	if err != nil {
		c.state.SetRoleLoad(roleKey, LoadError)
		c.handleReadError("role permissions", err)
		return
	}
	c.cache.Set(permcache.RolePermissionsKey(roleKey), resp)
	c.state.SetRolePermissions(resp)
	c.state.SetRoleLoad(roleKey, LoadIdle)
}

func (c *Controller) refreshStatistics(ctx context.Context) {
	stats, err := c.api.FetchStatistics(ctx)
	if err != nil {
		c.handleReadError("statistics", err)
		return
	}
	c.state.SetStatistics(stats)
}

func (c *Controller) refreshAuditLog(ctx context.Context) {
	entries, err := c.api.FetchAuditLog(ctx, permissions.DefaultAuditLimit)
	if err != nil {
		c.handleReadError("audit log", err)
		return
	}
	c.state.SetAuditLog(entries)
}

func (c *Controller) refreshRoleStats(ctx context.Context) {
	stats, err := c.api.FetchRoleStats(ctx)
	if err != nil {
		c.handleReadError("role stats", err)
		return
	}
	c.state.SetRoleStats(stats)
}

// handleReadError applies the criticality table: critical read failures are
// surfaced to the operator, supplementary ones are logged only.
func (c *Controller) handleReadError(op string, err error) {
	if readPolicy[op] {
		c.notify.Error(fmt.Sprintf("Failed to load %s", op))
	}
	c.logger.Warn("panel read failed", slog.String("op", op), slog.Any("error", err))
}

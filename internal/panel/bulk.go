package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/atlas-hr/atlas/internal/permissions"
)

// BulkScope selects what a bulk action covers.
type BulkScope string

const (
	ScopeGlobal BulkScope = "global"
	ScopeRole   BulkScope = "role"
)

// BulkAction is the desired end state of a bulk action.
type BulkAction string

const (
	BulkEnable  BulkAction = "enable"
	BulkDisable BulkAction = "disable"
)

// BulkPhase is the coordinator's current position in the action lifecycle.
type BulkPhase int

const (
	BulkIdle BulkPhase = iota
	BulkStaged
	BulkExecuting
)

// ErrBulkBusy is returned when staging or confirming while another bulk
// action is still pending.
var ErrBulkBusy = errors.New("panel: bulk action already pending")

// BulkRequest is the staged action awaiting confirmation. AffectedCount is
// computed from panel state at stage time; a concurrent external mutation
// between staging and confirmation can make it stale, which the
// post-execution refetch reconciles.
type BulkRequest struct {
	Scope         BulkScope
	Action        BulkAction
	RoleKey       string
	AffectedCount int

	targets  []permissions.PageState
	pageKeys []string
}

// BulkCoordinator stages a bulk enable/disable, requires explicit
// confirmation, executes it as one API call, and reconciles afterwards.
// Permission state is never mutated locally before the API succeeds.
type BulkCoordinator struct {
	mu      sync.Mutex
	phase   BulkPhase
	request BulkRequest

	api    API
	state  *State
	notify Notifier

	reconcileRole   func(ctx context.Context, roleKey string)
	reconcileGlobal func(ctx context.Context)
}

// NewBulkCoordinator constructs a coordinator. The reconcile callbacks are
// invoked after a successful execution, scoped to the executed action.
func NewBulkCoordinator(api API, state *State, notify Notifier, reconcileRole func(context.Context, string), reconcileGlobal func(context.Context)) *BulkCoordinator {
	return &BulkCoordinator{
		api:             api,
		state:           state,
		notify:          notify,
		reconcileRole:   reconcileRole,
		reconcileGlobal: reconcileGlobal,
	}
}

// Phase reports the coordinator's current phase.
func (c *BulkCoordinator) Phase() BulkPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Request returns the staged request, valid while Phase is BulkStaged.
func (c *BulkCoordinator) Request() BulkRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.request
}

// Stage computes the affected set for the requested action and opens the
// confirmation step. When nothing would change, it reports an informational
// no-op and stays Idle: no dialog, no API call. Returns whether a
// confirmation is now pending.
func (c *BulkCoordinator) Stage(scope BulkScope, action BulkAction, roleKey string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != BulkIdle {
		return false, ErrBulkBusy
	}

	desired := action == BulkEnable
	req := BulkRequest{Scope: scope, Action: action, RoleKey: roleKey}

	switch scope {
	case ScopeRole:
		resp, ok := c.state.RolePermissions(roleKey)
		if !ok {
			return false, fmt.Errorf("panel: permissions for role %s not loaded", roleKey)
		}
		for _, p := range resp.Permissions {
			if p.IsEnabled != desired {
				req.targets = append(req.targets, permissions.PageState{PageKey: p.PageKey, IsEnabled: desired})
			}
		}
		req.AffectedCount = len(req.targets)
	case ScopeGlobal:
		for _, page := range c.state.Pages() {
			req.pageKeys = append(req.pageKeys, page.Key)
		}
		for _, key := range c.state.KnownRoleKeys() {
			resp, _ := c.state.RolePermissions(key)
			for _, p := range resp.Permissions {
				if p.IsEnabled != desired {
					req.AffectedCount++
				}
			}
		}
	default:
		return false, fmt.Errorf("panel: unknown bulk scope %q", scope)
	}

	if req.AffectedCount == 0 {
		c.notify.Info(noopMessage(scope, action, roleKey))
		return false, nil
	}

	c.request = req
	c.phase = BulkStaged
	return true, nil
}

// Cancel abandons a staged action with no side effects.
func (c *BulkCoordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == BulkStaged {
		c.phase = BulkIdle
		c.request = BulkRequest{}
	}
}

// Confirm executes the staged action as exactly one API call. On success it
// notifies with the server's changed count and triggers the scoped
// reconciliation; on failure it notifies and leaves all state untouched.
// Either way the coordinator returns to Idle.
func (c *BulkCoordinator) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != BulkStaged {
		c.mu.Unlock()
		return errors.New("panel: no bulk action staged")
	}
	req := c.request
	c.phase = BulkExecuting
	c.mu.Unlock()

	var changed int
	var err error
	switch req.Scope {
	case ScopeRole:
		changed, err = c.api.BulkUpdateRole(ctx, req.RoleKey, req.targets)
	case ScopeGlobal:
		changed, err = c.api.BulkToggleGlobal(ctx, req.pageKeys, req.Action == BulkEnable)
	}

	c.mu.Lock()
	c.phase = BulkIdle
	c.request = BulkRequest{}
	c.mu.Unlock()

	if err != nil {
		c.notify.Error(failureMessage(req))
		return err
	}

	c.notify.Success(successMessage(req, changed))
	switch req.Scope {
	case ScopeRole:
		c.reconcileRole(ctx, req.RoleKey)
	case ScopeGlobal:
		c.reconcileGlobal(ctx)
	}
	return nil
}

func noopMessage(scope BulkScope, action BulkAction, roleKey string) string {
	state := "enabled"
	if action == BulkDisable {
		state = "disabled"
	}
	if scope == ScopeRole {
		return fmt.Sprintf("All pages are already %s for role %s", state, roleKey)
	}
	return fmt.Sprintf("All pages are already %s", state)
}

func successMessage(req BulkRequest, changed int) string {
	if req.Scope == ScopeRole {
		return fmt.Sprintf("Updated %d pages for role %s", changed, req.RoleKey)
	}
	return fmt.Sprintf("Updated %d pages across all roles", changed)
}

func failureMessage(req BulkRequest) string {
	if req.Scope == ScopeRole {
		return fmt.Sprintf("Bulk %s failed for role %s", req.Action, req.RoleKey)
	}
	return fmt.Sprintf("Global bulk %s failed", req.Action)
}

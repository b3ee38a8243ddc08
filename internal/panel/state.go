// Package panel implements the admin control panel core: in-memory state,
// the API fetcher, the bulk-action coordinator, and the orchestrating
// controller with its cache invalidation policy.
//
// The package is embeddable: the process hosting a Controller owns its
// permcache.Store and decides whether to attach the redis-backed
// permcache.ListenForInvalidation and permcache.ListenForSweep subscribers
// alongside the store's own ticker-driven Sweeper.
package panel

import (
	"sync"

	"github.com/atlas-hr/atlas/internal/permissions"
)

// LoadState tracks per-role fetch progress. Error is distinct from Idle so
// a failed section can show a retry affordance instead of looking done.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadError
)

// State holds everything the panel displays. Displayed permission data is
// only ever written from server-confirmed responses, never predicted.
type State struct {
	mu sync.RWMutex

	roles           []permissions.Role
	pages           []permissions.Page
	rolePermissions map[string]permissions.RolePermissionsResponse
	statistics      permissions.Statistics
	auditLog        []permissions.AuditEntry
	roleStats       []permissions.RoleStats
	roleLoad        map[string]LoadState
}

// NewState constructs empty panel state.
func NewState() *State {
	return &State{
		rolePermissions: make(map[string]permissions.RolePermissionsResponse),
		roleLoad:        make(map[string]LoadState),
	}
}

// Roles returns the loaded roles.
func (s *State) Roles() []permissions.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles
}

// SetRoles replaces the role list.
func (s *State) SetRoles(roles []permissions.Role) {
	s.mu.Lock()
	s.roles = roles
	s.mu.Unlock()
}

// Pages returns the loaded pages.
func (s *State) Pages() []permissions.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pages
}

// SetPages replaces the page list.
func (s *State) SetPages(pages []permissions.Page) {
	s.mu.Lock()
	s.pages = pages
	s.mu.Unlock()
}

// RolePermissions returns one role's loaded permission aggregate.
func (s *State) RolePermissions(roleKey string) (permissions.RolePermissionsResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.rolePermissions[roleKey]
	return resp, ok
}

// SetRolePermissions stores a server-confirmed permission aggregate.
func (s *State) SetRolePermissions(resp permissions.RolePermissionsResponse) {
	s.mu.Lock()
	s.rolePermissions[resp.RoleKey] = resp
	s.mu.Unlock()
}

// KnownRoleKeys lists roles whose permissions have been loaded.
func (s *State) KnownRoleKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.rolePermissions))
	for key := range s.rolePermissions {
		keys = append(keys, key)
	}
	return keys
}

// Statistics returns the last loaded statistics snapshot.
func (s *State) Statistics() permissions.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statistics
}

// SetStatistics stores a statistics snapshot.
func (s *State) SetStatistics(stats permissions.Statistics) {
	s.mu.Lock()
	s.statistics = stats
	s.mu.Unlock()
}

// AuditLog returns the last loaded audit entries.
func (s *State) AuditLog() []permissions.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auditLog
}

// SetAuditLog stores audit entries.
func (s *State) SetAuditLog(entries []permissions.AuditEntry) {
	s.mu.Lock()
	s.auditLog = entries
	s.mu.Unlock()
}

// RoleStats returns the last loaded per-role aggregates.
func (s *State) RoleStats() []permissions.RoleStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roleStats
}

// SetRoleStats stores per-role aggregates.
func (s *State) SetRoleStats(stats []permissions.RoleStats) {
	s.mu.Lock()
	s.roleStats = stats
	s.mu.Unlock()
}

// RoleLoad returns one role's load state.
func (s *State) RoleLoad(roleKey string) LoadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roleLoad[roleKey]
}

// SetRoleLoad records one role's load state.
func (s *State) SetRoleLoad(roleKey string, state LoadState) {
	s.mu.Lock()
	s.roleLoad[roleKey] = state
	s.mu.Unlock()
}

// TryBeginRoleLoad flips a role from not-loading to Loading. It returns
// false while a fetch or mutation for the role is already in flight, which
// is the panel's per-role mutual-exclusion gate.
func (s *State) TryBeginRoleLoad(roleKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roleLoad[roleKey] == LoadLoading {
		return false
	}
	s.roleLoad[roleKey] = LoadLoading
	return true
}

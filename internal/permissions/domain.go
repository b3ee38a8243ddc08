// Package permissions implements role-based page visibility for the admin
// application: which named page each role may see, plus the audit trail and
// aggregate statistics the control panel displays.
package permissions

import (
	"errors"
	"time"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("permissions: not found")

// Role is a named permission scope (e.g. ADMIN, COORDINATOR). Roles are
// managed out of band; this package only reads them.
type Role struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	NameEN      string `json:"name_en"`
	Description string `json:"description"`
}

// Page is an application section whose visibility can be toggled per role.
type Page struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	NameEN      string `json:"name_en"`
	Description string `json:"description,omitempty"`
}

// RolePermission is the enabled/disabled state of one (role, page) pair.
// At most one row exists per pair; rows are flipped, never deleted.
type RolePermission struct {
	RoleKey   string    `json:"role_key"`
	PageKey   string    `json:"page_key"`
	IsEnabled bool      `json:"is_enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RolePermissionsResponse aggregates one role's permissions with counts.
type RolePermissionsResponse struct {
	RoleKey      string           `json:"role_key"`
	Permissions  []RolePermission `json:"permissions"`
	TotalPages   int              `json:"total_pages"`
	EnabledPages int              `json:"enabled_pages"`
}

// NewRolePermissionsResponse derives the counts from the permission list so
// they can never disagree with it.
func NewRolePermissionsResponse(roleKey string, perms []RolePermission) RolePermissionsResponse {
	enabled := 0
	for _, p := range perms {
		if p.IsEnabled {
			enabled++
		}
	}
	return RolePermissionsResponse{
		RoleKey:      roleKey,
		Permissions:  perms,
		TotalPages:   len(perms),
		EnabledPages: enabled,
	}
}

// PageState names a target state for one page in a bulk update.
type PageState struct {
	PageKey   string `json:"page_key"`
	IsEnabled bool   `json:"is_enabled"`
}

// PageStatistics aggregates permission counts across all roles and pages.
type PageStatistics struct {
	Total             int     `json:"total"`
	Enabled           int     `json:"enabled"`
	Disabled          int     `json:"disabled"`
	PercentageEnabled float64 `json:"percentage_enabled"`
}

// SystemStatistics carries system-level indicators for the panel header.
type SystemStatistics struct {
	MaintenanceMode  bool `json:"maintenance_mode"`
	RecentChanges24h int  `json:"recent_changes_24h"`
}

// Statistics is the aggregate snapshot shown on the control panel.
type Statistics struct {
	Pages  PageStatistics   `json:"pages"`
	System SystemStatistics `json:"system"`
}

// AuditEntry records one permission-changing action.
type AuditEntry struct {
	ID       string    `json:"id"`
	RoleKey  string    `json:"role_key"`
	PageKey  string    `json:"page_key,omitempty"`
	Action   string    `json:"action"`
	OldValue *bool     `json:"old_value,omitempty"`
	NewValue *bool     `json:"new_value,omitempty"`
	Actor    string    `json:"actor"`
	At       time.Time `json:"at"`
}

// Audit actions recorded by the service.
const (
	AuditActionToggle       = "toggle"
	AuditActionBulkUpdate   = "bulk_update"
	AuditActionBulkToggle   = "bulk_toggle"
	AuditActionInitDefaults = "initialize_defaults"
)

// RoleStats summarises enabled/disabled counts for one role.
type RoleStats struct {
	RoleKey  string `json:"role_key"`
	RoleName string `json:"role_name"`
	Total    int    `json:"total"`
	Enabled  int    `json:"enabled"`
	Disabled int    `json:"disabled"`
}

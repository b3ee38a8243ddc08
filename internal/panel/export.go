package panel

import (
	"encoding/json"
	"io"
	"time"

	"github.com/atlas-hr/atlas/internal/permissions"
)

// Snapshot is the downloadable JSON image of the current configuration.
type Snapshot struct {
	ExportedAt  time.Time                                      `json:"exported_at"`
	Roles       []permissions.Role                             `json:"roles"`
	Pages       []permissions.Page                             `json:"pages"`
	Permissions map[string]permissions.RolePermissionsResponse `json:"permissions"`
	Statistics  permissions.Statistics                         `json:"statistics"`
}

// ExportSnapshot serializes the panel's current configuration. It reads
// only already-loaded state; it never triggers fetches.
func (c *Controller) ExportSnapshot(w io.Writer) error {
	perms := make(map[string]permissions.RolePermissionsResponse)
	for _, key := range c.state.KnownRoleKeys() {
		if resp, ok := c.state.RolePermissions(key); ok {
			perms[key] = resp
		}
	}
	snapshot := Snapshot{
		ExportedAt:  time.Now(),
		Roles:       c.state.Roles(),
		Pages:       c.state.Pages(),
		Permissions: perms,
		Statistics:  c.state.Statistics(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}

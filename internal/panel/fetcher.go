package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/atlas-hr/atlas/internal/permissions"
)

// API is the permission service surface the panel consumes. In production
// it is a Fetcher; tests substitute a stub.
type API interface {
	FetchRoles(ctx context.Context) ([]permissions.Role, error)
	FetchPages(ctx context.Context) ([]permissions.Page, error)
	FetchRolePermissions(ctx context.Context, roleKey string) (permissions.RolePermissionsResponse, error)
	FetchStatistics(ctx context.Context) (permissions.Statistics, error)
	FetchAuditLog(ctx context.Context, limit int) ([]permissions.AuditEntry, error)
	FetchRoleStats(ctx context.Context) ([]permissions.RoleStats, error)

	SetRolePermission(ctx context.Context, roleKey, pageKey string, enabled bool) error
	BulkUpdateRole(ctx context.Context, roleKey string, items []permissions.PageState) (int, error)
	BulkToggleGlobal(ctx context.Context, pageKeys []string, enabled bool) (int, error)
	InitializeDefaults(ctx context.Context) (int, error)
}

// FetchError describes a failed API call.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("panel: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("panel: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher is the HTTP client for the permission API.
type Fetcher struct {
	baseURL string
	client  *http.Client
	token   string
	actor   string
}

// NewFetcher constructs a Fetcher. client may be nil to use the default.
func NewFetcher(baseURL string, client *http.Client, token, actor string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{baseURL: baseURL, client: client, token: token, actor: actor}
}

// FetchRoles loads all roles.
func (f *Fetcher) FetchRoles(ctx context.Context) ([]permissions.Role, error) {
	var out struct {
		Roles []permissions.Role `json:"roles"`
	}
	if err := f.do(ctx, http.MethodGet, "/roles", nil, &out, "fetch roles"); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

// FetchPages loads all pages.
func (f *Fetcher) FetchPages(ctx context.Context) ([]permissions.Page, error) {
	var out struct {
		Pages []permissions.Page `json:"pages"`
	}
	if err := f.do(ctx, http.MethodGet, "/pages", nil, &out, "fetch pages"); err != nil {
		return nil, err
	}
	return out.Pages, nil
}

// FetchRolePermissions loads one role's permission aggregate.
func (f *Fetcher) FetchRolePermissions(ctx context.Context, roleKey string) (permissions.RolePermissionsResponse, error) {
	var out permissions.RolePermissionsResponse
	path := "/roles/" + roleKey + "/permissions"
	if err := f.do(ctx, http.MethodGet, path, nil, &out, "fetch role permissions"); err != nil {
		return permissions.RolePermissionsResponse{}, err
	}
	return out, nil
}

// FetchStatistics loads the aggregate statistics snapshot.
func (f *Fetcher) FetchStatistics(ctx context.Context) (permissions.Statistics, error) {
	var out permissions.Statistics
	if err := f.do(ctx, http.MethodGet, "/statistics", nil, &out, "fetch statistics"); err != nil {
		return permissions.Statistics{}, err
	}
	return out, nil
}

// FetchAuditLog loads the most recent audit entries.
func (f *Fetcher) FetchAuditLog(ctx context.Context, limit int) ([]permissions.AuditEntry, error) {
	var out struct {
		Entries []permissions.AuditEntry `json:"entries"`
	}
	path := fmt.Sprintf("/audit?limit=%d", limit)
	if err := f.do(ctx, http.MethodGet, path, nil, &out, "fetch audit log"); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// FetchRoleStats loads per-role aggregates.
func (f *Fetcher) FetchRoleStats(ctx context.Context) ([]permissions.RoleStats, error) {
	var out struct {
		RoleStats []permissions.RoleStats `json:"role_stats"`
	}
	if err := f.do(ctx, http.MethodGet, "/role-stats", nil, &out, "fetch role stats"); err != nil {
		return nil, err
	}
	return out.RoleStats, nil
}

// SetRolePermission writes one (role, page) state.
func (f *Fetcher) SetRolePermission(ctx context.Context, roleKey, pageKey string, enabled bool) error {
	body := map[string]any{"is_enabled": enabled}
	path := "/roles/" + roleKey + "/permissions/" + pageKey
	return f.do(ctx, http.MethodPut, path, body, nil, "set role permission")
}

// BulkUpdateRole applies target states for one role in one call.
func (f *Fetcher) BulkUpdateRole(ctx context.Context, roleKey string, items []permissions.PageState) (int, error) {
	body := map[string]any{"permissions": items}
	var out struct {
		Changed int `json:"changed"`
	}
	path := "/roles/" + roleKey + "/permissions/bulk"
	if err := f.do(ctx, http.MethodPost, path, body, &out, "bulk update role"); err != nil {
		return 0, err
	}
	return out.Changed, nil
}

// BulkToggleGlobal sets the given pages for every role in one call.
func (f *Fetcher) BulkToggleGlobal(ctx context.Context, pageKeys []string, enabled bool) (int, error) {
	body := map[string]any{"page_keys": pageKeys, "is_enabled": enabled}
	var out struct {
		Changed int `json:"changed"`
	}
	if err := f.do(ctx, http.MethodPost, "/pages/bulk-toggle", body, &out, "bulk toggle pages"); err != nil {
		return 0, err
	}
	return out.Changed, nil
}

// InitializeDefaults seeds default permissions server-side.
func (f *Fetcher) InitializeDefaults(ctx context.Context) (int, error) {
	var out struct {
		Seeded int `json:"seeded"`
	}
	if err := f.do(ctx, http.MethodPost, "/initialize-defaults", nil, &out, "initialize defaults"); err != nil {
		return 0, err
	}
	return out.Seeded, nil
}

func (f *Fetcher) do(ctx context.Context, method, path string, body, dest any, op string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &FetchError{Op: op, Err: err}
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reader)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	if f.actor != "" {
		req.Header.Set("X-Admin-Actor", f.actor)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{Op: op, StatusCode: resp.StatusCode}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &FetchError{Op: op, Err: err}
	}
	return nil
}

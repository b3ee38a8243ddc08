package permissions

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, store Store) http.Handler {
	t.Helper()
	svc, _ := newTestService(t, store)
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)
	return r
}

func TestHandlerGetRolePermissions(t *testing.T) {
	store := newMockStore()
	store.roles = []Role{{Key: "ADMIN", Name: "管理者"}}
	store.put("ADMIN", "dashboard", true)
	store.put("ADMIN", "payroll", false)

	handler := newTestHandler(t, store)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roles/ADMIN/permissions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RolePermissionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ADMIN", resp.RoleKey)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Equal(t, 1, resp.EnabledPages)
}

func TestHandlerUnknownRoleIs404(t *testing.T) {
	handler := newTestHandler(t, newMockStore())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roles/GHOST/permissions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerSetRolePermission(t *testing.T) {
	store := newMockStore()
	store.roles = []Role{{Key: "ADMIN"}}
	store.put("ADMIN", "dashboard", false)

	handler := newTestHandler(t, store)
	req := httptest.NewRequest(http.MethodPut, "/roles/ADMIN/permissions/dashboard",
		strings.NewReader(`{"is_enabled": true}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, store.perms["ADMIN"]["dashboard"].IsEnabled)
	require.Len(t, store.audit, 1)
}

func TestHandlerSetRolePermissionMissingBodyField(t *testing.T) {
	handler := newTestHandler(t, newMockStore())
	req := httptest.NewRequest(http.MethodPut, "/roles/ADMIN/permissions/dashboard",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerBulkUpdateRejectsEmptyList(t *testing.T) {
	store := newMockStore()
	store.roles = []Role{{Key: "ADMIN"}}

	handler := newTestHandler(t, store)
	req := httptest.NewRequest(http.MethodPost, "/roles/ADMIN/permissions/bulk",
		strings.NewReader(`{"permissions": []}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, store.bulkRoleCalls)
}

func TestHandlerAuditDefaultLimit(t *testing.T) {
	store := newMockStore()
	for i := 0; i < 20; i++ {
		store.audit = append(store.audit, AuditEntry{Action: AuditActionToggle})
	}

	handler := newTestHandler(t, store)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Entries []AuditEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Entries, DefaultAuditLimit)
}

func TestHandlerInitializeDefaults(t *testing.T) {
	store := newMockStore()
	store.roles = []Role{{Key: "ADMIN"}}
	store.pages = []Page{{Key: "dashboard"}, {Key: "payroll"}}

	handler := newTestHandler(t, store)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/initialize-defaults", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Seeded int `json:"seeded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Seeded)
}

package permissions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-hr/atlas/internal/auth"
	"github.com/atlas-hr/atlas/internal/platform/httpx"
)

// Handler exposes the permission API consumed by the admin control panel.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers permission API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Get("/pages", h.listPages)
	r.Get("/roles/{roleKey}/permissions", h.getRolePermissions)
	r.Get("/statistics", h.getStatistics)
	r.Get("/audit", h.getAuditLog)
	r.Get("/role-stats", h.getRoleStats)

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Put("/roles/{roleKey}/permissions/{pageKey}", h.setRolePermission)
		r.Post("/roles/{roleKey}/permissions/bulk", h.bulkUpdateRole)
		r.Post("/pages/bulk-toggle", h.bulkToggleGlobal)
		r.Post("/initialize-defaults", h.initializeDefaults)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.ListPages(r.Context())
	if err != nil {
		h.respondError(w, "list pages", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (h *Handler) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleKey := chi.URLParam(r, "roleKey")
	resp, err := h.service.GetRolePermissions(r.Context(), roleKey)
	if err != nil {
		h.respondError(w, "get role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type setPermissionRequest struct {
	IsEnabled *bool `json:"is_enabled" validate:"required"`
}

func (h *Handler) setRolePermission(w http.ResponseWriter, r *http.Request) {
	roleKey := chi.URLParam(r, "roleKey")
	pageKey := chi.URLParam(r, "pageKey")

	var req setPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "is_enabled is required")
		return
	}

	changed, err := h.service.SetRolePermission(r.Context(), roleKey, pageKey, *req.IsEnabled, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "set role permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role_key":   roleKey,
		"page_key":   pageKey,
		"is_enabled": *req.IsEnabled,
		"changed":    changed,
	})
}

type bulkUpdateRequest struct {
	Permissions []PageState `json:"permissions" validate:"required,min=1,dive"`
}

func (h *Handler) bulkUpdateRole(w http.ResponseWriter, r *http.Request) {
	roleKey := chi.URLParam(r, "roleKey")

	var req bulkUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permissions must contain at least one entry")
		return
	}

	changed, err := h.service.BulkUpdateRole(r.Context(), roleKey, req.Permissions, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "bulk update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role_key": roleKey, "changed": changed})
}

type bulkToggleRequest struct {
	PageKeys  []string `json:"page_keys" validate:"required,min=1"`
	IsEnabled *bool    `json:"is_enabled" validate:"required"`
}

func (h *Handler) bulkToggleGlobal(w http.ResponseWriter, r *http.Request) {
	var req bulkToggleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "page_keys and is_enabled are required")
		return
	}

	changed, err := h.service.BulkToggleGlobal(r.Context(), req.PageKeys, *req.IsEnabled, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "bulk toggle pages", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"changed": changed})
}

func (h *Handler) getStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.respondError(w, "load statistics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) getAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := DefaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be an integer")
			return
		}
		limit = parsed
	}
	entries, err := h.service.AuditLog(r.Context(), limit)
	if err != nil {
		h.respondError(w, "load audit log", err)
		return
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) getRoleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.RoleStats(r.Context())
	if err != nil {
		h.respondError(w, "load role stats", err)
		return
	}
	if stats == nil {
		stats = []RoleStats{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role_stats": stats})
}

func (h *Handler) initializeDefaults(w http.ResponseWriter, r *http.Request) {
	seeded, err := h.service.InitializeDefaults(r.Context(), auth.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "initialize defaults", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"seeded": seeded})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

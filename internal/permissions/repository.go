package permissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-hr/atlas/internal/platform/db"
)

// ErrDuplicate indicates a unique-constraint violation.
var ErrDuplicate = errors.New("permissions: duplicate entry")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, name, name_en, description FROM roles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.Key, &role.Name, &role.NameEN, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListPages returns all pages.
func (r *Repository) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, name, name_en, COALESCE(description, '') FROM pages`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var page Page
		if err := rows.Scan(&page.Key, &page.Name, &page.NameEN, &page.Description); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// RoleExists reports whether a role with the given key exists.
func (r *Repository) RoleExists(ctx context.Context, roleKey string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE key = $1)`, roleKey).Scan(&exists)
	return exists, err
}

// ListRolePermissions returns all permission rows for one role.
func (r *Repository) ListRolePermissions(ctx context.Context, roleKey string) ([]RolePermission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role_key, page_key, is_enabled, created_at, updated_at
		FROM role_permissions
		WHERE role_key = $1
		ORDER BY page_key`, roleKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []RolePermission
	for rows.Next() {
		var p RolePermission
		if err := rows.Scan(&p.RoleKey, &p.PageKey, &p.IsEnabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// GetRolePermission fetches a single (role, page) row.
func (r *Repository) GetRolePermission(ctx context.Context, roleKey, pageKey string) (RolePermission, error) {
	var p RolePermission
	err := r.pool.QueryRow(ctx, `
		SELECT role_key, page_key, is_enabled, created_at, updated_at
		FROM role_permissions
		WHERE role_key = $1 AND page_key = $2`, roleKey, pageKey).
		Scan(&p.RoleKey, &p.PageKey, &p.IsEnabled, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RolePermission{}, ErrNotFound
	}
	return p, err
}

// UpsertRolePermission writes the desired state for one (role, page) pair.
// Returns true when the stored state actually changed.
func (r *Repository) UpsertRolePermission(ctx context.Context, roleKey, pageKey string, enabled bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_key, page_key, is_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (role_key, page_key) DO UPDATE
		SET is_enabled = EXCLUDED.is_enabled, updated_at = NOW()
		WHERE role_permissions.is_enabled IS DISTINCT FROM EXCLUDED.is_enabled`,
		roleKey, pageKey, enabled)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// BulkUpdateRole applies the target states for one role in a single
// transaction and returns the number of rows actually changed.
func (r *Repository) BulkUpdateRole(ctx context.Context, roleKey string, items []PageState) (int, error) {
	changed := 0
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, item := range items {
			tag, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_key, page_key, is_enabled, created_at, updated_at)
				VALUES ($1, $2, $3, NOW(), NOW())
				ON CONFLICT (role_key, page_key) DO UPDATE
				SET is_enabled = EXCLUDED.is_enabled, updated_at = NOW()
				WHERE role_permissions.is_enabled IS DISTINCT FROM EXCLUDED.is_enabled`,
				roleKey, item.PageKey, item.IsEnabled)
			if err != nil {
				return mapPgError(err)
			}
			changed += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// BulkToggleGlobal sets the given pages to the target state for every role.
func (r *Repository) BulkToggleGlobal(ctx context.Context, pageKeys []string, enabled bool) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE role_permissions
		SET is_enabled = $2, updated_at = NOW()
		WHERE page_key = ANY($1) AND is_enabled IS DISTINCT FROM $2`,
		pageKeys, enabled)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// PermissionCounts returns total and enabled permission row counts.
func (r *Repository) PermissionCounts(ctx context.Context) (total, enabled int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_enabled)
		FROM role_permissions`).Scan(&total, &enabled)
	return total, enabled, err
}

// ChangesSince counts audit entries recorded after the cutoff.
func (r *Repository) ChangesSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM permission_audit WHERE occurred_at >= $1`, cutoff).Scan(&n)
	return n, err
}

// InsertAudit persists an audit entry, assigning its ID.
func (r *Repository) InsertAudit(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO permission_audit (id, role_key, page_key, action, old_value, new_value, actor, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.RoleKey, entry.PageKey, entry.Action, entry.OldValue, entry.NewValue, entry.Actor, entry.At)
	return err
}

// ListAudit returns the most recent audit entries, newest first.
func (r *Repository) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, role_key, COALESCE(page_key, ''), action, old_value, new_value, actor, occurred_at
		FROM permission_audit
		ORDER BY occurred_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.RoleKey, &e.PageKey, &e.Action, &e.OldValue, &e.NewValue, &e.Actor, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteAuditBefore removes audit entries older than the cutoff, returning
// the number removed. Used by the retention job.
func (r *Repository) DeleteAuditBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permission_audit WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// RoleStats aggregates enabled/disabled counts per role.
func (r *Repository) RoleStats(ctx context.Context) ([]RoleStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.key, r.name,
		       COUNT(p.page_key),
		       COUNT(p.page_key) FILTER (WHERE p.is_enabled)
		FROM roles r
		LEFT JOIN role_permissions p ON p.role_key = r.key
		GROUP BY r.key, r.name
		ORDER BY r.key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []RoleStats
	for rows.Next() {
		var s RoleStats
		if err := rows.Scan(&s.RoleKey, &s.RoleName, &s.Total, &s.Enabled); err != nil {
			return nil, err
		}
		s.Disabled = s.Total - s.Enabled
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// SeedDefaults inserts any missing (role, page) rows with the default
// state. Existing rows are left untouched so explicit grants survive.
func (r *Repository) SeedDefaults(ctx context.Context, defaultEnabled bool) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_key, page_key, is_enabled, created_at, updated_at)
		SELECT r.key, p.key, $1, NOW(), NOW()
		FROM roles r CROSS JOIN pages p
		ON CONFLICT (role_key, page_key) DO NOTHING`, defaultEnabled)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

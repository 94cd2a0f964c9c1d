package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questionbank/questionbank/internal/platform/db"
	"github.com/questionbank/questionbank/internal/shared"
)

// PGRepository implements Store using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListPermissions returns all permissions ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, active FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// FindPermissionByID fetches a single permission.
func (r *PGRepository) FindPermissionByID(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, name, active FROM permissions WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.Active)
	if db.IsNoRows(err) {
		return Permission{}, shared.ErrNotFound
	}
	return p, err
}

// FindPermissionByName fetches a permission by its unique name.
func (r *PGRepository) FindPermissionByName(ctx context.Context, name string) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, name, active FROM permissions WHERE name = $1`, name).Scan(&p.ID, &p.Name, &p.Active)
	if db.IsNoRows(err) {
		return Permission{}, shared.ErrNotFound
	}
	return p, err
}

// ExistsPermissionByName reports whether name is taken.
func (r *PGRepository) ExistsPermissionByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM permissions WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// CreatePermission inserts a permission.
func (r *PGRepository) CreatePermission(ctx context.Context, name string, active bool) (Permission, error) {
	p := Permission{Name: name, Active: active}
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (name, active) VALUES ($1, $2) RETURNING id`, name, active).Scan(&p.ID)
	if db.IsUniqueViolation(err) {
		return Permission{}, fmt.Errorf("permission already exists with name: %s: %w", name, shared.ErrDuplicate)
	}
	return p, err
}

// SetPermissionActive updates the active flag.
func (r *PGRepository) SetPermissionActive(ctx context.Context, id int64, active bool) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `UPDATE permissions SET active = $2 WHERE id = $1 RETURNING id, name, active`, id, active).Scan(&p.ID, &p.Name, &p.Active)
	if db.IsNoRows(err) {
		return Permission{}, shared.ErrNotFound
	}
	return p, err
}

// DeletePermission removes a permission by ID. Returns ErrNotFound if nothing was deleted.
func (r *PGRepository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RolePermissions lists the permissions granted to a role.
func (r *PGRepository) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.active
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// ReplaceRolePermissions swaps a role's grants inside one transaction.
func (r *PGRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, id := range permissionIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, id); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `UPDATE roles SET updated_at = NOW() WHERE id = $1`, roleID)
		return err
	})
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	perms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Permission, error) {
		var p Permission
		err := row.Scan(&p.ID, &p.Name, &p.Active)
		return p, err
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}

var _ Store = (*PGRepository)(nil)

// UserRoles loads the roles, with permissions, held by each of userIDs.
func UserRoles(ctx context.Context, q db.Querier, userIDs []int64) (map[int64][]Role, error) {
	out := make(map[int64][]Role, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `SELECT ur.user_id, r.id, r.name, r.description, r.created_at, r.updated_at, p.id, p.name, p.active
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = ANY($1)
ORDER BY ur.user_id, r.name, p.name`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("rbac: load user roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			userID  int64
			role    Role
			permID  *int64
			permKey *string
			active  *bool
		)
		if err := rows.Scan(&userID, &role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt, &permID, &permKey, &active); err != nil {
			return nil, err
		}
		list := out[userID]
		if n := len(list); n == 0 || list[n-1].ID != role.ID {
			role.Permissions = []Permission{}
			list = append(list, role)
		}
		if permID != nil && permKey != nil {
			last := &list[len(list)-1]
			last.Permissions = append(last.Permissions, Permission{ID: *permID, Name: *permKey, Active: active != nil && *active})
		}
		out[userID] = list
	}
	return out, rows.Err()
}

package roles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questionbank/questionbank/internal/platform/db"
	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, created_at, updated_at`

// ListRoles returns all roles.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	return r.queryRoles(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
}

// SearchRoles matches roles by name fragment.
func (r *Repository) SearchRoles(ctx context.Context, fragment string) ([]Role, error) {
	return r.queryRoles(ctx, `SELECT `+roleColumns+` FROM roles WHERE name ILIKE '%' || $1 || '%' ORDER BY name`, fragment)
}

// FindRoleByID fetches a role with permissions.
func (r *Repository) FindRoleByID(ctx context.Context, id int64) (Role, error) {
	return r.findOne(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
}

// FindRoleByName fetches a role by its unique name.
func (r *Repository) FindRoleByName(ctx context.Context, name string) (Role, error) {
	return r.findOne(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
}

// ExistsRoleByName reports whether name is taken.
func (r *Repository) ExistsRoleByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING `+roleColumns, in.Name, in.Description))
	if db.IsUniqueViolation(err) {
		return Role{}, fmt.Errorf("role already exists with name: %s: %w", in.Name, shared.ErrDuplicate)
	}
	if err != nil {
		return Role{}, err
	}
	role.Permissions = []rbac.Permission{}
	return role, nil
}

// UpdateRole rewrites name and description.
func (r *Repository) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	_, err := scanRole(r.pool.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING `+roleColumns, id, in.Name, in.Description))
	switch {
	case db.IsNoRows(err):
		return Role{}, shared.ErrNotFound
	case db.IsUniqueViolation(err):
		return Role{}, fmt.Errorf("role already exists with name: %s: %w", in.Name, shared.ErrDuplicate)
	case err != nil:
		return Role{}, err
	}
	return r.FindRoleByID(ctx, id)
}

// DeleteRole removes a role. Grants cascade.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, query, arg))
	if db.IsNoRows(err) {
		return Role{}, shared.ErrNotFound
	}
	if err != nil {
		return Role{}, err
	}
	perms, err := r.permissionsFor(ctx, []int64{role.ID})
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms[role.ID]
	if role.Permissions == nil {
		role.Permissions = []rbac.Permission{}
	}
	return role, nil
}

func (r *Repository) queryRoles(ctx context.Context, query string, args ...any) ([]Role, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Role, error) {
		return scanRole(row)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(list))
	for i, role := range list {
		ids[i] = role.ID
	}
	perms, err := r.permissionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Permissions = perms[list[i].ID]
		if list[i].Permissions == nil {
			list[i].Permissions = []rbac.Permission{}
		}
	}
	return list, nil
}

func (r *Repository) permissionsFor(ctx context.Context, roleIDs []int64) (map[int64][]rbac.Permission, error) {
	out := make(map[int64][]rbac.Permission, len(roleIDs))
	if len(roleIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT rp.role_id, p.id, p.name, p.active
FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = ANY($1) ORDER BY p.name`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			roleID int64
			p      rbac.Permission
		)
		if err := rows.Scan(&roleID, &p.ID, &p.Name, &p.Active); err != nil {
			return nil, err
		}
		out[roleID] = append(out[roleID], p)
	}
	return out, rows.Err()
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

var _ RepositoryPort = (*Repository)(nil)

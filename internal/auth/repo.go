package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questionbank/questionbank/internal/platform/db"
	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	UserFinder
	ExistsByName(ctx context.Context, name string) (bool, error)
	FindRoleByID(ctx context.Context, id int64) (rbac.Role, error)
	CreateUser(ctx context.Context, user NewUser) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, name, password_hash, email, full_name, is_active, created_at, updated_at`

// FindUserByName fetches a user by name with roles and permissions.
func (r *PGRepository) FindUserByName(ctx context.Context, name string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE name = $1`, name).
		Scan(&u.ID, &u.Name, &u.PasswordHash, &u.Email, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	roles, err := rbac.UserRoles(ctx, r.pool, []int64{u.ID})
	if err != nil {
		return nil, err
	}
	u.Roles = roles[u.ID]
	return &u, nil
}

// ExistsByName reports whether a user name is taken.
func (r *PGRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// FindRoleByID fetches a role without its permissions.
func (r *PGRepository) FindRoleByID(ctx context.Context, id int64) (rbac.Role, error) {
	var role rbac.Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if db.IsNoRows(err) {
		return rbac.Role{}, shared.ErrNotFound
	}
	return role, err
}

// CreateUser inserts the user and its role grants in one transaction.
func (r *PGRepository) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	var created *User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var u User
		err := tx.QueryRow(ctx, `INSERT INTO users (name, password_hash, email, full_name, is_active)
VALUES ($1, $2, $3, $4, $5) RETURNING `+userColumns,
			nu.Name, nu.PasswordHash, nu.Email, nu.FullName, nu.IsActive).
			Scan(&u.ID, &u.Name, &u.PasswordHash, &u.Email, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("user %s: %w", nu.Name, shared.ErrDuplicate)
			}
			return err
		}
		for _, roleID := range nu.RoleIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, u.ID, roleID); err != nil {
				return err
			}
		}
		roles, err := rbac.UserRoles(ctx, tx, []int64{u.ID})
		if err != nil {
			return err
		}
		u.Roles = roles[u.ID]
		created = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

var _ Repository = (*PGRepository)(nil)

package users

import (
	"context"

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

const userColumns = `id, name, email, full_name, is_active, created_at, updated_at`

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// SearchUsers matches users by name fragment.
func (r *Repository) SearchUsers(ctx context.Context, fragment string) ([]User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE name ILIKE '%' || $1 || '%' ORDER BY name`, fragment)
}

// FindUserByID fetches a user with roles.
func (r *Repository) FindUserByID(ctx context.Context, id int64) (User, error) {
	list, err := r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return User{}, err
	}
	if len(list) == 0 {
		return User{}, shared.ErrNotFound
	}
	return list[0], nil
}

// MissingRoleIDs returns the ids that do not name a role.
func (r *Repository) MissingRoleIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT u.id FROM unnest($1::bigint[]) AS u(id) WHERE NOT EXISTS (SELECT 1 FROM roles r WHERE r.id = u.id) ORDER BY u.id`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// SetUserRoles replaces the user's role grants atomically.
func (r *Repository) SetUserRoles(ctx context.Context, id int64, roleIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, id, roleID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `UPDATE users SET updated_at = NOW() WHERE id = $1`, id)
		return err
	})
}

// SetUserActive toggles the activation flag.
func (r *Repository) SetUserActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Name, &u.Email, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
		return u, err
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(list))
	for i, u := range list {
		ids[i] = u.ID
	}
	grants, err := rbac.UserRoles(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Roles = grants[list[i].ID]
		if list[i].Roles == nil {
			list[i].Roles = []rbac.Role{}
		}
	}
	return list, nil
}

var _ RepositoryPort = (*Repository)(nil)

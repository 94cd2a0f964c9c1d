package seed

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questionbank/questionbank/internal/platform/db"
)

// PGRunner runs seeding inside a PostgreSQL transaction.
type PGRunner struct {
	pool *pgxpool.Pool
}

// NewPGRunner constructs a PGRunner.
func NewPGRunner(pool *pgxpool.Pool) *PGRunner {
	return &PGRunner{pool: pool}
}

// InTx implements Runner.
func (r *PGRunner) InTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func (s txStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.tx.QueryRow(ctx, `SELECT
	(SELECT COUNT(*) FROM users),
	(SELECT COUNT(*) FROM roles),
	(SELECT COUNT(*) FROM permissions)`).Scan(&c.Users, &c.Roles, &c.Permissions)
	return c, err
}

func (s txStore) EnsurePermission(ctx context.Context, name string) (int64, error) {
	if _, err := s.tx.Exec(ctx, `INSERT INTO permissions (name, active) VALUES ($1, TRUE) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return 0, err
	}
	var id int64
	err := s.tx.QueryRow(ctx, `SELECT id FROM permissions WHERE name = $1`, name).Scan(&id)
	return id, err
}

func (s txStore) EnsureRole(ctx context.Context, name, description string, permissionIDs []int64) (int64, error) {
	if _, err := s.tx.Exec(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, name, description); err != nil {
		return 0, err
	}
	var id int64
	if err := s.tx.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id); err != nil {
		return 0, err
	}
	for _, pid := range permissionIDs {
		if _, err := s.tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, pid); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (s txStore) EnsureUser(ctx context.Context, acct Account, passwordHash string, roleIDs []int64) error {
	if _, err := s.tx.Exec(ctx, `INSERT INTO users (name, password_hash, email, full_name, is_active)
VALUES ($1, $2, $3, $4, TRUE) ON CONFLICT (name) DO NOTHING`, acct.Name, passwordHash, acct.Email, acct.FullName); err != nil {
		return err
	}
	for _, rid := range roleIDs {
		if _, err := s.tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id)
SELECT id, $2 FROM users WHERE name = $1 ON CONFLICT DO NOTHING`, acct.Name, rid); err != nil {
			return err
		}
	}
	return nil
}

// Package seed installs the default permissions, roles and accounts into an
// empty database.
package seed

import (
	"context"
	"fmt"
	"log/slog"
)

// Counts reports how many rows the identity tables hold.
type Counts struct {
	Users       int64
	Roles       int64
	Permissions int64
}

// Empty reports whether seeding may run.
func (c Counts) Empty() bool {
	return c.Users == 0 && c.Roles == 0 && c.Permissions == 0
}

// Store is the write surface used inside the seeding transaction.
type Store interface {
	Counts(ctx context.Context) (Counts, error)
	EnsurePermission(ctx context.Context, name string) (int64, error)
	EnsureRole(ctx context.Context, name, description string, permissionIDs []int64) (int64, error)
	EnsureUser(ctx context.Context, account Account, passwordHash string, roleIDs []int64) error
}

// Runner executes fn against a Store within one transaction.
type Runner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// PasswordHasher digests the default password.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// RoleSpec names a role and the permissions it carries.
type RoleSpec struct {
	Name        string
	Description string
	Permissions []string
}

// Account is a default login.
type Account struct {
	Name     string
	Email    string
	FullName string
	Role     string
}

// Permissions lists every permission created on an empty database.
var Permissions = []string{
	"USER_READ", "USER_WRITE", "USER_DELETE",
	"QUESTION_READ", "QUESTION_WRITE", "QUESTION_DELETE",
	"SUBJECT_READ", "SUBJECT_WRITE", "SUBJECT_DELETE",
	"CHAPTER_READ", "CHAPTER_WRITE", "CHAPTER_DELETE",
}

// Roles lists the default roles. A nil permission list grants everything.
var Roles = []RoleSpec{
	{Name: "ADMIN", Description: "Full administrative access"},
	{Name: "TEACHER", Description: "Authors and maintains questions", Permissions: []string{
		"USER_READ", "QUESTION_READ", "QUESTION_WRITE", "QUESTION_DELETE",
		"SUBJECT_READ", "SUBJECT_WRITE", "CHAPTER_READ", "CHAPTER_WRITE", "CHAPTER_DELETE",
	}},
	{Name: "STUDENT", Description: "Read-only access", Permissions: []string{
		"USER_READ", "QUESTION_READ", "SUBJECT_READ", "CHAPTER_READ",
	}},
}

// Accounts lists the default logins.
var Accounts = []Account{
	{Name: "admin", Email: "admin@questionbank.local", FullName: "Administrator", Role: "ADMIN"},
	{Name: "teacher1", Email: "teacher1@questionbank.local", FullName: "Teacher One", Role: "TEACHER"},
	{Name: "student1", Email: "student1@questionbank.local", FullName: "Student One", Role: "STUDENT"},
}

// Report summarises a seeding run.
type Report struct {
	Skipped     bool
	Permissions int
	Roles       int
	Users       int
}

// Seeder installs the defaults.
type Seeder struct {
	runner   Runner
	hasher   PasswordHasher
	password string
	logger   *slog.Logger
}

// New constructs a Seeder that gives every default account password.
func New(runner Runner, hasher PasswordHasher, password string, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{runner: runner, hasher: hasher, password: password, logger: logger}
}

// Run seeds an empty database. Any existing user, role or permission skips
// the whole run.
func (s *Seeder) Run(ctx context.Context) (Report, error) {
	if s.password == "" {
		return Report{}, fmt.Errorf("seed: default password is empty")
	}
	digest, err := s.hasher.Hash(s.password)
	if err != nil {
		return Report{}, fmt.Errorf("seed: hash default password: %w", err)
	}

	var report Report
	err = s.runner.InTx(ctx, func(store Store) error {
		counts, err := store.Counts(ctx)
		if err != nil {
			return err
		}
		if !counts.Empty() {
			report.Skipped = true
			return nil
		}

		permIDs := make(map[string]int64, len(Permissions))
		all := make([]int64, 0, len(Permissions))
		for _, name := range Permissions {
			id, err := store.EnsurePermission(ctx, name)
			if err != nil {
				return fmt.Errorf("permission %s: %w", name, err)
			}
			permIDs[name] = id
			all = append(all, id)
			report.Permissions++
		}

		roleIDs := make(map[string]int64, len(Roles))
		for _, spec := range Roles {
			grant := all
			if spec.Permissions != nil {
				grant = make([]int64, 0, len(spec.Permissions))
				for _, p := range spec.Permissions {
					id, ok := permIDs[p]
					if !ok {
						return fmt.Errorf("role %s references unknown permission %s", spec.Name, p)
					}
					grant = append(grant, id)
				}
			}
			id, err := store.EnsureRole(ctx, spec.Name, spec.Description, grant)
			if err != nil {
				return fmt.Errorf("role %s: %w", spec.Name, err)
			}
			roleIDs[spec.Name] = id
			report.Roles++
		}

		for _, acct := range Accounts {
			roleID, ok := roleIDs[acct.Role]
			if !ok {
				return fmt.Errorf("%s role not found", acct.Role)
			}
			if err := store.EnsureUser(ctx, acct, digest, []int64{roleID}); err != nil {
				return fmt.Errorf("user %s: %w", acct.Name, err)
			}
			report.Users++
		}
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("seed: %w", err)
	}
	if report.Skipped {
		s.logger.Info("database already initialised, skipping seed")
	} else {
		s.logger.Info("database seeded",
			slog.Int("permissions", report.Permissions),
			slog.Int("roles", report.Roles),
			slog.Int("users", report.Users))
	}
	return report, nil
}

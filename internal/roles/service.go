package roles

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/shared"
)

var roleNamePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	SearchRoles(ctx context.Context, fragment string) ([]Role, error)
	FindRoleByID(ctx context.Context, id int64) (Role, error)
	FindRoleByName(ctx context.Context, name string) (Role, error)
	ExistsRoleByName(ctx context.Context, name string) (bool, error)
	CreateRole(ctx context.Context, in RoleInput) (Role, error)
	UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// PermissionAssigner replaces the permission set of a role.
type PermissionAssigner interface {
	SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) ([]rbac.Permission, error)
}

// Service handles role business logic.
type Service struct {
	repo  RepositoryPort
	perms PermissionAssigner
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, perms PermissionAssigner) *Service {
	return &Service{repo: repo, perms: perms}
}

// NormalizeName upper-cases a role name and strips the authority prefix.
func NormalizeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.TrimPrefix(name, rbac.RolePrefix)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// SearchRoles returns roles whose name contains fragment, case-insensitively.
func (s *Service) SearchRoles(ctx context.Context, fragment string) ([]Role, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return s.repo.ListRoles(ctx)
	}
	return s.repo.SearchRoles(ctx, fragment)
}

// GetRole returns a single role.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := s.repo.FindRoleByID(ctx, id)
	if err != nil {
		return Role{}, notFound(err, id)
	}
	return role, nil
}

// CreateRole validates and inserts a role.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	in.Name = NormalizeName(in.Name)
	if !roleNamePattern.MatchString(in.Name) {
		return Role{}, fmt.Errorf("%w: role name must be letters, digits or underscores", shared.ErrValidation)
	}
	exists, err := s.repo.ExistsRoleByName(ctx, in.Name)
	if err != nil {
		return Role{}, err
	}
	if exists {
		return Role{}, fmt.Errorf("role already exists with name: %s: %w", in.Name, shared.ErrDuplicate)
	}
	return s.repo.CreateRole(ctx, in)
}

// UpdateRole renames or re-describes a role.
func (s *Service) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	in.Name = NormalizeName(in.Name)
	if !roleNamePattern.MatchString(in.Name) {
		return Role{}, fmt.Errorf("%w: role name must be letters, digits or underscores", shared.ErrValidation)
	}
	current, err := s.repo.FindRoleByID(ctx, id)
	if err != nil {
		return Role{}, notFound(err, id)
	}
	if current.Name != in.Name {
		other, err := s.repo.FindRoleByName(ctx, in.Name)
		switch {
		case err == nil && other.ID != id:
			return Role{}, fmt.Errorf("role already exists with name: %s: %w", in.Name, shared.ErrDuplicate)
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return Role{}, err
		}
	}
	role, err := s.repo.UpdateRole(ctx, id, in)
	if err != nil {
		return Role{}, notFound(err, id)
	}
	return role, nil
}

// DeleteRole removes a role and its grants.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return notFound(err, id)
	}
	return nil
}

// SetPermissions replaces the permissions granted to a role and returns the role.
func (s *Service) SetPermissions(ctx context.Context, id int64, permissionIDs []int64) (Role, error) {
	if _, err := s.repo.FindRoleByID(ctx, id); err != nil {
		return Role{}, notFound(err, id)
	}
	if _, err := s.perms.SetRolePermissions(ctx, id, permissionIDs); err != nil {
		return Role{}, err
	}
	return s.GetRole(ctx, id)
}

func notFound(err error, id int64) error {
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("role not found with id: %d: %w", id, shared.ErrNotFound)
	}
	return err
}

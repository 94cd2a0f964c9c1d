package rbac

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/questionbank/questionbank/internal/shared"
)

// Store is the credential store capability for permissions and role grants.
type Store interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	FindPermissionByID(ctx context.Context, id int64) (Permission, error)
	FindPermissionByName(ctx context.Context, name string) (Permission, error)
	ExistsPermissionByName(ctx context.Context, name string) (bool, error)
	CreatePermission(ctx context.Context, name string, active bool) (Permission, error)
	SetPermissionActive(ctx context.Context, id int64, active bool) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	// ReplaceRolePermissions swaps the role's grants for permissionIDs as one
	// unit: on error the previous grants stay in place.
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

var permissionName = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Service orchestrates RBAC operations.
type Service struct {
	store Store
}

// NewService constructs a Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// CreatePermission inserts a new permission. Names are upper snake case and unique.
func (s *Service) CreatePermission(ctx context.Context, name string, active bool) (Permission, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if !permissionName.MatchString(name) {
		return Permission{}, fmt.Errorf("%w: permission name must be upper snake case", shared.ErrValidation)
	}
	exists, err := s.store.ExistsPermissionByName(ctx, name)
	if err != nil {
		return Permission{}, err
	}
	if exists {
		return Permission{}, fmt.Errorf("permission already exists with name: %s: %w", name, shared.ErrDuplicate)
	}
	return s.store.CreatePermission(ctx, name, active)
}

// SetPermissionActive flips the active flag of a permission.
func (s *Service) SetPermissionActive(ctx context.Context, id int64, active bool) (Permission, error) {
	return s.store.SetPermissionActive(ctx, id, active)
}

// DeletePermission removes a permission and its role grants.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return s.store.DeletePermission(ctx, id)
}

// SetRolePermissions replaces permissions for a role with permissionIDs.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) ([]Permission, error) {
	ids := make([]int64, 0, len(permissionIDs))
	seen := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.store.FindPermissionByID(ctx, id); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, fmt.Errorf("permission %d not found: %w", id, shared.ErrNotFound)
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := s.store.ReplaceRolePermissions(ctx, roleID, ids); err != nil {
		return nil, fmt.Errorf("rbac: replace role %d permissions: %w", roleID, err)
	}
	return s.store.RolePermissions(ctx, roleID)
}

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/shared"
)

// UserFinder loads a user together with roles and permissions.
type UserFinder interface {
	FindUserByName(ctx context.Context, name string) (*User, error)
}

// Resolver turns a user name into a principal. It reads the store on every
// call so role and activation changes apply to the next request.
type Resolver struct {
	users UserFinder
}

// NewResolver constructs a Resolver.
func NewResolver(users UserFinder) *Resolver {
	return &Resolver{users: users}
}

// LoadByName returns the principal for name, or shared.ErrUserNotFound when
// the account is missing or disabled.
func (r *Resolver) LoadByName(ctx context.Context, name string) (*rbac.Principal, error) {
	user, err := r.users.FindUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, name)
		}
		return nil, fmt.Errorf("auth: load principal: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, name)
	}
	return PrincipalFor(user), nil
}

// PrincipalFor flattens a loaded user into a principal.
func PrincipalFor(user *User) *rbac.Principal {
	return &rbac.Principal{
		UserID:      user.ID,
		Name:        user.Name,
		Authorities: rbac.Authorities(user.Roles),
	}
}

package roles

import "github.com/questionbank/questionbank/internal/rbac"

// Role is the managed role record, permissions included.
type Role = rbac.Role

// RoleInput carries the mutable columns of a role.
type RoleInput struct {
	Name        string
	Description string
}

package rbac

import (
	"strings"
	"time"
)

// RolePrefix is prepended to role names when they are granted as authorities.
const RolePrefix = "ROLE_"

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Permission represents an atomic capability.
type Permission struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"value"`
}

// Principal describes the authenticated actor for the current request.
type Principal struct {
	UserID      int64
	Name        string
	Authorities []string
}

// RoleAuthority returns the authority string granted for a role name.
func RoleAuthority(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	if strings.HasPrefix(role, RolePrefix) {
		return role
	}
	return RolePrefix + role
}

// HasAuthority reports whether the principal was granted authority verbatim.
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if p.HasAuthority(RoleAuthority(role)) {
			return true
		}
	}
	return false
}

// Roles returns the role names without prefix.
func (p *Principal) Roles() []string {
	if p == nil {
		return nil
	}
	var roles []string
	for _, a := range p.Authorities {
		if strings.HasPrefix(a, RolePrefix) {
			roles = append(roles, strings.TrimPrefix(a, RolePrefix))
		}
	}
	return roles
}

// Authorities flattens roles into the authority set of a principal: one
// ROLE_ entry per role, then each active permission name once.
func Authorities(roles []Role) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(a string) {
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, r := range roles {
		add(RoleAuthority(r.Name))
	}
	for _, r := range roles {
		for _, p := range r.Permissions {
			if p.Active {
				add(p.Name)
			}
		}
	}
	return out
}

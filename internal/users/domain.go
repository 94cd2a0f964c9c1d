package users

import (
	"time"

	"github.com/questionbank/questionbank/internal/rbac"
)

// User represents a user account for management. The password digest never
// leaves the auth package.
type User struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	FullName  string      `json:"fullName"`
	IsActive  bool        `json:"isActive"`
	Roles     []rbac.Role `json:"roles"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

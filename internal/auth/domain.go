package auth

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/questionbank/questionbank/internal/rbac"
)

// Defaults applied when configuration leaves a value unset.
const (
	DefaultTokenTTL   = 24 * time.Hour
	DefaultBcryptCost = 12
	TokenType         = "Bearer"
)

// User represents an account as seen by the credential store.
type User struct {
	ID           int64
	Name         string
	PasswordHash string
	Email        string
	FullName     string
	IsActive     bool
	Roles        []rbac.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser carries the columns written at registration.
type NewUser struct {
	Name         string
	PasswordHash string
	Email        string
	FullName     string
	IsActive     bool
	RoleIDs      []int64
}

// Settings is the process-wide auth configuration, built once at startup.
type Settings struct {
	Secret     []byte
	Issuer     string
	TTL        time.Duration
	BcryptCost int
}

// NormalizeName folds user names to NFKC so visually identical names
// cannot register twice.
func NormalizeName(name string) string {
	return norm.NFKC.String(strings.TrimSpace(name))
}

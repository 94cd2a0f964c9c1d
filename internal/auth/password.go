package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/questionbank/questionbank/internal/shared"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// Hasher produces and checks adaptive one-way password digests.
type Hasher struct {
	cost int
}

// NewHasher returns a bcrypt hasher with the given work factor.
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d outside [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Hasher{cost: cost}, nil
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns the salted digest of plain. Inputs longer than
// MaxPasswordBytes are rejected with shared.ErrValidation.
func (h *Hasher) Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password must not exceed %d bytes", shared.ErrValidation, MaxPasswordBytes)
	}
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plain matches digest. Malformed digests yield false.
func (h *Hasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/questionbank/questionbank/internal/shared"
)

// MinSecretLength is the shortest accepted HS256 signing secret in bytes.
const MinSecretLength = 32

var errUnsupportedAlg = errors.New("unsupported signing algorithm")

// Claims is the payload of an issued bearer token.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenCodec issues and parses HS256 signed bearer tokens.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec builds a codec from the startup settings.
func NewTokenCodec(s Settings, opts ...CodecOption) (*TokenCodec, error) {
	if len(s.Secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: signing secret must be at least %d bytes", MinSecretLength)
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	secret := make([]byte, len(s.Secret))
	copy(secret, s.Secret)
	c := &TokenCodec{secret: secret, issuer: s.Issuer, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the validity window of issued tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for name valid until now+TTL and returns the encoded expiry.
func (c *TokenCodec) Issue(name string, now time.Time) (string, time.Time, error) {
	if name == "" {
		return "", time.Time{}, fmt.Errorf("auth: issue token: empty subject")
	}
	// NumericDate keeps whole seconds, so a token issued at hh:mm:ss.9 expires
	// up to one second before now+TTL. The returned expiry is the encoded one.
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(c.ttl))
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   name,
		Issuer:    c.issuer,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt.Time, nil
}

// ParseSubject verifies raw and returns its subject. Errors are one of
// shared.ErrTokenMalformed, ErrTokenUnsupported, ErrTokenExpired or ErrTokenInvalid.
func (c *TokenCodec) ParseSubject(raw string) (string, error) {
	claims, err := c.parse(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Validate reports whether raw parses, is unexpired and names expected.
func (c *TokenCodec) Validate(raw, expected string) bool {
	claims, err := c.parse(raw)
	if err != nil {
		return false
	}
	if claims.Subject != expected {
		return false
	}
	return claims.ExpiresAt != nil && c.now().Before(claims.ExpiresAt.Time)
}

func (c *TokenCodec) parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	parser := jwt.NewParser(opts...)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errUnsupportedAlg
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", shared.ErrTokenInvalid)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", shared.ErrTokenMalformed, err)
	case errors.Is(err, errUnsupportedAlg), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", shared.ErrTokenUnsupported, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", shared.ErrTokenInvalid, err)
	}
}

package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique name is already taken.
	ErrDuplicate = errors.New("duplicate resource")
	// ErrValidation indicates the request payload failed validation.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTooManyAttempts indicates the account is temporarily locked after repeated login failures.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrUserNotFound is raised by principal resolution. It is reported as an
	// authentication failure so account existence is not leaked.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenMalformed indicates a bearer token that is not structurally valid.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenUnsupported indicates a token signed with an unrecognised algorithm.
	ErrTokenUnsupported = errors.New("token unsupported")
	// ErrTokenExpired indicates the token expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers signature, issuer and subject failures.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrAuthenticationRequired indicates a protected route was reached without identity.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrAccessDenied indicates an authenticated principal lacks the required role.
	ErrAccessDenied = errors.New("access denied")
)

// IsTokenError reports whether err belongs to the bearer token family.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenUnsupported) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenInvalid)
}

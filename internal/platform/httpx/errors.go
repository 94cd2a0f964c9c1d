package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/questionbank/questionbank/internal/shared"
)

// Messages written for authentication failures.
const (
	MsgTokenExpired     = "JWT token is expired"
	MsgTokenUnsupported = "JWT token is unsupported"
	MsgTokenMalformed   = "JWT token is malformed"
	MsgTokenInvalid     = "JWT token is invalid"
	MsgAuthFailed       = "Authentication failed"
	MsgAuthRequired     = "Unauthorized: Full authentication is required to access this resource"
	MsgAccessDenied     = "Access denied"
)

// RespondError maps domain errors to the JSON error envelope.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	WriteEnvelope(w, r, EnvelopeFor(err))
}

// EnvelopeFor converts err into an envelope without writing it.
func EnvelopeFor(err error) ErrorEnvelope {
	switch {
	case errors.Is(err, shared.ErrTokenExpired):
		return ErrorEnvelope{Status: http.StatusUnauthorized, Message: MsgTokenExpired, ErrorCode: "TOKEN_EXPIRED"}
	case errors.Is(err, shared.ErrTokenUnsupported):
		return ErrorEnvelope{Status: http.StatusUnauthorized, Message: MsgTokenUnsupported, ErrorCode: "TOKEN_UNSUPPORTED"}
	case errors.Is(err, shared.ErrTokenMalformed):
		return ErrorEnvelope{Status: http.StatusUnauthorized, Message: MsgTokenMalformed, ErrorCode: "TOKEN_MALFORMED"}
	case errors.Is(err, shared.ErrTokenInvalid):
		return ErrorEnvelope{Status: http.StatusUnauthorized, Message: MsgTokenInvalid, ErrorCode: "TOKEN_INVALID"}
	case errors.Is(err, shared.ErrInvalidCredentials):
		return ErrorEnvelope{Status: http.StatusUnauthorized, Message: MsgAuthFailed, Details: "Invalid username or password", ErrorCode: "AUTHENTICATION_FAILED"}
	case errors.Is(err, shared.ErrUserNotFound):
		return ErrorEnvelope{Status: http.StatusUnauthorized, Message: MsgAuthFailed, ErrorCode: "AUTHENTICATION_FAILED"}
	case errors.Is(err, shared.ErrAuthenticationRequired):
		return ErrorEnvelope{Status: http.StatusUnauthorized, Message: MsgAuthRequired, ErrorCode: "AUTHENTICATION_REQUIRED"}
	case errors.Is(err, shared.ErrAccessDenied):
		return ErrorEnvelope{Status: http.StatusForbidden, Message: MsgAccessDenied, Details: "You don't have permission to access this resource", ErrorCode: "ACCESS_DENIED"}
	case errors.Is(err, shared.ErrTooManyAttempts):
		return ErrorEnvelope{Status: http.StatusTooManyRequests, Message: "Too many login attempts", ErrorCode: "TOO_MANY_ATTEMPTS"}
	case errors.Is(err, shared.ErrDuplicate):
		return ErrorEnvelope{Status: http.StatusConflict, Message: detail(err, shared.ErrDuplicate), ErrorCode: "DUPLICATE_RESOURCE"}
	case errors.Is(err, shared.ErrNotFound):
		return ErrorEnvelope{Status: http.StatusNotFound, Message: detail(err, shared.ErrNotFound), ErrorCode: "RESOURCE_NOT_FOUND"}
	case errors.Is(err, shared.ErrValidation):
		return ErrorEnvelope{Status: http.StatusBadRequest, Message: detail(err, shared.ErrValidation), ErrorCode: "VALIDATION_ERROR"}
	default:
		return ErrorEnvelope{Status: http.StatusInternalServerError, Message: "Internal server error", ErrorCode: "INTERNAL_ERROR"}
	}
}

// ValidationFailed writes a 400 envelope listing each rejected field.
func ValidationFailed(w http.ResponseWriter, r *http.Request, err error) {
	env := ErrorEnvelope{Status: http.StatusBadRequest, Message: "Validation failed", ErrorCode: "VALIDATION_ERROR"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			env.FieldErrors = append(env.FieldErrors, FieldError{
				Field:   lowerFirst(fe.Field()),
				Message: fieldMessage(fe),
				Code:    fe.Tag(),
			})
		}
	} else if err != nil {
		env.Details = err.Error()
	}
	WriteEnvelope(w, r, env)
}

// detail strips the sentinel suffix from wrapped errors so "x: not found"
// renders as "x" while a bare sentinel keeps its own text.
func detail(err, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimSuffix(msg, ": "+sentinel.Error()); trimmed != msg {
		return trimmed
	}
	if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != msg {
		return trimmed
	}
	return msg
}

func fieldMessage(fe validator.FieldError) string {
	name := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return name + " must be at least " + fe.Param() + " characters"
	case "max":
		return name + " must not exceed " + fe.Param() + " characters"
	case "maxbytes":
		return name + " must not exceed " + fe.Param() + " bytes"
	case "email":
		return name + " must be a valid email address"
	default:
		return name + " is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

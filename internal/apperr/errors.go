// Package apperr defines the error taxonomy shared by the platform services and
// the HTTP boundary. Services return *Error values (or wrap them); handlers turn
// them into a stable error code, a human readable message and a status code.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a domain failure with a stable code. Two errors match under
// errors.Is when their codes are equal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrWeakSecret         = &Error{Kind: KindValidation, Code: "weak_secret", Message: "Secret is too short"}
	ErrInvalidToken       = &Error{Kind: KindAuthentication, Code: "invalid_token", Message: "Invalid token"}
	ErrExpiredToken       = &Error{Kind: KindAuthentication, Code: "expired_token", Message: "Token expired"}
	ErrMissingToken       = &Error{Kind: KindAuthentication, Code: "missing_token", Message: "Unauthorized"}
	ErrNotAuthenticated   = &Error{Kind: KindAuthentication, Code: "not_authenticated", Message: "Unauthorized"}
	ErrSessionExpired     = &Error{Kind: KindAuthentication, Code: "session_expired", Message: "Session expired"}
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Code: "invalid_credentials", Message: "Invalid credentials"}
	ErrAccountInactive    = &Error{Kind: KindAuthentication, Code: "account_inactive", Message: "Account is inactive"}
	ErrAccountExpired     = &Error{Kind: KindAuthentication, Code: "account_expired", Message: "Account has expired"}
	ErrForbidden          = &Error{Kind: KindAuthorization, Code: "forbidden", Message: "Forbidden"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "User not found"}
	ErrUserExists         = &Error{Kind: KindConflict, Code: "user_exists", Message: "User already exists"}
)

// Validation returns a validation failure carrying msg.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_input", Message: msg}
}

// Internal hides err behind a generic message. The cause stays reachable
// through errors.Unwrap for logging.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "server_error", Message: "Internal server error", Err: err}
}

// As extracts the *Error from err. Errors that are not part of the taxonomy
// are reported as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// Status maps err to the HTTP status the boundary answers with.
func Status(err error) int {
	switch As(err).Kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindAuthentication:
		return fiber.StatusUnauthorized
	case KindAuthorization:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

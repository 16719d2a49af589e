package identity

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes surfaced in the error payload contract. Clients key off
// these, never off messages.
const (
	TextCodeValidation       = "VALIDATION_ERROR"
	TextCodeInvalidCreds     = "INVALID_CREDENTIALS"
	TextCodeAccountSuspended = "ACCOUNT_SUSPENDED"
	TextCodeAccountPending   = "ACCOUNT_PENDING"
	TextCodeEmailExists      = "EMAIL_EXISTS"
	TextCodeUnauthorized     = "UNAUTHORIZED"
	TextCodeForbidden        = "FORBIDDEN"
	TextCodeNotFound         = "NOT_FOUND"
	TextCodeInternal         = "INTERNAL_ERROR"

	TextCodeTokenExpired      = "EXPIRED"
	TextCodeTokenMalformed    = "MALFORMED"
	TextCodeTokenBadSignature = "BAD_SIGNATURE"
	TextCodeTooManyAttempts   = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeEmptyPassword     = "EMPTY_PASSWORD"
	TextCodeWeakPassword      = "WEAK_PASSWORD"
)

// ErrInvalidCredentials collapses "principal not found" and "password
// mismatch" into one error so login responses cannot be used to enumerate
// accounts.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountSuspended is returned when a suspended principal attempts to log in.
var ErrAccountSuspended = goerrors.New("account is suspended", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountSuspended).
	WithCode(goerrors.CodeForbidden)

// ErrAccountPending is returned when a principal awaiting review attempts to log in.
var ErrAccountPending = goerrors.New("account is pending verification", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountPending).
	WithCode(goerrors.CodeForbidden)

// ErrEmailExists is returned on registration with an already registered email.
var ErrEmailExists = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailExists).
	WithCode(goerrors.CodeConflict)

// ErrUnauthorized is the generic authentication failure for guarded routes
// and refresh boundaries.
var ErrUnauthorized = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when a valid identity lacks the required role. It
// deliberately carries no role detail.
var ErrForbidden = goerrors.New("forbidden", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrPrincipalNotFound is the error we return for non found principals
var ErrPrincipalNotFound = goerrors.New("principal not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTokenExpired marks a structurally valid token past its expiry; callers
// can treat it as "needs refresh".
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed marks a token that could not be parsed at all.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenBadSignature marks a token signed with the wrong key or method.
var ErrTokenBadSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenBadSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenWrongType is returned when an access token shows up in a refresh
// slot or vice versa.
var ErrTokenWrongType = goerrors.New("token type mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when the cooldown window still holds
// too many failed attempts.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyPassword rejects empty plaintext before it reaches the hasher.
var ErrNoEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens, including errors from
// validators we do not own.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed token errors by message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// WrapInternal hides dependency failures behind the stable INTERNAL_ERROR
// code; the original error stays attached for server-side logging only.
func WrapInternal(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}

// ValidationError translates a validator failure into the stable contract.
func ValidationError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid request payload").
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
}

package identity

import (
	"unicode"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password AssessPasswordStrength accepts.
const MinPasswordLength = 8

// HashPassword will generate a salted password hash. Two calls with the same
// plaintext produce different hashes.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext password matches
// the hashed password. A malformed hash is reported as a mismatch, not an
// internal failure.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// PasswordMatches reports whether the plaintext verifies against the hash.
func PasswordMatches(password, hash string) bool {
	return ComparePasswordAndHash(password, hash) == nil
}

// StrengthResult carries the outcome of a password strength assessment.
type StrengthResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Strength rule reasons, reported in rule order: length first, then
// uppercase, lowercase, digit.
const (
	StrengthReasonTooShort    = "password must be at least 8 characters long"
	StrengthReasonNoUppercase = "password must contain at least one uppercase letter"
	StrengthReasonNoLowercase = "password must contain at least one lowercase letter"
	StrengthReasonNoDigit     = "password must contain at least one digit"
)

// AssessPasswordStrength applies the strength rules in a fixed order and
// reports the first failure.
func AssessPasswordStrength(password string) StrengthResult {
	if len(password) < MinPasswordLength {
		return StrengthResult{Reason: StrengthReasonTooShort}
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		return StrengthResult{Reason: StrengthReasonNoUppercase}
	}
	if !hasLower {
		return StrengthResult{Reason: StrengthReasonNoLowercase}
	}
	if !hasDigit {
		return StrengthResult{Reason: StrengthReasonNoDigit}
	}

	return StrengthResult{Valid: true}
}

// strengthError converts a failed assessment into the stable error contract.
func strengthError(result StrengthResult) error {
	return goerrors.New(result.Reason, goerrors.CategoryValidation).
		WithTextCode(TextCodeWeakPassword).
		WithCode(goerrors.CodeBadRequest)
}

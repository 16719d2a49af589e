package external

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound = "external_provider_not_found"
	TextCodeExchangeFail     = "external_exchange_failed"
	TextCodeEmailMissing     = "external_email_missing"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("external provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrExchangeFailed is returned when a provider code exchange fails.
var ErrExchangeFailed = errors.New("code exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrEmailMissing is returned when a provider profile carries no email; we
// cannot attach or create a principal without one.
var ErrEmailMissing = errors.New("provider profile has no email", errors.CategoryAuth).
	WithTextCode(TextCodeEmailMissing).
	WithCode(errors.CodeUnauthorized)

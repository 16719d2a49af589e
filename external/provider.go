package external

import (
	"context"
)

// Provider is a single OAuth-style identity provider: it trades an
// authorization code for a verified profile. Full federated SSO flows are
// out of scope; providers own redirect and consent handling themselves.
type Provider interface {
	// Name returns the provider identifier (e.g., "github", "google").
	Name() string

	// Exchange trades an authorization code for the user's profile.
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// Profile represents normalized identity information from a provider.
type Profile struct {
	Provider  string
	Subject   string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
	Raw       map[string]any
}

// ProviderFunc adapts a named function to the Provider interface.
type ProviderFunc struct {
	ProviderName string
	ExchangeFunc func(ctx context.Context, code string) (*Profile, error)
}

// Name implements Provider.
func (p ProviderFunc) Name() string {
	return p.ProviderName
}

// Exchange implements Provider.
func (p ProviderFunc) Exchange(ctx context.Context, code string) (*Profile, error) {
	if p.ExchangeFunc == nil {
		return nil, ErrExchangeFailed
	}
	return p.ExchangeFunc(ctx, code)
}

var _ Provider = ProviderFunc{}

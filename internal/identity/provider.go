package identity

import (
	"strings"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Provider is the wire tag of a supported OAuth identity provider.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderGitHub  Provider = "github"
	ProviderApple   Provider = "apple"
	ProviderSpotify Provider = "spotify"
)

var appleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://appleid.apple.com/auth/authorize",
	TokenURL:  "https://appleid.apple.com/auth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var providerEndpoints = map[Provider]oauth2.Endpoint{
	ProviderGoogle:  endpoints.Google,
	ProviderGitHub:  endpoints.GitHub,
	ProviderApple:   appleEndpoint,
	ProviderSpotify: endpoints.Spotify,
}

var providerScopes = map[Provider][]string{
	ProviderGoogle:  {"openid", "email", "profile"},
	ProviderGitHub:  {"read:user", "user:email"},
	ProviderApple:   {"name", "email"},
	ProviderSpotify: {"user-read-email", "user-read-private"},
}

// SupportedProviders lists the providers in a stable order.
func SupportedProviders() []Provider {
	return []Provider{ProviderGoogle, ProviderGitHub, ProviderApple, ProviderSpotify}
}

// ParseProvider maps a case-insensitive wire value onto a Provider.
func ParseProvider(raw string) (Provider, error) {
	candidate := Provider(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := providerEndpoints[candidate]; !ok {
		return "", apperrors.New("identity.parse_provider", apperrors.KindUnsupportedProvider, "unsupported oauth provider")
	}
	return candidate, nil
}

// Endpoint returns the provider's OAuth 2.0 endpoints.
func (p Provider) Endpoint() oauth2.Endpoint {
	return providerEndpoints[p]
}

func (p Provider) String() string {
	return string(p)
}

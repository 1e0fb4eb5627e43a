package identity

import (
	"strings"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
	"golang.org/x/oauth2"
)

// ClientConfig holds the registered client credentials for one provider.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
}

// CatalogConfig describes which providers are enabled for starting a login.
type CatalogConfig struct {
	RedirectURL string
	Clients     map[Provider]ClientConfig
}

// Catalog exposes the providers a client can start an authorization flow with.
type Catalog struct {
	configs map[Provider]*oauth2.Config
}

// NewCatalog enables every supported provider that has a client id configured.
func NewCatalog(cfg CatalogConfig) *Catalog {
	configs := make(map[Provider]*oauth2.Config)
	for provider, client := range cfg.Clients {
		if _, supported := providerEndpoints[provider]; !supported {
			continue
		}
		clientID := strings.TrimSpace(client.ClientID)
		if clientID == "" {
			continue
		}
		configs[provider] = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: client.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  strings.TrimRight(cfg.RedirectURL, "/") + "/" + string(provider),
			Scopes:       providerScopes[provider],
		}
	}
	return &Catalog{configs: configs}
}

// Enabled returns the configured providers in a stable order.
func (c *Catalog) Enabled() []Provider {
	enabled := make([]Provider, 0, len(c.configs))
	for _, provider := range SupportedProviders() {
		if _, ok := c.configs[provider]; ok {
			enabled = append(enabled, provider)
		}
	}
	return enabled
}

// AuthorizationURL builds the consent page URL for provider carrying state.
func (c *Catalog) AuthorizationURL(provider Provider, state string) (string, error) {
	config, ok := c.configs[provider]
	if !ok {
		return "", apperrors.New("identity.authorization_url", apperrors.KindUnsupportedProvider, "provider is not enabled")
	}
	return config.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "CADENCE"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "cadence.db"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultTokenIssuer     = "cadence-auth"
	defaultTokenAudience   = "cadence-api"
	defaultTokenTTLMinutes = 60
	defaultAuthRatePerMin  = 30
)

// OAuthProviders lists the provider keys read from the oauth.* namespace.
var OAuthProviders = []string{"google", "github", "apple", "spotify"}

// OAuthClient holds the credentials of one OAuth application.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress      string
	AuthRatePerMin   int
	DatabasePath     string
	LogLevel         string
	LogFormat        string
	SigningSecret    string
	TokenIssuer      string
	TokenAudience    string
	TokenTTL         time.Duration
	BcryptCost       int
	OAuthRedirectURL string
	OAuthClients     map[string]OAuthClient
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.auth_rate_per_minute", defaultAuthRatePerMin)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("auth.issuer", defaultTokenIssuer)
	configViper.SetDefault("auth.audience", defaultTokenAudience)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("auth.bcrypt_cost", 0)
	configViper.SetDefault("oauth.redirect_url", "")
	// AutomaticEnv only resolves keys viper already knows about.
	for _, provider := range OAuthProviders {
		configViper.SetDefault("oauth."+provider+".client_id", "")
		configViper.SetDefault("oauth."+provider+".client_secret", "")
	}
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		AuthRatePerMin:   configViper.GetInt("http.auth_rate_per_minute"),
		DatabasePath:     configViper.GetString("database.path"),
		LogLevel:         configViper.GetString("log.level"),
		LogFormat:        strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		TokenIssuer:      configViper.GetString("auth.issuer"),
		TokenAudience:    configViper.GetString("auth.audience"),
		TokenTTL:         time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		BcryptCost:       configViper.GetInt("auth.bcrypt_cost"),
		OAuthRedirectURL: strings.TrimSpace(configViper.GetString("oauth.redirect_url")),
		OAuthClients:     make(map[string]OAuthClient),
	}
	for _, provider := range OAuthProviders {
		clientID := strings.TrimSpace(configViper.GetString("oauth." + provider + ".client_id"))
		if clientID == "" {
			continue
		}
		cfg.OAuthClients[provider] = OAuthClient{
			ClientID:     clientID,
			ClientSecret: configViper.GetString("oauth." + provider + ".client_secret"),
		}
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.TokenIssuer) == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if strings.TrimSpace(c.TokenAudience) == "" {
		return fmt.Errorf("auth.audience is required")
	}
	if c.AuthRatePerMin < 0 {
		return fmt.Errorf("http.auth_rate_per_minute must not be negative")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", c.LogFormat)
	}
	if len(c.OAuthClients) > 0 && c.OAuthRedirectURL == "" {
		return fmt.Errorf("oauth.redirect_url is required when an oauth provider is configured")
	}
	return nil
}
